// Package protocol defines the messages exchanged between a host and the
// clients viewing its computers, and the codecs used to put them on the wire.
//
// Every message travels inside an envelope naming its Kind, so a receiver
// can decode a message without knowing in advance what it is.
package protocol

import (
	"errors"
	"fmt"

	"github.com/SquidDev-CC/bedrock/pkg/computer/terminal"
)

// Kind names a message type on the wire.
type Kind string

const (
	KindOpenComputer Kind = "computercraft:open_computer"
	KindSyncTerminal Kind = "computercraft:sync_terminal"
	KindQueueEvent   Kind = "computercraft:queue_event"
	KindAction       Kind = "computercraft:action"
)

var (
	ErrUnknownKind   = errors.New("unknown message kind")
	ErrUnknownAction = errors.New("unknown action")
)

// Message is implemented by every payload in this package.
type Message interface {
	Kind() Kind
}

// OpenComputer is sent to clients when a computer is opened.
type OpenComputer struct {
	ID       int               `json:"id" cbor:"id"`
	Advanced bool              `json:"advanced" cbor:"advanced"`
	Terminal terminal.Snapshot `json:"terminal" cbor:"terminal"`
}

func (OpenComputer) Kind() Kind { return KindOpenComputer }

// SyncTerminal is sent to clients whenever a computer flushes its terminal.
type SyncTerminal struct {
	ID       int               `json:"id" cbor:"id"`
	Terminal terminal.Snapshot `json:"terminal" cbor:"terminal"`
}

func (SyncTerminal) Kind() Kind { return KindSyncTerminal }

// QueueEvent asks the host to queue an event on a computer. Args are plain
// values (numbers, strings, booleans, nil, lists and string-keyed maps).
type QueueEvent struct {
	ID    int    `json:"id" cbor:"id"`
	Event string `json:"event" cbor:"event"`
	Args  []any  `json:"args" cbor:"args"`
}

func (QueueEvent) Kind() Kind { return KindQueueEvent }

// ActionKind is a power action a client may request.
type ActionKind string

const (
	ActionShutdown ActionKind = "shutdown"
	ActionReboot   ActionKind = "reboot"
	ActionTurnOn   ActionKind = "turn_on"
)

// Action asks the host to change a computer's power state.
type Action struct {
	ID     int        `json:"id" cbor:"id"`
	Action ActionKind `json:"action" cbor:"action"`
}

func (Action) Kind() Kind { return KindAction }

// Validate rejects actions other than shutdown, reboot and turn_on.
func (a Action) Validate() error {
	switch a.Action {
	case ActionShutdown, ActionReboot, ActionTurnOn:
		return nil
	default:
		return fmt.Errorf("%q: %w", a.Action, ErrUnknownAction)
	}
}
