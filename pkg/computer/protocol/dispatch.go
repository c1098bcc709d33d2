package protocol

import (
	"errors"
	"fmt"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
)

// ErrUnexpectedMessage is returned by Dispatch for messages that only ever
// travel from host to client.
var ErrUnexpectedMessage = errors.New("message cannot be sent to a computer")

// Dispatch applies a client message to a session. Messages may be passed by
// value or by pointer.
func Dispatch(session *computer.Session, msg Message) error {
	switch m := msg.(type) {
	case *Action:
		return dispatchAction(session, *m)
	case Action:
		return dispatchAction(session, m)
	case *QueueEvent:
		return session.QueueEvent(m.Event, m.Args...)
	case QueueEvent:
		return session.QueueEvent(m.Event, m.Args...)
	default:
		return fmt.Errorf("%s: %w", msg.Kind(), ErrUnexpectedMessage)
	}
}

func dispatchAction(session *computer.Session, action Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	switch action.Action {
	case ActionShutdown:
		session.Shutdown()
	case ActionReboot:
		session.Reboot()
	case ActionTurnOn:
		session.TurnOn()
	}
	return nil
}
