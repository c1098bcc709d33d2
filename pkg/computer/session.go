// Package computer ties a computer's filesystem, terminal and lifecycle
// together into a Session.
//
// A Session is owned by a single caller: none of its methods are safe for
// concurrent use. The host package serialises access when several
// goroutines need to reach the same session.
package computer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/SquidDev-CC/bedrock/pkg/computer/core"
	"github.com/SquidDev-CC/bedrock/pkg/computer/filesystem"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
	"github.com/SquidDev-CC/bedrock/pkg/computer/terminal"
)

// ErrHandlerSet is returned when a lifecycle handler is registered twice.
var ErrHandlerSet = errors.New("handler already set")

// EventHandler receives queued events. Each argument is a JSON document.
type EventHandler func(event string, args []string)

// Session is one virtual computer: its files, its screen and the hooks into
// whatever is running it.
type Session struct {
	backend persist.Backend
	tree    *filesystem.Tree
	logger  zerolog.Logger

	label *string
	on    bool

	term         *terminal.State
	termSignal   *core.Signal
	stateChanged StateChangedFunc

	onEvent    EventHandler
	onTurnOn   func()
	onShutdown func()
	onReboot   func()
}

// New opens a session over backend, loading its label and file tree.
func New(backend persist.Backend, opts ...Option) (*Session, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.StateChanged == nil {
		options.StateChanged = func(*string, bool) {}
	}

	label, err := backend.Label()
	if err != nil {
		return nil, fmt.Errorf("failed to load label: %w", err)
	}

	tree, err := filesystem.Load(backend, options.Logger)
	if err != nil {
		return nil, err
	}

	term, err := terminal.New(options.Width, options.Height)
	if err != nil {
		return nil, err
	}

	s := &Session{
		backend:      backend,
		tree:         tree,
		logger:       options.Logger,
		label:        label,
		term:         term,
		termSignal:   core.NewSignal(),
		stateChanged: options.StateChanged,
	}
	s.logger.Debug().Int("entries", tree.Len()).Bool("labelled", label != nil).Msg("opened session")
	return s, nil
}

// Logger returns the session's logger.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// Filesystem returns the session's file tree.
func (s *Session) Filesystem() *filesystem.Tree {
	return s.tree
}

// Entry returns the live entry at path, if any.
func (s *Session) Entry(path string) (*filesystem.Entry, bool) {
	return s.tree.Entry(path)
}

// CreateDirectory returns the directory at path, creating it and any missing
// parents.
func (s *Session) CreateDirectory(path string) (*filesystem.Entry, error) {
	return s.tree.CreateDirectory(path)
}

// CreateFile returns the file at path, creating it if its parent directory
// exists.
func (s *Session) CreateFile(path string) (*filesystem.Entry, error) {
	return s.tree.CreateFile(path)
}

// DeleteEntry removes path and everything under it.
func (s *Session) DeleteEntry(path string) error {
	return s.tree.Delete(path)
}

// Label returns the computer's label, or nil if it has none.
func (s *Session) Label() *string {
	return copyLabel(s.label)
}

// SetLabel changes the label, saving it only if it differs from the current
// one, and then reports the label and power state to the state-changed
// callback.
func (s *Session) SetLabel(label *string) error {
	if err := s.saveLabel(label); err != nil {
		return err
	}
	s.stateChanged(s.Label(), s.on)
	return nil
}

// SetState records the label and power state reported by the running
// computer, then passes both to the state-changed callback. The callback is
// not run if the label could not be saved.
func (s *Session) SetState(label *string, on bool) error {
	if err := s.saveLabel(label); err != nil {
		return err
	}
	s.on = on
	s.stateChanged(s.Label(), on)
	return nil
}

func (s *Session) saveLabel(label *string) error {
	if sameLabel(s.label, label) {
		return nil
	}
	if err := s.backend.SetLabel(label); err != nil {
		return fmt.Errorf("failed to save label: %w", err)
	}
	s.label = copyLabel(label)
	s.logger.Debug().Interface("label", label).Msg("label changed")
	return nil
}

// IsOn reports the power state last given to SetState.
func (s *Session) IsOn() bool {
	return s.on
}

// Terminal returns the live terminal.
func (s *Session) Terminal() *terminal.State {
	return s.term
}

// TerminalSignal fires on every FlushTerminal.
func (s *Session) TerminalSignal() *core.Signal {
	return s.termSignal
}

// Snapshot copies the terminal into its wire form.
func (s *Session) Snapshot() terminal.Snapshot {
	return s.term.Snapshot()
}

// UpdateTerminal resizes the terminal and moves the cursor. cursorColour is
// a colour number, 0 to 15.
func (s *Session) UpdateTerminal(width, height, cursorX, cursorY int, blink bool, cursorColour int) error {
	if err := s.term.Resize(width, height); err != nil {
		return err
	}
	return s.term.SetCursor(cursorX, cursorY, blink, cursorColour)
}

// SetTerminalLine replaces one row of the terminal.
func (s *Session) SetTerminalLine(row int, text, fore, back string) error {
	return s.term.SetLine(row, text, fore, back)
}

// SetPaletteColour sets a palette entry from channels between 0 and 1.
func (s *Session) SetPaletteColour(colour int, r, g, b float64) error {
	return s.term.SetPaletteColour(colour, r, g, b)
}

// SetPaletteRGB sets a palette entry from 8-bit channels.
func (s *Session) SetPaletteRGB(colour int, r, g, b uint8) error {
	return s.term.SetPaletteRGB(colour, r, g, b)
}

// FlushTerminal tells terminal observers that a batch of updates is complete.
func (s *Session) FlushTerminal() error {
	s.logger.Trace().Msg("flushing terminal")
	return s.termSignal.Signal()
}

// OnEvent sets the handler for queued events.
func (s *Session) OnEvent(handler EventHandler) error {
	if s.onEvent != nil {
		return fmt.Errorf("event: %w", ErrHandlerSet)
	}
	s.onEvent = handler
	return nil
}

// OnTurnOn sets the handler run by TurnOn.
func (s *Session) OnTurnOn(handler func()) error {
	return setHandler(&s.onTurnOn, handler, "turn on")
}

// OnShutdown sets the handler run by Shutdown.
func (s *Session) OnShutdown(handler func()) error {
	return setHandler(&s.onShutdown, handler, "shutdown")
}

// OnReboot sets the handler run by Reboot.
func (s *Session) OnReboot(handler func()) error {
	return setHandler(&s.onReboot, handler, "reboot")
}

func setHandler(slot *func(), handler func(), name string) error {
	if *slot != nil {
		return fmt.Errorf("%s: %w", name, ErrHandlerSet)
	}
	*slot = handler
	return nil
}

// QueueEvent encodes each argument as JSON and passes the event to the
// event handler. Without a handler the event is dropped.
func (s *Session) QueueEvent(event string, args ...any) error {
	if s.onEvent == nil {
		s.logger.Trace().Str("event", event).Msg("dropping event, no handler")
		return nil
	}

	encoded := make([]string, len(args))
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("event %s argument %d: %w", event, i, err)
		}
		encoded[i] = string(data)
	}

	s.onEvent(event, encoded)
	return nil
}

// TurnOn asks the running computer to start.
func (s *Session) TurnOn() {
	if s.onTurnOn != nil {
		s.onTurnOn()
	}
}

// Shutdown asks the running computer to stop.
func (s *Session) Shutdown() {
	if s.onShutdown != nil {
		s.onShutdown()
	}
}

// Reboot asks the running computer to restart.
func (s *Session) Reboot() {
	if s.onReboot != nil {
		s.onReboot()
	}
}

func sameLabel(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyLabel(label *string) *string {
	if label == nil {
		return nil
	}
	value := *label
	return &value
}
