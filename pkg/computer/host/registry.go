// Package host runs many computer sessions side by side and connects them
// to clients.
//
// A Registry owns every session and serialises all access to them behind a
// single lock. A Scheduler drives the computers' run loop, giving each tick
// a fixed time budget for queued work.
package host

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
	"github.com/SquidDev-CC/bedrock/pkg/computer/protocol"
)

var (
	ErrNoFactory       = errors.New("no computer factory set")
	ErrUnknownComputer = errors.New("unknown computer")
)

// Factory starts whatever runs a newly opened computer. It is called once
// per session, with the registry lock held.
type Factory func(id int, label *string, advanced bool, session *computer.Session) error

// BackendFunc returns the storage for a computer.
type BackendFunc func(id int) (persist.Backend, error)

// Broadcaster delivers a message to every connected client. It is called
// with the registry lock held and must not call back into the Registry.
type Broadcaster func(msg protocol.Message) error

// Greeting is written to the first row of every new terminal.
const Greeting = "Hello"

// Options configures a Registry.
type Options struct {
	Logger      zerolog.Logger
	Backend     BackendFunc
	Factory     Factory
	Broadcaster Broadcaster
	Metrics     *Metrics

	Width, Height int
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets the logger. Each session logs with a "computer" field.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithBackend sets where computers are stored. The default keeps nothing.
func WithBackend(fn BackendFunc) Option {
	return func(opts *Options) {
		opts.Backend = fn
	}
}

// WithFactory sets the function that starts each computer.
func WithFactory(fn Factory) Option {
	return func(opts *Options) {
		opts.Factory = fn
	}
}

// WithBroadcaster sets where terminal updates are sent.
func WithBroadcaster(fn Broadcaster) Option {
	return func(opts *Options) {
		opts.Broadcaster = fn
	}
}

// WithMetrics sets the collectors to report to.
func WithMetrics(metrics *Metrics) Option {
	return func(opts *Options) {
		opts.Metrics = metrics
	}
}

// WithTerminalSize sets the size of new terminals.
func WithTerminalSize(width, height int) Option {
	return func(opts *Options) {
		opts.Width, opts.Height = width, height
	}
}

func defaultOptions() *Options {
	return &Options{
		Logger:      zerolog.Nop(),
		Backend:     func(int) (persist.Backend, error) { return persist.Void{}, nil },
		Broadcaster: func(protocol.Message) error { return nil },
		Width:       computer.DefaultWidth,
		Height:      computer.DefaultHeight,
	}
}

type instance struct {
	session  *computer.Session
	advanced bool
}

// Registry maps computer ids to their sessions.
type Registry struct {
	mu        sync.Mutex
	opts      Options
	metrics   *Metrics
	instances map[int]*instance
	ids       map[string]int
	nextID    int
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Metrics == nil {
		options.Metrics = NewMetrics(nil)
	}

	return &Registry{
		opts:      *options,
		metrics:   options.Metrics,
		instances: make(map[int]*instance),
		ids:       make(map[string]int),
	}
}

// SetFactory replaces the factory used for computers opened from now on.
func (r *Registry) SetFactory(fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Factory = fn
}

// IDFor returns the id for a host-side key, such as a block position,
// allocating the next free id the first time a key is seen.
func (r *Registry) IDFor(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ids[key]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.ids[key] = id
	return id
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Open returns the message announcing computer id to clients, creating its
// session first if this is the first time it has been opened. A computer
// keeps the advanced flag it was first opened with.
func (r *Registry) Open(id int, advanced bool) (protocol.OpenComputer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		var err error
		inst, err = r.create(id, advanced)
		if err != nil {
			return protocol.OpenComputer{}, err
		}
	}

	return protocol.OpenComputer{
		ID:       id,
		Advanced: inst.advanced,
		Terminal: inst.session.Snapshot(),
	}, nil
}

func (r *Registry) create(id int, advanced bool) (*instance, error) {
	if r.opts.Factory == nil {
		return nil, ErrNoFactory
	}

	logger := r.opts.Logger.With().Int("computer", id).Logger()

	backend, err := r.opts.Backend(id)
	if err != nil {
		return nil, fmt.Errorf("computer %d: opening storage: %w", id, err)
	}

	session, err := computer.New(backend,
		computer.WithLogger(logger),
		computer.WithTerminalSize(r.opts.Width, r.opts.Height))
	if err != nil {
		return nil, fmt.Errorf("computer %d: %w", id, err)
	}

	if err := greet(session); err != nil {
		return nil, fmt.Errorf("computer %d: %w", id, err)
	}

	if err := r.opts.Factory(id, session.Label(), advanced, session); err != nil {
		return nil, fmt.Errorf("computer %d: factory: %w", id, err)
	}

	session.TerminalSignal().Attach(func() error {
		return r.broadcast(protocol.SyncTerminal{ID: id, Terminal: session.Snapshot()})
	})

	inst := &instance{session: session, advanced: advanced}
	r.instances[id] = inst
	r.metrics.sessionsOpen.Inc()
	logger.Info().Bool("advanced", advanced).Msg("opened computer")
	return inst, nil
}

func greet(session *computer.Session) error {
	term := session.Terminal()
	text := Greeting
	if len(text) > term.SizeX {
		text = text[:term.SizeX]
	}
	return session.SetTerminalLine(0,
		text+strings.Repeat(" ", term.SizeX-len(text)),
		term.Fore[0], term.Back[0])
}

func (r *Registry) broadcast(msg protocol.Message) error {
	kind := string(msg.Kind())
	r.metrics.messagesSent.WithLabelValues(kind).Inc()
	if err := r.opts.Broadcaster(msg); err != nil {
		r.metrics.messagesFailed.WithLabelValues(kind).Inc()
		r.opts.Logger.Warn().Err(err).Str("kind", kind).Msg("failed to broadcast")
		return err
	}
	return nil
}

// With runs fn on computer id's session while holding the registry lock.
func (r *Registry) With(id int, fn func(session *computer.Session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("computer %d: %w", id, ErrUnknownComputer)
	}
	return fn(inst.session)
}

// HandleAction applies a power action from a client. Actions for computers
// that were never opened are ignored.
func (r *Registry) HandleAction(msg protocol.Action) error {
	return r.handle(msg.ID, msg)
}

// HandleQueueEvent queues a client event. Events for computers that were
// never opened are ignored.
func (r *Registry) HandleQueueEvent(msg protocol.QueueEvent) error {
	return r.handle(msg.ID, msg)
}

func (r *Registry) handle(id int, msg protocol.Message) error {
	err := r.With(id, func(session *computer.Session) error {
		return protocol.Dispatch(session, msg)
	})
	if errors.Is(err, ErrUnknownComputer) {
		r.opts.Logger.Debug().Int("computer", id).Str("kind", string(msg.Kind())).Msg("ignoring message for unknown computer")
		return nil
	}
	return err
}

// Handle routes any decoded client message.
func (r *Registry) Handle(msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.Action:
		return r.HandleAction(*m)
	case protocol.Action:
		return r.HandleAction(m)
	case *protocol.QueueEvent:
		return r.HandleQueueEvent(*m)
	case protocol.QueueEvent:
		return r.HandleQueueEvent(m)
	default:
		return fmt.Errorf("%s: %w", msg.Kind(), protocol.ErrUnexpectedMessage)
	}
}
