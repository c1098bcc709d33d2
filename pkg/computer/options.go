package computer

import "github.com/rs/zerolog"

// Default terminal dimensions, matching a standard computer screen.
const (
	DefaultWidth  = 51
	DefaultHeight = 19
)

// StateChangedFunc is told whenever the session's label or power state is
// reported by the running computer.
type StateChangedFunc func(label *string, on bool)

// Options configures a Session.
type Options struct {
	// Logger receives session and filesystem logs. Defaults to a disabled logger.
	Logger zerolog.Logger

	// Width and Height give the initial terminal size.
	Width, Height int

	// StateChanged is invoked by SetLabel and SetState.
	StateChanged StateChangedFunc
}

// Option configures Options.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithTerminalSize sets the initial terminal size.
func WithTerminalSize(width, height int) Option {
	return func(opts *Options) {
		opts.Width, opts.Height = width, height
	}
}

// WithStateChanged sets the callback run by SetLabel and SetState.
func WithStateChanged(fn StateChangedFunc) Option {
	return func(opts *Options) {
		opts.StateChanged = fn
	}
}

func defaultOptions() *Options {
	return &Options{
		Logger:       zerolog.Nop(),
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		StateChanged: func(*string, bool) {},
	}
}
