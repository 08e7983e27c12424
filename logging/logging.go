package logging

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// setupOnce guards construction of the process-wide logger. Parallel
	// tests race on Init by design; only the first caller constructs.
	setupOnce sync.Once
	setupErr  error

	global atomic.Pointer[zap.Logger]

	// output is shared by every test in the binary; Init pushes a binding
	// to the calling test and drops it again on cleanup.
	output = &Writer{}
)

// Option configures construction of the process-wide logger. Options are
// honored only by the first Init call in the process; later calls inherit
// the already-built logger.
type Option func(*options)

type options struct {
	defaultFilter string
	color         bool
}

// WithDefaultFilter sets the filter applied when EnvFilter is unset or
// empty. It accepts the same directive syntax as the variable itself.
func WithDefaultFilter(filter string) Option {
	return func(o *options) { o.defaultFilter = filter }
}

// WithColor enables ANSI level coloring in the console encoding.
func WithColor() Option {
	return func(o *options) { o.color = true }
}

// Init makes sure the process-wide logger exists and that its output is
// captured by tb for the duration of the test. The first call constructs
// the logger from the TESTLOG environment and installs it via
// zap.ReplaceGlobals; every later call, including concurrent ones from
// parallel tests, succeeds without reinitializing. Callers are expected to
// discard the error in test prologues: a failed construction degrades to a
// no-op logger rather than failing the test.
func Init(tb testing.TB, opts ...Option) error {
	if tb == nil {
		return ErrNilTarget
	}
	tb.Helper()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	setupOnce.Do(func() {
		logger, err := newLogger(o, output)
		if err != nil {
			setupErr = err
			return
		}
		global.Store(logger)
		zap.ReplaceGlobals(logger)
	})

	restore := output.swap(tb)
	tb.Cleanup(restore)
	return setupErr
}

// L returns the process-wide test logger, or a no-op logger when Init has
// not run (or failed).
func L() *zap.Logger {
	if logger := global.Load(); logger != nil {
		return logger
	}
	return zap.NewNop()
}

// newLogger builds the logger from the environment. Level parsing is
// delegated to zapcore; a filter that fails to parse falls back to
// DefaultLevel rather than erroring.
func newLogger(o options, w zapcore.WriteSyncer) (*zap.Logger, error) {
	if o.defaultFilter != "" && !validFilter(o.defaultFilter) {
		return nil, ErrBadDefaultFilter
	}
	filter := ParseFilter(o.defaultFilter, DefaultLevel)
	if env := os.Getenv(EnvFilter); env != "" {
		// The environment wins over the baked-in default filter.
		filter = ParseFilter(env, filter.Level(""))
	}

	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if o.color && colorCapable() {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), w, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		// Per-target gating happens in filterCore; this enabler only
		// rejects levels no directive could ever admit.
		return l >= minLevel(filter)
	}))
	return zap.New(&filterCore{Core: core, filter: filter}), nil
}

// colorCapable reports whether escape sequences are worth emitting. Test
// logs pass through the harness untouched, so this only vetoes color when
// the fallback stream (stderr) is clearly not a terminal.
func colorCapable() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func minLevel(f Filter) zapcore.Level {
	min := f.fallback
	for _, r := range f.rules {
		if r.level < min {
			min = r.level
		}
	}
	return min
}

// filterCore applies per-target level directives on top of a zapcore.Core.
type filterCore struct {
	zapcore.Core
	filter Filter
}

func (c *filterCore) With(fields []zapcore.Field) zapcore.Core {
	return &filterCore{Core: c.Core.With(fields), filter: c.filter}
}

func (c *filterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.filter.Enabled(ent.LoggerName, ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}
