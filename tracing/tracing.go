package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/testlog/logging"
)

// Option configures a single Init call. Unlike logging, every test gets a
// fresh pipeline, so options apply per call.
type Option func(*options)

type options struct {
	events        Events
	fromEnv       bool
	color         bool
	writer        io.Writer
	skipGlobal    bool
	defaultFilter string
}

// WithDefaultFilter sets the verbosity filter applied to lifecycle
// markers when the TESTLOG variable is unset.
func WithDefaultFilter(filter string) Option {
	return func(o *options) { o.defaultFilter = filter }
}

// WithSpanEvents requests lifecycle markers at the given points,
// regardless of the environment.
func WithSpanEvents(e Events) Option {
	return func(o *options) { o.events = e }
}

// WithEnvSpanEvents reads the marker set from EnvSpanEvents in addition to
// anything requested through WithSpanEvents.
func WithEnvSpanEvents() Option {
	return func(o *options) { o.fromEnv = true }
}

// WithColor colorizes lifecycle marker lines.
func WithColor() Option {
	return func(o *options) { o.color = true }
}

// WithWriter overrides the destination for spans and markers. The default
// is the calling test's captured log.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithoutGlobal skips installing the provider as the process global. The
// returned provider must then be threaded through explicitly.
func WithoutGlobal() Option {
	return func(o *options) { o.skipGlobal = true }
}

// installs tracks every provider currently installed by a running test.
// The global always points at the top of the stack; a test's cleanup
// removes its own entry by identity, so parallel tests finishing out of
// order never reinstate a provider whose test has already ended.
var installs providerStack

type providerStack struct {
	mu    sync.Mutex
	prev  trace.TracerProvider
	stack []trace.TracerProvider
}

func (s *providerStack) push(tp trace.TracerProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		s.prev = otel.GetTracerProvider()
	}
	s.stack = append(s.stack, tp)
	otel.SetTracerProvider(tp)
}

func (s *providerStack) remove(tp trace.TracerProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == tp {
			s.stack = append(s.stack[:i], s.stack[i+1:]...)
			break
		}
	}
	if len(s.stack) == 0 {
		otel.SetTracerProvider(s.prev)
		s.prev = nil
		return
	}
	otel.SetTracerProvider(s.stack[len(s.stack)-1])
}

// Init builds a tracer provider bound to tb and installs it as the global
// provider for the duration of the test. Restoration and shutdown are
// registered through tb.Cleanup, which runs on every exit path, so the
// installation cannot outlive the test body. The provider is also
// returned for tests that prefer to reach it directly.
func Init(tb testing.TB, opts ...Option) trace.TracerProvider {
	if tb == nil {
		return tracenoop.NewTracerProvider()
	}
	tb.Helper()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fromEnv {
		o.events |= EventsFromEnv()
	}
	w := o.writer
	if w == nil {
		w = logging.NewWriter(tb)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		// Tracing is diagnostics, not behavior: degrade instead of
		// failing the test.
		tb.Logf("testlog: span exporter unavailable: %v", err)
		return tracenoop.NewTracerProvider()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSpanProcessor(&markerProcessor{
			w:      w,
			events: o.events,
			color:  o.color,
			filter: markerFilter(o.defaultFilter),
		}),
	)

	// Cleanups run last-registered first: the stack entry goes before
	// shutdown, so the global never points at a shut-down provider.
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	})
	if !o.skipGlobal {
		installs.push(tp)
		tb.Cleanup(func() { installs.remove(tp) })
	}
	return tp
}

// markerFilter resolves the marker verbosity filter: the environment wins
// over the baked-in default.
func markerFilter(defaultFilter string) logging.Filter {
	filter := logging.ParseFilter(defaultFilter, logging.DefaultLevel)
	if env := os.Getenv(logging.EnvFilter); env != "" {
		filter = logging.ParseFilter(env, filter.Level(""))
	}
	return filter
}

// ANSI codes for marker lines; kept minimal on purpose.
const (
	colorCyan  = "\x1b[36m"
	colorReset = "\x1b[0m"
)

// markerProcessor writes span lifecycle markers to the test's stream. It
// performs no buffering: each marker must be visible even if the test
// panics before the span ends.
type markerProcessor struct {
	w      io.Writer
	events Events
	color  bool
	filter logging.Filter
}

var _ sdktrace.SpanProcessor = (*markerProcessor)(nil)

func (p *markerProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if !p.scopeEnabled(s.InstrumentationScope().Name) {
		return
	}
	if p.events.Has(EventNew) {
		p.marker("new", s.Name(), "")
	}
	if p.events.Has(EventEnter) {
		p.marker("enter", s.Name(), "")
	}
}

func (p *markerProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if !p.scopeEnabled(s.InstrumentationScope().Name) {
		return
	}
	if p.events.Has(EventExit) {
		p.marker("exit", s.Name(), "")
	}
	if p.events.Has(EventClose) {
		p.marker("close", s.Name(), s.EndTime().Sub(s.StartTime()).String())
	}
}

func (p *markerProcessor) Shutdown(context.Context) error   { return nil }
func (p *markerProcessor) ForceFlush(context.Context) error { return nil }

func (p *markerProcessor) scopeEnabled(scope string) bool {
	return p.filter.Enabled(scope, logging.DefaultLevel)
}

func (p *markerProcessor) marker(point, span, elapsed string) {
	if p.color {
		point = colorCyan + point + colorReset
	}
	if elapsed != "" {
		fmt.Fprintf(p.w, "span %q %s elapsed=%s\n", span, point, elapsed)
		return
	}
	fmt.Fprintf(p.w, "span %q %s\n", span, point)
}
