package rewrite

import (
	"fmt"
	"strings"
)

// Import paths of the runtime packages the generated prologue calls into.
const (
	importLogging = "github.com/jonwraymond/testlog/logging"
	importTracing = "github.com/jonwraymond/testlog/tracing"
)

// Features selects which initialization statements the rewrite injects.
// The selection is fixed per generator run; it is not inspectable by the
// generated code at test run time.
type Features struct {
	// Log injects idempotent structured-logging initialization.
	Log bool
	// Trace injects scope-bounded span-tracing installation.
	Trace bool
	// Color enables colorized output in both backends.
	Color bool
	// Unstable enables the unstable tier: span lifecycle events from the
	// environment and the default-filter directive.
	Unstable bool
}

// DefaultFeatures matches the out-of-the-box selection: logging only.
func DefaultFeatures() Features {
	return Features{Log: true}
}

// ParseFeatures parses a comma-separated feature list. An empty list means
// no features (pure pass-through rewriting); unknown tokens are an error,
// not a fallback.
func ParseFeatures(s string) (Features, error) {
	var f Features
	for _, token := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(token)) {
		case "":
		case "log":
			f.Log = true
		case "trace":
			f.Trace = true
		case "color":
			f.Color = true
		case "unstable":
			f.Unstable = true
		default:
			return Features{}, fmt.Errorf("%w: %q", ErrUnknownFeature, strings.TrimSpace(token))
		}
	}
	return f, nil
}

// String renders the selection in ParseFeatures syntax.
func (f Features) String() string {
	var parts []string
	if f.Log {
		parts = append(parts, "log")
	}
	if f.Trace {
		parts = append(parts, "trace")
	}
	if f.Color {
		parts = append(parts, "color")
	}
	if f.Unstable {
		parts = append(parts, "unstable")
	}
	return strings.Join(parts, ",")
}

// prologue returns the initialization statements for one function, with
// tb naming its testing parameter, plus the import paths those statements
// need. Logging comes first: the logging backend must exist before any
// trace output might be mirrored through it.
func (f Features) prologue(d Directive, tb string) (stmts, imports []string) {
	if f.Log {
		opts := []string{tb}
		if d.DefaultFilter != "" && f.Unstable {
			opts = append(opts, fmt.Sprintf("logging.WithDefaultFilter(%q)", d.DefaultFilter))
		}
		if f.Color {
			opts = append(opts, "logging.WithColor()")
		}
		stmts = append(stmts, fmt.Sprintf("_ = logging.Init(%s)", strings.Join(opts, ", ")))
		imports = append(imports, importLogging)
	}
	if f.Trace {
		opts := []string{tb}
		if d.DefaultFilter != "" && f.Unstable {
			opts = append(opts, fmt.Sprintf("tracing.WithDefaultFilter(%q)", d.DefaultFilter))
		}
		if f.Color {
			opts = append(opts, "tracing.WithColor()")
		}
		if f.Unstable {
			opts = append(opts, "tracing.WithEnvSpanEvents()")
		}
		stmts = append(stmts, fmt.Sprintf("tracing.Init(%s)", strings.Join(opts, ", ")))
		imports = append(imports, importTracing)
	}
	return stmts, imports
}

// active reports whether any initialization would be injected.
func (f Features) active() bool {
	return f.Log || f.Trace
}
