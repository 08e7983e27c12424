package rewrite

import (
	"errors"
	"fmt"
	"go/token"
)

var (
	// ErrNotFunction indicates a //testlog:test directive on something
	// other than a function declaration.
	ErrNotFunction = errors.New("rewrite: //testlog:test can only be applied to functions")

	// ErrBadDirective indicates directive arguments that do not parse as
	// a wrapper path with optional argument tokens.
	ErrBadDirective = errors.New("rewrite: malformed //testlog:test arguments")

	// ErrNoTestParam indicates an annotated function with no testing.TB,
	// *testing.T, *testing.B, or *testing.F parameter while a feature
	// requiring initialization is selected.
	ErrNoTestParam = errors.New("rewrite: function needs a testing parameter for initialization")

	// ErrUnnamedParam indicates a parameter that cannot be forwarded to
	// the inner function because it has no usable name.
	ErrUnnamedParam = errors.New("rewrite: parameters must be named")

	// ErrUnknownFeature indicates an unrecognized feature token.
	ErrUnknownFeature = errors.New("rewrite: unknown feature")
)

// Diagnostic is a compile-time error anchored to the offending source
// location. It wraps one of the sentinel errors above.
type Diagnostic struct {
	Position token.Position
	Err      error
	Detail   string
}

func (d *Diagnostic) Error() string {
	if d.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", d.Position, d.Err, d.Detail)
	}
	return fmt.Sprintf("%s: %v", d.Position, d.Err)
}

func (d *Diagnostic) Unwrap() error { return d.Err }
