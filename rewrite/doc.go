// Package rewrite transforms annotated test functions so that diagnostic
// output is initialized before the body runs.
//
// A function carrying a //testlog:test directive is rewritten in place:
// its body is renamed into an inner function and the new body runs the
// feature-selected initialization prologue, then delegates to the inner
// function with every argument forwarded and the result (if any) returned.
// The directive may name a wrapper (another test entry point that
// changes the calling convention, such as synctest.Test), in which case
// the body is handed to the wrapper as a function literal with the
// prologue as its first statements:
//
//	//testlog:test
//	func TestItWorks(t *testing.T) { ... }
//
//	//testlog:test synctest.Test
//	func TestWithFakeTime(t *testing.T) { ... }
//
// Name, signature, doc comments, and the body's own text survive the
// rewrite byte-for-byte; only the enclosing braces change hands. The
// transformation is pure: one source file in, one source file out, and
// any shape problem (directive on a non-function, malformed wrapper
// tokens) is reported as a positioned diagnostic with nothing generated.
package rewrite
