// Package logging initializes a process-wide structured logger for tests.
//
// Init is safe to call from every test in a binary: the underlying zap
// logger is constructed exactly once, and repeated or concurrent calls are
// not an error. Output is routed through a swappable writer that points at
// the calling test's log, so messages land in the per-test captured stream
// and are shown only when the test fails (or with -v).
//
// Verbosity is read from the TESTLOG environment variable: a
// comma-separated list of directives, each either a bare level ("debug")
// or a target=level pair ("github.com/acme/pkg=warn"). Unparsable
// directives are skipped; when the variable is unset or yields nothing,
// a default level of info applies.
//
//	func TestItWorks(t *testing.T) {
//	    _ = logging.Init(t)
//	    zap.L().Info("checking whether it still works...")
//	}
package logging
