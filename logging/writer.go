package logging

import (
	"bytes"
	"os"
	"sync"
	"testing"
)

// Writer forwards writes to a test's log, so output obeys the harness's
// capture rules. It implements zapcore.WriteSyncer and may be handed to
// any backend that takes an io.Writer.
//
// Bindings form a stack: parallel tests each push their own entry and
// output goes to the most recent live binding. A test removes its own
// entry on cleanup regardless of completion order, so a finished test
// never receives another test's output.
type Writer struct {
	mu    sync.Mutex
	bound []testing.TB
}

// NewWriter returns a Writer bound to tb.
func NewWriter(tb testing.TB) *Writer {
	return &Writer{bound: []testing.TB{tb}}
}

// Write logs p through the most recently bound test. When no test is
// bound (the process is past every test's lifetime, or Init was never
// given a target) the bytes go to stderr instead of being dropped.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	var tb testing.TB
	if n := len(w.bound); n > 0 {
		tb = w.bound[n-1]
	}
	w.mu.Unlock()
	if tb == nil {
		return os.Stderr.Write(p)
	}
	// Logf appends its own newline.
	tb.Logf("%s", bytes.TrimSuffix(p, []byte("\n")))
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. Test logs need no flushing.
func (w *Writer) Sync() error { return nil }

// swap pushes a binding to tb and returns a func that removes that exact
// binding again. Used by Init so each test sees its own captured output
// while the zap logger itself stays process-global. Removal is by
// identity, not stack position: when parallel tests finish out of order,
// each drops only its own entry and the remaining tests keep theirs.
func (w *Writer) swap(tb testing.TB) (restore func()) {
	w.mu.Lock()
	w.bound = append(w.bound, tb)
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i := len(w.bound) - 1; i >= 0; i-- {
			if w.bound[i] == tb {
				w.bound = append(w.bound[:i], w.bound[i+1:]...)
				return
			}
		}
	}
}
