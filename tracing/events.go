package tracing

import (
	"os"
	"strings"
)

// EnvSpanEvents is the environment variable selecting span lifecycle
// markers.
const EnvSpanEvents = "TESTLOG_SPAN_EVENTS"

// Events is a set of span lifecycle points at which a marker line is
// written.
type Events uint8

const (
	// EventNew marks span creation.
	EventNew Events = 1 << iota
	// EventEnter marks the span becoming active. The tracing SDK has no
	// distinct activation hook, so enter coincides with creation.
	EventEnter
	// EventExit marks the span ceasing to be active; it coincides with
	// the span ending.
	EventExit
	// EventClose marks the span ending, with its elapsed time.
	EventClose
)

const (
	// EventNone requests no lifecycle markers.
	EventNone Events = 0
	// EventActive is shorthand for enter and exit.
	EventActive = EventEnter | EventExit
	// EventFull is shorthand for every lifecycle point.
	EventFull = EventNew | EventEnter | EventExit | EventClose
)

var eventNames = map[string]Events{
	"new":    EventNew,
	"enter":  EventEnter,
	"exit":   EventExit,
	"close":  EventClose,
	"active": EventActive,
	"full":   EventFull,
}

// ParseEvents parses a comma-separated event list. Unknown tokens are
// ignored individually, so "new,bogus,close" yields new|close.
func ParseEvents(s string) Events {
	var events Events
	for _, token := range strings.Split(s, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if e, ok := eventNames[token]; ok {
			events |= e
		}
	}
	return events
}

// EventsFromEnv reads EnvSpanEvents. Unset means no markers.
func EventsFromEnv() Events {
	return ParseEvents(os.Getenv(EnvSpanEvents))
}

// Has reports whether every lifecycle point in flag is requested.
func (e Events) Has(flag Events) bool {
	return flag != 0 && e&flag == flag
}

func (e Events) String() string {
	if e == EventNone {
		return "none"
	}
	var parts []string
	for _, name := range []string{"new", "enter", "exit", "close"} {
		if e.Has(eventNames[name]) {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ",")
}
