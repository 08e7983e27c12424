package tracing

import "testing"

func TestParseEvents(t *testing.T) {
	tests := []struct {
		in   string
		want Events
	}{
		{"", EventNone},
		{"new", EventNew},
		{"new,close", EventNew | EventClose},
		{"NEW, Close", EventNew | EventClose},
		{"active", EventEnter | EventExit},
		{"full", EventNew | EventEnter | EventExit | EventClose},
		{"enter,exit", EventActive},
		// Invalid tokens degrade individually, never the whole list.
		{"new,bogus,close", EventNew | EventClose},
		{"bogus", EventNone},
		{",,new,", EventNew},
	}
	for _, tc := range tests {
		if got := ParseEvents(tc.in); got != tc.want {
			t.Errorf("ParseEvents(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEventsFromEnv(t *testing.T) {
	t.Setenv(EnvSpanEvents, "new,close")
	if got := EventsFromEnv(); got != EventNew|EventClose {
		t.Fatalf("EventsFromEnv() = %v", got)
	}

	t.Setenv(EnvSpanEvents, "")
	if got := EventsFromEnv(); got != EventNone {
		t.Fatalf("unset variable must mean no markers, got %v", got)
	}
}

func TestEventsHas(t *testing.T) {
	e := EventNew | EventClose
	if !e.Has(EventNew) || !e.Has(EventClose) {
		t.Fatal("Has must report requested points")
	}
	if e.Has(EventEnter) || e.Has(EventFull) {
		t.Fatal("Has must require every point in the flag")
	}
	if e.Has(EventNone) {
		t.Fatal("the empty flag is never present")
	}
}

func TestEventsString(t *testing.T) {
	tests := []struct {
		e    Events
		want string
	}{
		{EventNone, "none"},
		{EventNew, "new"},
		{EventNew | EventClose, "new,close"},
		{EventFull, "new,enter,exit,close"},
	}
	for _, tc := range tests {
		if got := tc.e.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.e, got, tc.want)
		}
	}
}
