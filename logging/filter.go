package logging

import (
	"os"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// EnvFilter is the environment variable holding the verbosity filter.
const EnvFilter = "TESTLOG"

// DefaultLevel applies when no directive matches and no override is set.
const DefaultLevel = zapcore.InfoLevel

// levelOff disables output for a target entirely ("target=off").
const levelOff = zapcore.InvalidLevel

// Filter selects a minimum level per target. The zero value enables
// everything at DefaultLevel.
type Filter struct {
	fallback zapcore.Level
	rules    []rule
}

type rule struct {
	target string
	level  zapcore.Level
}

// ParseFilter parses a comma-separated directive list. Each directive is
// either a bare level, which replaces the fallback, or a target=level
// pair. Directives that do not parse are skipped individually; level names
// are whatever zapcore.ParseLevel accepts, plus "off".
func ParseFilter(s string, fallback zapcore.Level) Filter {
	f := Filter{fallback: fallback}
	for _, directive := range strings.Split(s, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		target, levelText, found := strings.Cut(directive, "=")
		if !found {
			if level, ok := parseLevel(directive); ok {
				f.fallback = level
			}
			continue
		}
		target = strings.TrimSpace(target)
		level, ok := parseLevel(strings.TrimSpace(levelText))
		if !ok || target == "" {
			continue
		}
		f.rules = append(f.rules, rule{target: target, level: level})
	}
	// Longest target first so Level picks the most specific match.
	sort.SliceStable(f.rules, func(i, j int) bool {
		return len(f.rules[i].target) > len(f.rules[j].target)
	})
	return f
}

// FromEnv builds a Filter from the EnvFilter variable. An unset or empty
// variable yields a filter that passes everything at the fallback level.
func FromEnv(fallback zapcore.Level) Filter {
	return ParseFilter(os.Getenv(EnvFilter), fallback)
}

func parseLevel(text string) (zapcore.Level, bool) {
	if text == "" {
		// zapcore.ParseLevel treats "" as info; an empty level in a
		// directive is a typo, not a request for the default.
		return 0, false
	}
	if strings.EqualFold(text, "off") {
		return levelOff, true
	}
	level, err := zapcore.ParseLevel(text)
	if err != nil {
		return 0, false
	}
	return level, true
}

// Level reports the minimum enabled level for the given target (a logger
// name or instrumentation scope). The most specific matching directive
// wins; with no match the fallback applies.
func (f Filter) Level(target string) zapcore.Level {
	for _, r := range f.rules {
		if matchTarget(target, r.target) {
			return r.level
		}
	}
	// The zero value of zapcore.Level is info, so a zero Filter already
	// falls back to DefaultLevel.
	return f.fallback
}

// Enabled reports whether a message at level from target passes the filter.
func (f Filter) Enabled(target string, level zapcore.Level) bool {
	min := f.Level(target)
	if min == levelOff {
		return false
	}
	return level >= min
}

// validFilter reports whether at least one directive in s parses.
func validFilter(s string) bool {
	for _, directive := range strings.Split(s, ",") {
		directive = strings.TrimSpace(directive)
		if directive == "" {
			continue
		}
		target, levelText, found := strings.Cut(directive, "=")
		if !found {
			if _, ok := parseLevel(directive); ok {
				return true
			}
			continue
		}
		if _, ok := parseLevel(strings.TrimSpace(levelText)); ok && strings.TrimSpace(target) != "" {
			return true
		}
	}
	return false
}

func matchTarget(name, target string) bool {
	if name == target {
		return true
	}
	return strings.HasPrefix(name, target+".") || strings.HasPrefix(name, target+"/")
}
