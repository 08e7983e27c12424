package rewrite

import (
	"go/ast"
	"go/token"
	"strings"
	"unicode"
)

// Directive markers. Like other Go directives they take effect only with
// no space after the slashes.
const (
	// Marker annotates a function for rewriting. Optional argument: a
	// wrapper path, optionally followed by parenthesized tokens that are
	// forwarded verbatim to the wrapper call.
	Marker = "//testlog:test"

	// MarkerDefaultFilter sets the default verbosity filter baked into
	// the generated prologue. Honored only with the unstable feature.
	MarkerDefaultFilter = "//testlog:default-filter"
)

// generatedMarker is left inside rewritten bodies so a second pass over
// the same file leaves them alone.
const generatedMarker = "Generated by testloggen; DO NOT EDIT the prologue."

// Directive is the parsed form of the testlog comment directives attached
// to one function.
type Directive struct {
	// Wrapper is the dotted path of the wrapped test entry point, empty
	// when the function is to be invoked directly.
	Wrapper string
	// WrapperArgs holds the wrapper's own argument tokens verbatim,
	// without the enclosing parentheses.
	WrapperArgs string
	// DefaultFilter is the value of MarkerDefaultFilter, if present.
	DefaultFilter string

	pos token.Pos
}

// directiveOf extracts the testlog directives from a declaration's doc
// comment. found is false when the declaration carries no Marker line.
func directiveOf(doc *ast.CommentGroup) (d Directive, found bool, err error) {
	if doc == nil {
		return Directive{}, false, nil
	}
	for _, c := range doc.List {
		switch {
		case c.Text == Marker || strings.HasPrefix(c.Text, Marker+" "):
			found = true
			d.pos = c.Pos()
			rest := strings.TrimSpace(strings.TrimPrefix(c.Text, Marker))
			d.Wrapper, d.WrapperArgs, err = parseWrapper(rest)
			if err != nil {
				return Directive{pos: c.Pos()}, true, err
			}
		case strings.HasPrefix(c.Text, MarkerDefaultFilter+" "):
			d.DefaultFilter = strings.TrimSpace(strings.TrimPrefix(c.Text, MarkerDefaultFilter))
		case strings.HasPrefix(c.Text, "//testlog:"):
			return Directive{pos: c.Pos()}, true, ErrBadDirective
		}
	}
	return d, found, nil
}

// parseWrapper parses the directive argument: a path of dot-separated
// identifiers, optionally followed by "(" tokens ")". Anything else is a
// parse error; there is no silent fallback.
func parseWrapper(s string) (path, args string, err error) {
	if s == "" {
		return "", "", nil
	}
	path = s
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return "", "", ErrBadDirective
		}
		path = strings.TrimSpace(s[:open])
		args = s[open+1 : len(s)-1]
	}
	if !validPath(path) {
		return "", "", ErrBadDirective
	}
	return path, args, nil
}

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, segment := range strings.Split(path, ".") {
		if !validIdent(segment) {
			return false
		}
	}
	return true
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
