package rewrite

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, src string) (Directive, bool, error) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "dir_test.go", "package p\n\n"+src+"\nfunc TestX(t *testing.T) {}\n", parser.ParseComments)
	require.NoError(t, err)
	require.Len(t, f.Decls, 1)
	return directiveOf(docOf(f.Decls[0]))
}

func TestDirectiveOf(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Directive
	}{
		{
			name: "bare",
			doc:  "//testlog:test",
			want: Directive{},
		},
		{
			name: "wrapper path",
			doc:  "//testlog:test synctest.Test",
			want: Directive{Wrapper: "synctest.Test"},
		},
		{
			name: "single segment wrapper",
			doc:  "//testlog:test runParallel",
			want: Directive{Wrapper: "runParallel"},
		},
		{
			name: "wrapper with args",
			doc:  "//testlog:test harness.Run(harness.WithTimeout(5))",
			want: Directive{Wrapper: "harness.Run", WrapperArgs: "harness.WithTimeout(5)"},
		},
		{
			name: "default filter",
			doc:  "//testlog:test\n//testlog:default-filter debug",
			want: Directive{DefaultFilter: "debug"},
		},
		{
			name: "surrounding prose kept out of the way",
			doc:  "// TestX exercises the frobnicator.\n//testlog:test",
			want: Directive{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, found, err := parseDoc(t, tc.doc)
			require.NoError(t, err)
			require.True(t, found)
			if diff := cmp.Diff(tc.want, got, cmpopts.IgnoreUnexported(Directive{})); diff != "" {
				t.Errorf("directive mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDirectiveOf_Absent(t *testing.T) {
	_, found, err := parseDoc(t, "// just a doc comment")
	require.NoError(t, err)
	assert.False(t, found)

	// A spaced-out marker is prose, not a directive.
	_, found, err = parseDoc(t, "// testlog:test")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDirectiveOf_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"dangling paren", "//testlog:test tokio.Run("},
		{"numeric segment", "//testlog:test 9lives.Run"},
		{"empty segment", "//testlog:test a..b"},
		{"junk after args", "//testlog:test a.B(c) d"},
		{"unknown directive", "//testlog:frobnicate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, found, err := parseDoc(t, tc.doc)
			assert.True(t, found)
			assert.ErrorIs(t, err, ErrBadDirective)
		})
	}
}

func TestParseFeatures(t *testing.T) {
	f, err := ParseFeatures("log,trace,color,unstable")
	require.NoError(t, err)
	assert.Equal(t, Features{Log: true, Trace: true, Color: true, Unstable: true}, f)

	f, err = ParseFeatures("")
	require.NoError(t, err)
	assert.Equal(t, Features{}, f)

	f, err = ParseFeatures(" Trace , LOG ")
	require.NoError(t, err)
	assert.Equal(t, Features{Log: true, Trace: true}, f)

	_, err = ParseFeatures("log,metrics")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestFeaturesString(t *testing.T) {
	assert.Equal(t, "log", DefaultFeatures().String())
	assert.Equal(t, "log,trace,color,unstable",
		Features{Log: true, Trace: true, Color: true, Unstable: true}.String())
	assert.Equal(t, "", Features{}.String())
}
