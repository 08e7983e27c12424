package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/testlog/rewrite"
)

const annotated = `package sample_test

import "testing"

//testlog:test
func TestItWorks(t *testing.T) {
	if 2+2 != 4 {
		t.Fatal("math is broken")
	}
}
`

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRun_PrintsRewriteToStdout(t *testing.T) {
	dir := t.TempDir()
	file := writeTestFile(t, dir, "sample_test.go", annotated)

	out, err := execute(t, file)
	require.NoError(t, err)
	assert.Contains(t, out, "_ = logging.Init(t)")
	assert.Contains(t, out, "testItWorks := func(t *testing.T) {")

	// Stdout mode must not touch the file.
	src, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, annotated, string(src))
}

func TestRun_WriteInPlace(t *testing.T) {
	dir := t.TempDir()
	file := writeTestFile(t, dir, "sample_test.go", annotated)

	out, err := execute(t, "--write", "--features", "log,trace", file)
	require.NoError(t, err)
	assert.Empty(t, out)

	src, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(src), "logging.Init(t)")
	assert.Contains(t, string(src), "tracing.Init(t)")

	// A second run over its own output is a no-op.
	_, err = execute(t, "--write", "--features", "log,trace", file)
	require.NoError(t, err)
	again, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, string(src), string(again))
}

func TestRun_ListChangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "alpha_test.go", annotated)
	writeTestFile(t, dir, "plain_test.go", "package sample_test\n")
	writeTestFile(t, dir, "ignored.go", annotated) // not a test file

	out, err := execute(t, "--list", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "alpha_test.go"))
	assert.NotContains(t, out, "plain_test.go")
	assert.NotContains(t, out, "ignored.go")
}

func TestRun_SkipsVendorAndHiddenDirs(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"vendor", "testdata", ".cache", "_attic"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
		writeTestFile(t, dir, filepath.Join(sub, "skip_test.go"), annotated)
	}
	writeTestFile(t, dir, "keep_test.go", annotated)

	out, err := execute(t, "--list", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "keep_test.go")
	assert.NotContains(t, out, "skip_test.go")
}

func TestRun_DiagnosticFailure(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "bad_test.go", `package sample_test

//testlog:test
type Widget struct{}
`)

	_, err := execute(t, "--list", dir)
	require.ErrorIs(t, err, rewrite.ErrNotFunction)
	assert.Contains(t, err.Error(), "bad_test.go:3")
}

func TestRun_ReportsEveryDiagnostic(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "alpha_test.go", `package sample_test

//testlog:test
type Widget struct{}
`)
	writeTestFile(t, dir, "beta_test.go", `package sample_test

//testlog:test frob(
func TestFrob(t *testing.T) {}
`)

	// One run surfaces both files' diagnostics, not just whichever
	// failed first.
	_, err := execute(t, "--list", dir)
	require.ErrorIs(t, err, rewrite.ErrNotFunction)
	require.ErrorIs(t, err, rewrite.ErrBadDirective)
	assert.Contains(t, err.Error(), "alpha_test.go:3")
	assert.Contains(t, err.Error(), "beta_test.go:3")
}

func TestRun_UnknownFeature(t *testing.T) {
	_, err := execute(t, "--features", "log,metrics", t.TempDir())
	require.ErrorIs(t, err, rewrite.ErrUnknownFeature)
}

func TestFeaturesFromEnvironment(t *testing.T) {
	t.Setenv("TESTLOGGEN_FEATURES", "trace")

	dir := t.TempDir()
	file := writeTestFile(t, dir, "sample_test.go", annotated)

	out, err := execute(t, file)
	require.NoError(t, err)
	assert.Contains(t, out, "tracing.Init(t)")
	assert.NotContains(t, out, "logging.Init(t)")
}

func TestFeaturesFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("TESTLOGGEN_FEATURES", "trace")

	dir := t.TempDir()
	file := writeTestFile(t, dir, "sample_test.go", annotated)

	out, err := execute(t, "--features", "log", file)
	require.NoError(t, err)
	assert.Contains(t, out, "logging.Init(t)")
	assert.NotContains(t, out, "tracing.Init(t)")
}
