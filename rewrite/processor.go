package rewrite

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/tools/imports"
)

// Processor rewrites the annotated functions of one source file at a
// time. It holds no state between files; a single value may be shared by
// concurrent callers.
type Processor struct {
	features Features
}

// New returns a Processor generating prologues for the given feature
// selection.
func New(features Features) *Processor {
	return &Processor{features: features}
}

// edit is a byte-range replacement over the original source.
type edit struct {
	start, end int
	text       string
}

// File rewrites every function in src that carries a testlog directive.
// changed is false when the file contains no directives (or only already
// rewritten functions); src is then returned unmodified. Any shape error
// aborts the whole file with a *Diagnostic and no output.
func (p *Processor) File(filename string, src []byte) (out []byte, changed bool, err error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, false, fmt.Errorf("rewrite: %w", err)
	}
	tf := fset.File(f.Pos())
	offset := func(pos token.Pos) int { return tf.Offset(pos) }

	var edits []edit
	needed := map[string]bool{}

	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			// Directives on types, vars, or consts are a user error the
			// generator must surface, not skip.
			if d, found, derr := directiveOf(docOf(decl)); found {
				if derr != nil {
					return nil, false, &Diagnostic{Position: fset.Position(d.pos), Err: derr}
				}
				return nil, false, &Diagnostic{Position: fset.Position(d.pos), Err: ErrNotFunction}
			}
			continue
		}

		d, found, derr := directiveOf(fd.Doc)
		if !found {
			continue
		}
		if derr != nil {
			return nil, false, &Diagnostic{Position: fset.Position(d.pos), Err: derr}
		}
		if fd.Body == nil {
			return nil, false, &Diagnostic{Position: fset.Position(fd.Pos()), Err: ErrNotFunction, Detail: "function has no body"}
		}

		bodyText := string(src[offset(fd.Body.Lbrace)+1 : offset(fd.Body.Rbrace)])
		if strings.Contains(bodyText, generatedMarker) {
			continue
		}

		newBody, importPaths, rerr := p.rewriteFunc(fset, src, offset, fd, d, bodyText)
		if rerr != nil {
			return nil, false, rerr
		}
		for _, path := range importPaths {
			needed[path] = true
		}
		edits = append(edits, edit{
			start: offset(fd.Body.Lbrace),
			end:   offset(fd.Body.Rbrace) + 1,
			text:  newBody,
		})
	}

	if len(edits) == 0 {
		return src, false, nil
	}

	if imp := missingImports(f, needed); len(imp) > 0 {
		edits = append(edits, importEdit(f, offset, imp))
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	out = append(out, src...)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		out = append(out[:e.start], append([]byte(e.text), out[e.end:]...)...)
	}

	formatted, err := imports.Process(filename, out, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("rewrite: formatting %s: %w", filename, err)
	}
	return formatted, true, nil
}

// rewriteFunc produces the replacement body (including braces) for one
// annotated function.
func (p *Processor) rewriteFunc(fset *token.FileSet, src []byte, offset func(token.Pos) int, fd *ast.FuncDecl, d Directive, bodyText string) (string, []string, error) {
	paramsText := ""
	if fd.Type.Params != nil {
		paramsText = string(src[offset(fd.Type.Params.Opening)+1:offset(fd.Type.Params.Closing)])
	}
	resultsText := ""
	if fd.Type.Results != nil {
		// Preserved verbatim; an absent result list stays absent so the
		// inner function is emitted exactly as the original was.
		resultsText = " " + string(src[offset(fd.Type.Results.Pos()):offset(fd.Type.Results.End())])
	}

	// The testing parameter is needed for any prologue call and for the
	// wrapper's calling convention; a bare pass-through rewrite can live
	// without one.
	tb, err := testParam(fset, fd)
	if err != nil && (p.features.active() || d.Wrapper != "") {
		return "", nil, err
	}
	stmts, importPaths := p.features.prologue(d, tb)

	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "\t// %s\n", generatedMarker)

	if d.Wrapper != "" {
		// The wrapper establishes the calling convention; initialization
		// must be the first thing that runs inside it.
		ret := ""
		if fd.Type.Results != nil {
			ret = "return "
		}
		fmt.Fprintf(&b, "\t%s%s(%s, func(%s) {\n", ret, d.Wrapper, tb, paramsText)
		for _, s := range stmts {
			fmt.Fprintf(&b, "\t\t%s\n", s)
		}
		b.WriteString(bodyText)
		b.WriteString("\t}")
		if d.WrapperArgs != "" {
			b.WriteString(", ")
			b.WriteString(d.WrapperArgs)
		}
		b.WriteString(")\n}")
		return b.String(), importPaths, nil
	}

	args, err := forwardArgs(fset, fd)
	if err != nil {
		return "", nil, err
	}
	inner := innerName(fd.Name.Name)
	fmt.Fprintf(&b, "\t%s := func(%s)%s {%s}\n", inner, paramsText, resultsText, bodyText)
	for _, s := range stmts {
		fmt.Fprintf(&b, "\t%s\n", s)
	}
	if fd.Type.Results != nil {
		fmt.Fprintf(&b, "\treturn %s(%s)\n}", inner, args)
	} else {
		fmt.Fprintf(&b, "\t%s(%s)\n}", inner, args)
	}
	return b.String(), importPaths, nil
}

// testParam finds the function's testing parameter and returns its name.
func testParam(fset *token.FileSet, fd *ast.FuncDecl) (string, error) {
	if fd.Type.Params != nil {
		for _, field := range fd.Type.Params.List {
			if !isTestingType(field.Type) {
				continue
			}
			if len(field.Names) == 0 || field.Names[0].Name == "_" {
				return "", &Diagnostic{Position: fset.Position(field.Pos()), Err: ErrUnnamedParam, Detail: "testing parameter must be named"}
			}
			return field.Names[0].Name, nil
		}
	}
	return "", &Diagnostic{Position: fset.Position(fd.Pos()), Err: ErrNoTestParam, Detail: fd.Name.Name}
}

// isTestingType recognizes *testing.T, *testing.B, *testing.F, and the
// testing.TB interface.
func isTestingType(expr ast.Expr) bool {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "testing" {
		return false
	}
	switch sel.Sel.Name {
	case "T", "B", "F", "TB":
		return true
	}
	return false
}

// forwardArgs renders the argument list that forwards every parameter to
// the inner function.
func forwardArgs(fset *token.FileSet, fd *ast.FuncDecl) (string, error) {
	if fd.Type.Params == nil {
		return "", nil
	}
	var args []string
	for _, field := range fd.Type.Params.List {
		if len(field.Names) == 0 {
			return "", &Diagnostic{Position: fset.Position(field.Pos()), Err: ErrUnnamedParam}
		}
		_, variadic := field.Type.(*ast.Ellipsis)
		for i, name := range field.Names {
			if name.Name == "_" {
				return "", &Diagnostic{Position: fset.Position(name.Pos()), Err: ErrUnnamedParam}
			}
			arg := name.Name
			if variadic && i == len(field.Names)-1 {
				arg += "..."
			}
			args = append(args, arg)
		}
	}
	return strings.Join(args, ", "), nil
}

// innerName derives the inner function's name from the original, the way
// TestItWorks becomes testItWorks.
func innerName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	lowered := string(unicode.ToLower(r)) + name[size:]
	if lowered == name {
		// Already lowercase; pick a distinct name instead of shadowing.
		return name + "Impl"
	}
	return lowered
}

func docOf(decl ast.Decl) *ast.CommentGroup {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Doc
	case *ast.GenDecl:
		return d.Doc
	}
	return nil
}

// missingImports filters needed down to paths the file does not import.
func missingImports(f *ast.File, needed map[string]bool) []string {
	for _, spec := range f.Imports {
		path := strings.Trim(spec.Path.Value, `"`)
		delete(needed, path)
	}
	paths := make([]string, 0, len(needed))
	for path := range needed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// importEdit builds the edit inserting the runtime imports, either into
// the existing import block or as a new one after the package clause.
func importEdit(f *ast.File, offset func(token.Pos) int, paths []string) edit {
	var lines bytes.Buffer
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT || !gd.Rparen.IsValid() {
			continue
		}
		for _, path := range paths {
			fmt.Fprintf(&lines, "\t%q\n", path)
		}
		at := offset(gd.Rparen)
		return edit{start: at, end: at, text: lines.String()}
	}
	lines.WriteString("\n\nimport (\n")
	for _, path := range paths {
		fmt.Fprintf(&lines, "\t%q\n", path)
	}
	lines.WriteString(")")
	at := offset(f.Name.End())
	return edit{start: at, end: at, text: lines.String()}
}
