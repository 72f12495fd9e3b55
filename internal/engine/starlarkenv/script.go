package starlarkenv

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"synthfilter/internal/engine"
)

// lastName is the global holding a script's result.
const lastName = "last"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

func (e *Environment) exec(filename string, src []byte) (engine.Value, error) {
	f, err := fileOptions.Parse(filename, src, 0)
	if err != nil {
		return engine.Value{}, scriptError(err)
	}
	bindImplicitLast(f)
	prog, err := starlark.FileProgram(f, e.functions.Has)
	if err != nil {
		return engine.Value{}, scriptError(err)
	}
	globals, err := prog.Init(e.newThread(filename), e.functions)
	if err != nil {
		return engine.Value{}, scriptError(err)
	}
	last, ok := globals[lastName]
	if !ok {
		return engine.Undefined(), nil
	}
	return fromStarlark(last), nil
}

// bindImplicitLast rewrites a trailing expression statement into an
// assignment to `last`.
func bindImplicitLast(f *syntax.File) {
	n := len(f.Stmts)
	if n == 0 {
		return
	}
	stmt, ok := f.Stmts[n-1].(*syntax.ExprStmt)
	if !ok {
		return
	}
	start, _ := stmt.X.Span()
	f.Stmts[n-1] = &syntax.AssignStmt{
		OpPos: start,
		Op:    syntax.EQ,
		LHS:   &syntax.Ident{NamePos: start, Name: lastName},
		RHS:   stmt.X,
	}
}

// decodeScript returns UTF-8 source. With utf8Only the input must be UTF-8
// (a BOM is dropped). Otherwise a UTF-16 or UTF-8 BOM selects the encoding
// and BOM-less text that is not valid UTF-8 is read as Windows-1252.
func decodeScript(raw []byte, utf8Only bool) ([]byte, error) {
	if utf8Only {
		raw = bytes.TrimPrefix(raw, utf8BOM)
		if !utf8.Valid(raw) {
			return nil, engine.NewScriptError("Import: script is not valid UTF-8")
		}
		return raw, nil
	}
	if utf8.Valid(raw) {
		return bytes.TrimPrefix(raw, utf8BOM), nil
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(charmap.Windows1252.NewDecoder()), raw)
	if err != nil {
		return nil, engine.NewScriptError("Import: decode script: %v", err)
	}
	return out, nil
}

func scriptError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return &engine.ScriptError{Message: evalErr.Backtrace()}
	}
	return &engine.ScriptError{Message: err.Error()}
}
