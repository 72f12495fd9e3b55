package starlarkenv

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"go.starlark.net/starlark"

	"synthfilter/internal/engine"
)

// Environment is one Starlark engine instance.
type Environment struct {
	module *Module
	closed atomic.Bool

	mu        sync.Mutex
	functions starlark.StringDict
	link      *linkage
}

func newEnvironment(module *Module) *Environment {
	return &Environment{module: module, functions: builtins()}
}

// AddFunction exposes fn to scripts. Host functions may shadow builtins.
func (e *Environment) AddFunction(name string, fn engine.Function) error {
	if e.closed.Load() {
		return engine.ErrClosed
	}
	if name == "" || fn == nil {
		return errors.New("add function: name and function are required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.functions[name] = hostBuiltin(name, fn)
	return nil
}

// Invoke runs Import, Eval or a named function. Script failures are
// returned as *engine.ScriptError.
func (e *Environment) Invoke(name string, args []engine.Value, names []string) (engine.Value, error) {
	if e.closed.Load() {
		return engine.Value{}, engine.ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	call := engine.NewArgs(args, names)
	switch name {
	case "Import":
		path, ok := call.Lookup("path", 0)
		if !ok || path.Kind() != engine.KindString {
			return engine.Value{}, engine.NewScriptError("Import: path argument is required")
		}
		utf8Only := false
		if flag, ok := call.Lookup("utf8", 1); ok {
			utf8Only = flag.AsBool()
		}
		return e.importFile(path.AsString(), utf8Only)
	case "Eval":
		src, ok := call.Lookup("source", 0)
		if !ok || src.Kind() != engine.KindString {
			return engine.Value{}, engine.NewScriptError("Eval: source argument is required")
		}
		return e.exec("<eval>", []byte(src.AsString()))
	}

	fn, ok := e.functions[name]
	if !ok {
		return engine.Value{}, engine.NewScriptError("there is no function named %q", name)
	}
	posArgs := make(starlark.Tuple, 0, len(call.Positional))
	for _, v := range call.Positional {
		posArgs = append(posArgs, toStarlark(v))
	}
	var kwargs []starlark.Tuple
	for key, v := range call.Named {
		kwargs = append(kwargs, starlark.Tuple{starlark.String(key), toStarlark(v)})
	}
	out, err := starlark.Call(e.newThread(name), fn, posArgs, kwargs)
	if err != nil {
		return engine.Value{}, scriptError(err)
	}
	return fromStarlark(out), nil
}

func (e *Environment) importFile(path string, utf8Only bool) (engine.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return engine.Value{}, engine.NewScriptError("Import: couldn't open %q: %v", path, err)
	}
	src, err := decodeScript(raw, utf8Only)
	if err != nil {
		return engine.Value{}, err
	}
	return e.exec(path, src)
}

// NewVideoFrame allocates a frame for vi.
func (e *Environment) NewVideoFrame(vi engine.VideoInfo) (*engine.VideoFrame, error) {
	if e.closed.Load() {
		return nil, engine.ErrClosed
	}
	return engine.NewVideoFrame(vi)
}

// Link installs the environment's linkage with its module.
func (e *Environment) Link() engine.Linkage {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.link == nil {
		e.link = &linkage{module: e.module}
		e.module.links.Add(1)
	}
	return e.link
}

// Close releases the environment. Further calls fail with engine.ErrClosed.
func (e *Environment) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return engine.ErrClosed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.functions = nil
	return nil
}

func (e *Environment) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			slog.Default().Info("script print", slog.String("component", "starlark"), slog.String("thread", thread.Name), slog.String("message", msg))
		},
	}
}
