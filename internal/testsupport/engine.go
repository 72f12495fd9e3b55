package testsupport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"synthfilter/internal/engine"
)

// Events records lifecycle calls in order.
type Events struct {
	mu   sync.Mutex
	list []string
}

func (e *Events) Record(event string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.list = append(e.list, event)
	e.mu.Unlock()
}

// List returns a copy of the recorded events.
func (e *Events) List() []string {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

// FakeModule is a scriptable engine module. A nil Env makes
// CreateEnvironment return no environment.
type FakeModule struct {
	Env       *FakeEnvironment
	CreateErr error
	Events    *Events
}

func (m *FakeModule) Name() string { return "fake" }

func (m *FakeModule) CreateEnvironment(int) (engine.Environment, error) {
	m.Events.Record("module.create")
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if m.Env == nil {
		return nil, nil
	}
	return m.Env, nil
}

func (m *FakeModule) Unload() error {
	m.Events.Record("module.unload")
	return nil
}

var fakeModuleSeq atomic.Int64

// RegisterFakeModule registers mod under a fresh name and returns it.
func RegisterFakeModule(t testing.TB, mod *FakeModule) string {
	t.Helper()
	name := fmt.Sprintf("fake-%d", fakeModuleSeq.Add(1))
	engine.Register(name, mod)
	return name
}

// FakeEnvironment answers Import and Eval through hooks and records
// lifecycle events.
type FakeEnvironment struct {
	Events  *Events
	Version string
	// ImportFunc handles Import; nil returns Undefined.
	ImportFunc func(path string) (engine.Value, error)
	// EvalFunc handles Eval of anything but VersionString().
	EvalFunc func(src string) (engine.Value, error)
	AddErr   error

	mu        sync.Mutex
	functions map[string]engine.Function
	evals     []string
}

// AddFunction stores fn for CallHost.
func (e *FakeEnvironment) AddFunction(name string, fn engine.Function) error {
	if e.AddErr != nil {
		return e.AddErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.functions == nil {
		e.functions = map[string]engine.Function{}
	}
	e.functions[name] = fn
	return nil
}

func (e *FakeEnvironment) Invoke(name string, args []engine.Value, names []string) (engine.Value, error) {
	call := engine.NewArgs(args, names)
	switch name {
	case "Import":
		path, _ := call.Lookup("path", 0)
		if e.ImportFunc == nil {
			return engine.Undefined(), nil
		}
		return e.ImportFunc(path.AsString())
	case "Eval":
		src, _ := call.Lookup("source", 0)
		if src.AsString() == "VersionString()" {
			return engine.String(e.Version), nil
		}
		e.mu.Lock()
		e.evals = append(e.evals, src.AsString())
		e.mu.Unlock()
		if e.EvalFunc == nil {
			return engine.Undefined(), nil
		}
		return e.EvalFunc(src.AsString())
	}
	return e.CallHost(name)
}

// CallHost invokes a function registered through AddFunction.
func (e *FakeEnvironment) CallHost(name string) (engine.Value, error) {
	e.mu.Lock()
	fn, ok := e.functions[name]
	e.mu.Unlock()
	if !ok {
		return engine.Value{}, engine.NewScriptError("there is no function named %q", name)
	}
	return fn(engine.Args{})
}

// Evals returns the sources passed to Eval, excluding the version query.
func (e *FakeEnvironment) Evals() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.evals...)
}

func (e *FakeEnvironment) NewVideoFrame(vi engine.VideoInfo) (*engine.VideoFrame, error) {
	return engine.NewVideoFrame(vi)
}

func (e *FakeEnvironment) Close() error {
	e.Events.Record("env.close")
	return nil
}

func (e *FakeEnvironment) Link() engine.Linkage {
	return fakeLinkage{events: e.Events}
}

type fakeLinkage struct {
	events *Events
}

func (l fakeLinkage) Revoke() { l.events.Record("linkage.revoke") }

// SolidClip produces frames filled with a constant sample value.
type SolidClip struct {
	Info   engine.VideoInfo
	Value  uint16
	Label  string
	Events *Events

	pulls atomic.Int64
}

func (c *SolidClip) VideoInfo() engine.VideoInfo { return c.Info }

func (c *SolidClip) GetFrame(n int) (*engine.VideoFrame, error) {
	c.pulls.Add(1)
	return SolidFrame(c.Info, c.Value)
}

// Pulls reports how many frames were requested.
func (c *SolidClip) Pulls() int64 { return c.pulls.Load() }

func (c *SolidClip) Close() error {
	c.Events.Record(c.Label + ".close")
	return nil
}

// SolidFrame allocates a frame for vi with every plane set to value.
func SolidFrame(vi engine.VideoInfo, value uint16) (*engine.VideoFrame, error) {
	frame, err := engine.NewVideoFrame(vi)
	if err != nil {
		return nil, err
	}
	for idx := range frame.Planes {
		frame.Fill(idx, value)
	}
	return frame, nil
}

// VideoInfo builds a descriptor with a reduced frame rate.
func VideoInfo(width, height int, pt engine.PixelType, num, den uint32, frames int) engine.VideoInfo {
	vi := engine.VideoInfo{Width: width, Height: height, PixelType: pt, NumFrames: frames}
	vi.SetFPS(num, den)
	return vi
}
