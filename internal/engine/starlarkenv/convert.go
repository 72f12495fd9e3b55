package starlarkenv

import (
	"fmt"

	"go.starlark.net/starlark"

	"synthfilter/internal/engine"
)

// clipValue is the Starlark face of an engine.Clip.
type clipValue struct {
	clip engine.Clip
}

var _ starlark.HasAttrs = (*clipValue)(nil)

func (c *clipValue) String() string { return "<clip " + c.clip.VideoInfo().String() + ">" }
func (c *clipValue) Type() string { return "clip" }
func (c *clipValue) Freeze() {}
func (c *clipValue) Truth() starlark.Bool { return starlark.True }
func (c *clipValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: clip") }

func (c *clipValue) Attr(name string) (starlark.Value, error) {
	vi := c.clip.VideoInfo()
	switch name {
	case "width":
		return starlark.MakeInt(vi.Width), nil
	case "height":
		return starlark.MakeInt(vi.Height), nil
	case "num_frames":
		return starlark.MakeInt(vi.NumFrames), nil
	case "fps_numerator":
		return starlark.MakeUint64(uint64(vi.FPSNumerator)), nil
	case "fps_denominator":
		return starlark.MakeUint64(uint64(vi.FPSDenominator)), nil
	case "pixel_type":
		return starlark.String(vi.PixelType), nil
	}
	return nil, nil
}

func (c *clipValue) AttrNames() []string {
	return []string{"fps_denominator", "fps_numerator", "height", "num_frames", "pixel_type", "width"}
}

// voidValue has no constructor reachable from scripts; only host functions
// returning engine.Void() produce it.
type voidValue struct{}

func (voidValue) String() string { return "void" }
func (voidValue) Type() string { return "void" }
func (voidValue) Freeze() {}
func (voidValue) Truth() starlark.Bool { return starlark.False }
func (voidValue) Hash() (uint32, error) { return 0, nil }

func toStarlark(v engine.Value) starlark.Value {
	switch v.Kind() {
	case engine.KindVoid:
		return voidValue{}
	case engine.KindClip:
		if v.AsClip() == nil {
			return starlark.None
		}
		return &clipValue{clip: v.AsClip()}
	case engine.KindBool:
		return starlark.Bool(v.AsBool())
	case engine.KindInt:
		return starlark.MakeInt64(v.AsInt())
	case engine.KindFloat:
		return starlark.Float(v.AsFloat())
	case engine.KindString:
		return starlark.String(v.AsString())
	default:
		return starlark.None
	}
}

func fromStarlark(v starlark.Value) engine.Value {
	switch x := v.(type) {
	case nil:
		return engine.Undefined()
	case starlark.NoneType:
		return engine.None()
	case voidValue:
		return engine.Void()
	case *clipValue:
		return engine.ClipValue(x.clip)
	case starlark.Bool:
		return engine.Bool(bool(x))
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return engine.Int(i)
		}
		return engine.String(x.String())
	case starlark.Float:
		return engine.Float(float64(x))
	case starlark.String:
		return engine.String(string(x))
	default:
		return engine.String(v.String())
	}
}

func asClip(fnName string, v starlark.Value) (engine.Clip, error) {
	c, ok := v.(*clipValue)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want clip: %w", fnName, v.Type(), errNotClip)
	}
	return c.clip, nil
}

func hostBuiltin(name string, fn engine.Function) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		values := make([]engine.Value, 0, len(args)+len(kwargs))
		names := make([]string, 0, len(args)+len(kwargs))
		for _, arg := range args {
			values = append(values, fromStarlark(arg))
			names = append(names, "")
		}
		for _, kv := range kwargs {
			key, _ := starlark.AsString(kv[0])
			values = append(values, fromStarlark(kv[1]))
			names = append(names, key)
		}
		out, err := fn(engine.NewArgs(values, names))
		if err != nil {
			return nil, err
		}
		return toStarlark(out), nil
	})
}
