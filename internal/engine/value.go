package engine

import (
	"fmt"
	"strconv"
)

// Kind tags the content of a Value.
type Kind int

const (
	KindUndefined Kind = iota
	// KindVoid is only produced by host code through Void(); scripts cannot
	// construct it, which makes it usable as an out-of-band signal.
	KindVoid
	// KindNone is an explicit "nothing" produced by a script, such as the
	// result of a call with no return value. It is defined but not a clip.
	KindNone
	KindClip
	KindBool
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindVoid:
		return "void"
	case KindNone:
		return "none"
	case KindClip:
		return "clip"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged value exchanged with an Environment.
type Value struct {
	kind Kind
	clip Clip
	b    bool
	i    int64
	f    float64
	s    string
}

// Undefined is the result of a script that never produced a value.
func Undefined() Value { return Value{} }

// Void is the disconnect sentinel. Only host code can construct it.
func Void() Value { return Value{kind: KindVoid} }

// None is a script-level "nothing". Unlike Undefined it counts as a result.
func None() Value { return Value{kind: KindNone} }

func ClipValue(c Clip) Value { return Value{kind: KindClip, clip: c} }

func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

func Int(v int64) Value { return Value{kind: KindInt, i: v} }

func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind reports which payload the value carries.
func (v Value) Kind() Kind { return v.kind }

// IsClip reports whether the value holds a non-nil clip.
func (v Value) IsClip() bool { return v.kind == KindClip && v.clip != nil }

// IsVoid reports whether the value is the disconnect sentinel.
func (v Value) IsVoid() bool { return v.kind == KindVoid }

// AsClip returns the clip payload, or nil for other kinds. The accessors
// below likewise return the zero value when the kind does not match.
func (v Value) AsClip() Clip { return v.clip }

func (v Value) AsBool() bool { return v.b }

func (v Value) AsInt() int64 { return v.i }

// AsFloat returns the float payload, widening ints.
func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Defined reports whether the value carries a script result. Undefined and
// Void are both "no result".
func (v Value) Defined() bool {
	return v.kind != KindUndefined && v.kind != KindVoid
}

// AsString returns the string payload, or a formatted rendering for other kinds.
func (v Value) AsString() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindClip:
		return fmt.Sprintf("clip(%s)", v.clip.VideoInfo())
	case KindNone:
		return "None"
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	if !v.Defined() {
		return v.kind.String()
	}
	return v.AsString()
}

// Args carries the arguments of a function call. Positional values come
// first; Named holds keyword arguments.
type Args struct {
	Positional []Value
	Named      map[string]Value
}

// NewArgs splits values into positional and named arguments. names runs
// parallel to values; an empty name marks a positional argument.
func NewArgs(values []Value, names []string) Args {
	args := Args{Named: map[string]Value{}}
	for idx, value := range values {
		name := ""
		if idx < len(names) {
			name = names[idx]
		}
		if name == "" {
			args.Positional = append(args.Positional, value)
			continue
		}
		args.Named[name] = value
	}
	return args
}

// Lookup returns the named argument, falling back to position idx.
func (a Args) Lookup(name string, idx int) (Value, bool) {
	if v, ok := a.Named[name]; ok {
		return v, true
	}
	if idx >= 0 && idx < len(a.Positional) {
		return a.Positional[idx], true
	}
	return Value{}, false
}

// Function is a host procedure callable from scripts.
type Function func(args Args) (Value, error)
