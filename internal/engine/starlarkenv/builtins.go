package starlarkenv

import (
	"strings"

	"go.starlark.net/starlark"

	"synthfilter/internal/engine"
)

func builtins() starlark.StringDict {
	return starlark.StringDict{
		"VersionString": starlark.NewBuiltin("VersionString", versionString),
		"ReplaceStr":    starlark.NewBuiltin("ReplaceStr", replaceStr),
		"Subtitle":      starlark.NewBuiltin("Subtitle", subtitle),
		"Prefetch":      starlark.NewBuiltin("Prefetch", prefetch),
		"AssumeFPS":     starlark.NewBuiltin("AssumeFPS", assumeFPS),
		"ChangeFPS":     starlark.NewBuiltin("ChangeFPS", changeFPS),
		"Crop":          starlark.NewBuiltin("Crop", crop),
		"BlankClip":     starlark.NewBuiltin("BlankClip", blankClipBuiltin),
	}
}

func versionString(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(Version), nil
}

func replaceStr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, find, repl string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "s", &s, "find", &find, "replace", &repl); err != nil {
		return nil, err
	}
	if find == "" {
		return starlark.String(s), nil
	}
	return starlark.String(strings.ReplaceAll(s, find, repl)), nil
}

func subtitle(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var clipArg starlark.Value
	var text string
	x, y := 8, 16
	var lsp starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "clip", &clipArg, "text", &text, "x?", &x, "y?", &y, "lsp?", &lsp); err != nil {
		return nil, err
	}
	child, err := asClip(b.Name(), clipArg)
	if err != nil {
		return nil, err
	}
	spacing := -1
	if lsp != starlark.None {
		if err := starlark.AsInt(lsp, &spacing); err != nil {
			return nil, err
		}
	}
	clip, err := newSubtitleClip(child, text, x, y, spacing)
	if err != nil {
		return nil, err
	}
	return &clipValue{clip: clip}, nil
}

func prefetch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var clipArg starlark.Value
	var threads int
	frames := -1
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "clip", &clipArg, "threads", &threads, "frames?", &frames); err != nil {
		return nil, err
	}
	child, err := asClip(b.Name(), clipArg)
	if err != nil {
		return nil, err
	}
	if frames < 0 {
		frames = threads * 2
	}
	if threads < 1 || frames == 0 {
		return clipArg, nil
	}
	return &clipValue{clip: newPrefetchClip(child, threads, frames)}, nil
}

func assumeFPS(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var clipArg starlark.Value
	var num int
	den := 1
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "clip", &clipArg, "numerator", &num, "denominator?", &den); err != nil {
		return nil, err
	}
	child, err := asClip(b.Name(), clipArg)
	if err != nil {
		return nil, err
	}
	clip, err := newAssumeFPSClip(child, num, den)
	if err != nil {
		return nil, err
	}
	return &clipValue{clip: clip}, nil
}

func changeFPS(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var clipArg starlark.Value
	var num int
	den := 1
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "clip", &clipArg, "numerator", &num, "denominator?", &den); err != nil {
		return nil, err
	}
	child, err := asClip(b.Name(), clipArg)
	if err != nil {
		return nil, err
	}
	clip, err := newChangeFPSClip(child, num, den)
	if err != nil {
		return nil, err
	}
	return &clipValue{clip: clip}, nil
}

func crop(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var clipArg starlark.Value
	var left, top, width, height int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "clip", &clipArg, "left", &left, "top", &top, "width", &width, "height", &height); err != nil {
		return nil, err
	}
	child, err := asClip(b.Name(), clipArg)
	if err != nil {
		return nil, err
	}
	clip, err := newCropClip(child, left, top, width, height)
	if err != nil {
		return nil, err
	}
	return &clipValue{clip: clip}, nil
}

func blankClipBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	width, height, length := 640, 480, 240
	fps, fpsDen := 25, 1
	pixelType := string(engine.PixelYUV420P8)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"width?", &width, "height?", &height, "pixel_type?", &pixelType,
		"fps?", &fps, "fps_denominator?", &fpsDen, "length?", &length); err != nil {
		return nil, err
	}
	vi := engine.VideoInfo{Width: width, Height: height, NumFrames: length, PixelType: engine.PixelType(pixelType)}
	if fps <= 0 || fpsDen <= 0 {
		return nil, engine.NewScriptError("%s: frame rate must be positive", b.Name())
	}
	vi.SetFPS(uint32(fps), uint32(fpsDen))
	clip, err := newBlankClip(vi)
	if err != nil {
		return nil, err
	}
	return &clipValue{clip: clip}, nil
}
