package starlarkenv_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"synthfilter/internal/engine"
	"synthfilter/internal/engine/starlarkenv"
)

func newEnv(t *testing.T) engine.Environment {
	t.Helper()
	mod, err := engine.Open(starlarkenv.ModuleName)
	if err != nil {
		t.Fatalf("open module: %v", err)
	}
	env, err := mod.CreateEnvironment(engine.MinimumInterfaceVersion)
	if err != nil {
		t.Fatalf("create environment: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func eval(t *testing.T, env engine.Environment, src string) (engine.Value, error) {
	t.Helper()
	return env.Invoke("Eval", []engine.Value{engine.String(src)}, nil)
}

func writeScript(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filter.star")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func importScript(env engine.Environment, path string, utf8 bool) (engine.Value, error) {
	return env.Invoke("Import", []engine.Value{engine.String(path), engine.Bool(utf8)}, []string{"", "utf8"})
}

type sourceClip struct {
	vi engine.VideoInfo
}

func (s sourceClip) VideoInfo() engine.VideoInfo { return s.vi }

func (s sourceClip) GetFrame(n int) (*engine.VideoFrame, error) {
	frame, err := engine.NewVideoFrame(s.vi)
	if err != nil {
		return nil, err
	}
	frame.Fill(0, uint16(n%200))
	frame.Fill(1, 128)
	frame.Fill(2, 128)
	return frame, nil
}

func source() sourceClip {
	vi := engine.VideoInfo{Width: 320, Height: 240, NumFrames: 1000, PixelType: engine.PixelYUV420P8}
	vi.SetFPS(24000, 1001)
	return sourceClip{vi: vi}
}

func TestVersionString(t *testing.T) {
	env := newEnv(t)
	got, err := eval(t, env, "VersionString()")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got.AsString() != starlarkenv.Version {
		t.Fatalf("unexpected version: got %q want %q", got.AsString(), starlarkenv.Version)
	}
}

func TestImportImplicitLast(t *testing.T) {
	env := newEnv(t)
	path := writeScript(t, []byte("w = 320\nBlankClip(width=w, height=240, pixel_type=\"RGB32\")\n"))
	got, err := importScript(env, path, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !got.IsClip() {
		t.Fatalf("expected clip, got %s", got)
	}
	vi := got.AsClip().VideoInfo()
	if vi.Width != 320 || vi.Height != 240 || vi.PixelType != engine.PixelRGB32 {
		t.Fatalf("unexpected clip info %s", vi)
	}
}

func TestImportExplicitLastWithTopLevelControl(t *testing.T) {
	env := newEnv(t)
	src := "last = BlankClip()\nif last.width > 100:\n    last = Crop(last, 0, 0, 320, 240)\n"
	got, err := eval(t, env, src)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if w := got.AsClip().VideoInfo().Width; w != 320 {
		t.Fatalf("unexpected width %d", w)
	}
}

func TestScriptWithoutLastIsUndefined(t *testing.T) {
	env := newEnv(t)
	got, err := eval(t, env, "x = 1\n")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got.Kind() != engine.KindUndefined {
		t.Fatalf("expected undefined, got %s", got.Kind())
	}
}

func TestNoneResultIsDefined(t *testing.T) {
	env := newEnv(t)
	for _, src := range []string{"None\n", "last = BlankClip()\nprint(\"debug\")\n"} {
		got, err := eval(t, env, src)
		if err != nil {
			t.Fatalf("eval %q: %v", src, err)
		}
		if got.Kind() != engine.KindNone || !got.Defined() {
			t.Fatalf("%q: expected defined none, got %s", src, got.Kind())
		}
	}
}

func TestNonClipResult(t *testing.T) {
	env := newEnv(t)
	got, err := eval(t, env, "42")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got.IsClip() || !got.Defined() || got.AsInt() != 42 {
		t.Fatalf("unexpected result %s", got)
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "BlankClip(\n"},
		{"undefined name", "NoSuchFilter()\n"},
		{"bad crop", "Crop(BlankClip(), 0, 0, 9999, 10)\n"},
		{"not a clip", "Subtitle(3, \"x\")\n"},
	}
	env := newEnv(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := eval(t, env, tc.src)
			var scriptErr *engine.ScriptError
			if !errors.As(err, &scriptErr) {
				t.Fatalf("expected ScriptError, got %v", err)
			}
			if scriptErr.Message == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestImportMissingFile(t *testing.T) {
	env := newEnv(t)
	_, err := importScript(env, filepath.Join(t.TempDir(), "missing.star"), true)
	var scriptErr *engine.ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("expected ScriptError, got %v", err)
	}
}

func TestHostFunctions(t *testing.T) {
	env := newEnv(t)
	src := source()
	if err := env.AddFunction("FilterSource", func(engine.Args) (engine.Value, error) {
		return engine.ClipValue(src), nil
	}); err != nil {
		t.Fatalf("add source: %v", err)
	}
	if err := env.AddFunction("FilterDisconnect", func(engine.Args) (engine.Value, error) {
		return engine.Void(), nil
	}); err != nil {
		t.Fatalf("add disconnect: %v", err)
	}

	got, err := eval(t, env, "FilterDisconnect()")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !got.IsVoid() {
		t.Fatalf("expected void, got %s", got.Kind())
	}

	got, err = eval(t, env, "AssumeFPS(FilterSource(), 50)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	vi := got.AsClip().VideoInfo()
	if vi.FPSNumerator != 50 || vi.FPSDenominator != 1 || vi.Width != 320 {
		t.Fatalf("unexpected clip %s", vi)
	}

	direct, err := env.Invoke("FilterSource", nil, nil)
	if err != nil || !direct.IsClip() {
		t.Fatalf("direct invoke: %v %s", err, direct)
	}
}

func TestSubtitleBurnsCaption(t *testing.T) {
	env := newEnv(t)
	src := source()
	_ = env.AddFunction("FilterSource", func(engine.Args) (engine.Value, error) { return engine.ClipValue(src), nil })
	got, err := eval(t, env, `Subtitle(FilterSource(), ReplaceStr("line one\nline two", "\n", "\\n"), lsp=0)`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	frame, err := got.AsClip().GetFrame(0)
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	lit := 0
	for _, b := range frame.Planes[0] {
		if b == 235 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("expected caption pixels in luma plane")
	}
	// Second line starts one line height below the first baseline.
	row := 16 + 13 - 5
	found := false
	for x := 8; x < 80; x++ {
		if frame.Planes[0][row*frame.Pitches[0]+x] == 235 {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected second caption line")
	}
	original, _ := src.GetFrame(0)
	if original.Planes[0][0] != 0 {
		t.Fatal("subtitle modified the source frame")
	}
}

func TestPrefetchConcurrentPulls(t *testing.T) {
	env := newEnv(t)
	src := source()
	_ = env.AddFunction("FilterSource", func(engine.Args) (engine.Value, error) { return engine.ClipValue(src), nil })
	got, err := eval(t, env, "Prefetch(FilterSource(), 4)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	clip := got.AsClip()
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for worker := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := worker; n < 64; n += 4 {
				frame, err := clip.GetFrame(n)
				if err != nil {
					errs <- err
					return
				}
				if frame.Planes[0][0] != byte(n%200) {
					errs <- errors.New("frame content mismatch")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	ref := engine.NewClipRef(clip)
	if err := ref.Release(); err != nil {
		t.Fatalf("release prefetch: %v", err)
	}
}

// gatedClip holds every frame but the first until release is closed.
type gatedClip struct {
	info    engine.VideoInfo
	release chan struct{}
	closed  atomic.Int32
}

func (c *gatedClip) VideoInfo() engine.VideoInfo { return c.info }

func (c *gatedClip) GetFrame(n int) (*engine.VideoFrame, error) {
	if n > 0 {
		<-c.release
	}
	return engine.NewVideoFrame(c.info)
}

func (c *gatedClip) Close() error {
	c.closed.Add(1)
	return nil
}

func TestPrefetchCloseDetachesParkedFetches(t *testing.T) {
	env := newEnv(t)
	src := &gatedClip{info: source().VideoInfo(), release: make(chan struct{})}
	_ = env.AddFunction("FilterSource", func(engine.Args) (engine.Value, error) { return engine.ClipValue(src), nil })
	got, err := eval(t, env, "Prefetch(FilterSource(), 2)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	ref := engine.NewClipRef(got.AsClip())
	if _, err := ref.Clip().GetFrame(0); err != nil {
		t.Fatalf("GetFrame: %v", err)
	}

	closed := make(chan error, 1)
	go func() { closed <- ref.Release() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("release: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("close waited for fetches parked in the child")
	}
	if src.closed.Load() != 0 {
		t.Fatal("child closed while fetches were still running")
	}

	close(src.release)
	deadline := time.Now().Add(5 * time.Second)
	for src.closed.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("child never closed after the last fetch finished")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	if n := src.closed.Load(); n != 1 {
		t.Fatalf("child closed %d times", n)
	}
}

func TestChangeFPSRepeatsFrames(t *testing.T) {
	env := newEnv(t)
	got, err := eval(t, env, "ChangeFPS(BlankClip(fps=25, length=100), 50)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	vi := got.AsClip().VideoInfo()
	if vi.NumFrames != 200 || vi.FPSNumerator != 50 {
		t.Fatalf("unexpected clip %s frames=%d", vi, vi.NumFrames)
	}
}

func TestCropCopiesRegion(t *testing.T) {
	env := newEnv(t)
	src := source()
	_ = env.AddFunction("FilterSource", func(engine.Args) (engine.Value, error) { return engine.ClipValue(src), nil })
	got, err := eval(t, env, "Crop(FilterSource(), 16, 8, -16, -8)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	frame, err := got.AsClip().GetFrame(7)
	if err != nil {
		t.Fatalf("get frame: %v", err)
	}
	if frame.Info.Width != 288 || frame.Info.Height != 224 {
		t.Fatalf("unexpected geometry %dx%d", frame.Info.Width, frame.Info.Height)
	}
	if frame.Planes[0][0] != 7 || frame.Planes[1][0] != 128 {
		t.Fatalf("unexpected samples %d %d", frame.Planes[0][0], frame.Planes[1][0])
	}

	if _, err := eval(t, env, "Crop(FilterSource(), 1, 0, 100, 100)"); err == nil {
		t.Fatal("expected odd crop on 4:2:0 to fail")
	}
}

func TestImportEncodings(t *testing.T) {
	env := newEnv(t)
	utf16 := []byte{0xff, 0xfe}
	for _, r := range "BlankClip(width=64, height=64)\n" {
		utf16 = append(utf16, byte(r), 0)
	}
	path := writeScript(t, utf16)
	got, err := importScript(env, path, false)
	if err != nil {
		t.Fatalf("import utf-16: %v", err)
	}
	if got.AsClip().VideoInfo().Width != 64 {
		t.Fatalf("unexpected clip %s", got)
	}

	if _, err := importScript(env, path, true); err == nil {
		t.Fatal("expected utf8 import of UTF-16 text to fail")
	}

	bom := append([]byte{0xef, 0xbb, 0xbf}, []byte("BlankClip()\n")...)
	if _, err := importScript(env, writeScript(t, bom), true); err != nil {
		t.Fatalf("import utf-8 with BOM: %v", err)
	}
}

func TestCloseAndLinkage(t *testing.T) {
	mod, err := engine.Open(starlarkenv.ModuleName)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	env, err := mod.CreateEnvironment(engine.MinimumInterfaceVersion)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	linker, ok := env.(engine.Linker)
	if !ok {
		t.Fatal("expected environment to install a linkage")
	}
	link := linker.Link()
	if err := env.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := eval(t, env, "1"); !errors.Is(err, engine.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := mod.Unload(); err == nil {
		t.Fatal("expected unload to fail while linked")
	}
	link.Revoke()
	link.Revoke()
	if err := mod.Unload(); err != nil {
		t.Fatalf("unload after revoke: %v", err)
	}

	if _, err := mod.CreateEnvironment(starlarkenv.InterfaceVersion + 1); err == nil {
		t.Fatal("expected newer interface request to fail")
	}
}
