package engine_test

import (
	"errors"
	"sync"
	"testing"

	"synthfilter/internal/engine"
)

type closingClip struct {
	vi     engine.VideoInfo
	closed int
}

func (c *closingClip) VideoInfo() engine.VideoInfo { return c.vi }

func (c *closingClip) GetFrame(int) (*engine.VideoFrame, error) {
	return engine.NewVideoFrame(c.vi)
}

func (c *closingClip) Close() error {
	c.closed++
	return nil
}

func TestClipRefClosesOnFinalRelease(t *testing.T) {
	clip := &closingClip{vi: engine.VideoInfo{Width: 16, Height: 16, PixelType: engine.PixelRGB32}}
	ref := engine.NewClipRef(clip)
	if ref.Acquire() != ref {
		t.Fatal("expected acquire to return the same handle")
	}
	if err := ref.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if clip.closed != 0 {
		t.Fatalf("clip closed early: %d", clip.closed)
	}
	if ref.Clip() == nil {
		t.Fatal("expected clip while a reference is held")
	}
	if err := ref.Release(); err != nil {
		t.Fatalf("final release: %v", err)
	}
	if clip.closed != 1 {
		t.Fatalf("unexpected close count: got %d want 1", clip.closed)
	}
	if ref.Clip() != nil {
		t.Fatal("expected nil clip after final release")
	}
	if ref.Acquire() != nil {
		t.Fatal("expected acquire to fail after final release")
	}
	if err := ref.Release(); err != nil {
		t.Fatalf("extra release: %v", err)
	}
	if clip.closed != 1 {
		t.Fatalf("extra release closed clip again: %d", clip.closed)
	}
}

func TestClipRefConcurrentAcquireRelease(t *testing.T) {
	clip := &closingClip{vi: engine.VideoInfo{Width: 2, Height: 2, PixelType: engine.PixelRGB24}}
	ref := engine.NewClipRef(clip)
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if held := ref.Acquire(); held != nil {
				_ = held.Release()
			}
		}()
	}
	wg.Wait()
	if ref.Refs() != 1 {
		t.Fatalf("unexpected refs: got %d want 1", ref.Refs())
	}
	_ = ref.Release()
	if clip.closed != 1 {
		t.Fatalf("unexpected close count: %d", clip.closed)
	}
}

func TestNewVideoFramePlaneGeometry(t *testing.T) {
	tests := []struct {
		pixel   engine.PixelType
		planes  int
		row0    int
		chromaH int
	}{
		{engine.PixelYUV420P8, 3, 100, 10},
		{engine.PixelYUV420P16, 3, 200, 10},
		{engine.PixelYUV422P16, 3, 200, 20},
		{engine.PixelYUV444P8, 3, 100, 20},
		{engine.PixelYUY2, 1, 200, 0},
		{engine.PixelRGB24, 1, 300, 0},
		{engine.PixelRGB32, 1, 400, 0},
	}
	for _, tc := range tests {
		t.Run(string(tc.pixel), func(t *testing.T) {
			frame, err := engine.NewVideoFrame(engine.VideoInfo{Width: 100, Height: 20, PixelType: tc.pixel})
			if err != nil {
				t.Fatalf("NewVideoFrame: %v", err)
			}
			if len(frame.Planes) != tc.planes {
				t.Fatalf("unexpected plane count: got %d want %d", len(frame.Planes), tc.planes)
			}
			if frame.Pitches[0]%64 != 0 || frame.Pitches[0] < tc.row0 {
				t.Fatalf("unexpected pitch %d for row of %d bytes", frame.Pitches[0], tc.row0)
			}
			if tc.planes == 3 {
				rows := len(frame.Planes[1]) / frame.Pitches[1]
				if rows != tc.chromaH {
					t.Fatalf("unexpected chroma rows: got %d want %d", rows, tc.chromaH)
				}
			}
		})
	}
}

func TestNewVideoFrameRejectsBadInput(t *testing.T) {
	if _, err := engine.NewVideoFrame(engine.VideoInfo{Width: 0, Height: 10, PixelType: engine.PixelRGB24}); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := engine.NewVideoFrame(engine.VideoInfo{Width: 10, Height: 10, PixelType: "Y8"}); err == nil {
		t.Fatal("expected error for unknown pixel type")
	}
}

func TestFrameFillAndCopy(t *testing.T) {
	frame, err := engine.NewVideoFrame(engine.VideoInfo{Width: 4, Height: 2, PixelType: engine.PixelYUV420P16})
	if err != nil {
		t.Fatalf("NewVideoFrame: %v", err)
	}
	frame.Fill(0, 0x0102)
	if frame.Planes[0][0] != 0x02 || frame.Planes[0][1] != 0x01 {
		t.Fatalf("unexpected sample bytes: %x %x", frame.Planes[0][0], frame.Planes[0][1])
	}
	dup := frame.Copy()
	dup.Planes[0][0] = 0xff
	if frame.Planes[0][0] == 0xff {
		t.Fatal("copy shares plane memory with original")
	}
}

func TestSetFPSReducesFraction(t *testing.T) {
	var vi engine.VideoInfo
	vi.SetFPS(60000, 2002)
	if vi.FPSNumerator != 30000 || vi.FPSDenominator != 1001 {
		t.Fatalf("unexpected fps: %d/%d", vi.FPSNumerator, vi.FPSDenominator)
	}
	vi.SetFPS(0, 1)
	if vi.HasVideo() {
		t.Fatal("expected zero rate to report no video")
	}
}

func TestValueDefined(t *testing.T) {
	if engine.Undefined().Defined() || engine.Void().Defined() {
		t.Fatal("undefined and void must not be defined")
	}
	if !engine.None().Defined() || engine.None().IsClip() {
		t.Fatal("none is a defined non-clip value")
	}
	if !engine.Int(0).Defined() || !engine.String("").Defined() {
		t.Fatal("zero values of concrete kinds are defined")
	}
	if engine.Int(3).AsFloat() != 3 {
		t.Fatal("expected int to widen to float")
	}
	if engine.Void().Kind().String() != "void" {
		t.Fatalf("unexpected kind name %q", engine.Void().Kind())
	}
}

func TestNewArgsSplitsNamed(t *testing.T) {
	args := engine.NewArgs(
		[]engine.Value{engine.String("a.star"), engine.Bool(true)},
		[]string{"", "utf8"},
	)
	if len(args.Positional) != 1 {
		t.Fatalf("unexpected positional count %d", len(args.Positional))
	}
	v, ok := args.Lookup("utf8", 5)
	if !ok || !v.AsBool() {
		t.Fatal("expected named utf8 argument")
	}
	if _, ok := args.Lookup("missing", 3); ok {
		t.Fatal("expected lookup miss")
	}
}

type stubModule struct{}

func (stubModule) Name() string { return "stub" }

func (stubModule) CreateEnvironment(int) (engine.Environment, error) { return nil, nil }

func (stubModule) Unload() error { return nil }

func TestRegisterAndOpen(t *testing.T) {
	engine.Register("engine-test-stub", stubModule{})
	mod, err := engine.Open("engine-test-stub")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if mod.Name() != "stub" {
		t.Fatalf("unexpected module %q", mod.Name())
	}

	if _, err := engine.Open("no-such-engine"); !errors.Is(err, engine.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
	if _, err := engine.Open("/nonexistent/engine.so"); !errors.Is(err, engine.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound for missing plugin, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected duplicate Register to panic")
		}
	}()
	engine.Register("engine-test-stub", stubModule{})
}
