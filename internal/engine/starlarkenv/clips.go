package starlarkenv

import (
	"io"

	"synthfilter/internal/engine"
	"synthfilter/internal/timeline"
)

func clampFrame(n int, vi engine.VideoInfo) int {
	if n < 0 {
		return 0
	}
	if vi.NumFrames > 0 && n >= vi.NumFrames {
		return vi.NumFrames - 1
	}
	return n
}

func closeChild(child engine.Clip) error {
	if closer, ok := child.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// blankClip returns the same black frame for every index.
type blankClip struct {
	vi    engine.VideoInfo
	frame *engine.VideoFrame
}

func newBlankClip(vi engine.VideoInfo) (*blankClip, error) {
	if vi.NumFrames <= 0 {
		return nil, engine.NewScriptError("BlankClip: length must be positive")
	}
	frame, err := engine.NewVideoFrame(vi)
	if err != nil {
		return nil, engine.NewScriptError("BlankClip: %v", err)
	}
	fillBlack(frame)
	return &blankClip{vi: vi, frame: frame}, nil
}

func (c *blankClip) VideoInfo() engine.VideoInfo { return c.vi }

func (c *blankClip) GetFrame(int) (*engine.VideoFrame, error) { return c.frame, nil }

// fillBlack paints limited-range black (or zero for RGB).
func fillBlack(frame *engine.VideoFrame) {
	layout, err := engine.LayoutOf(frame.Info.PixelType)
	if err != nil {
		return
	}
	switch {
	case layout.Planar:
		luma, chroma := uint16(16), uint16(128)
		if layout.ComponentSize == 2 {
			luma, chroma = luma<<8, chroma<<8
		}
		frame.Fill(0, luma)
		frame.Fill(1, chroma)
		frame.Fill(2, chroma)
	case frame.Info.PixelType == engine.PixelYUY2:
		plane := frame.Planes[0]
		for i := 0; i+1 < len(plane); i += 2 {
			plane[i], plane[i+1] = 16, 128
		}
	default:
		frame.Fill(0, 0)
	}
}

type assumeFPSClip struct {
	child engine.Clip
	vi    engine.VideoInfo
}

func newAssumeFPSClip(child engine.Clip, num, den int) (*assumeFPSClip, error) {
	if num <= 0 || den <= 0 {
		return nil, engine.NewScriptError("AssumeFPS: frame rate must be positive")
	}
	vi := child.VideoInfo()
	vi.SetFPS(uint32(num), uint32(den))
	return &assumeFPSClip{child: child, vi: vi}, nil
}

func (c *assumeFPSClip) VideoInfo() engine.VideoInfo { return c.vi }

func (c *assumeFPSClip) GetFrame(n int) (*engine.VideoFrame, error) {
	return c.child.GetFrame(n)
}

func (c *assumeFPSClip) Close() error { return closeChild(c.child) }

// changeFPSClip drops or repeats frames to reach a new rate while keeping
// the duration.
type changeFPSClip struct {
	child engine.Clip
	vi    engine.VideoInfo
	// frame n maps to source frame round(n * mul / div)
	mul, div int64
}

func newChangeFPSClip(child engine.Clip, num, den int) (*changeFPSClip, error) {
	if num <= 0 || den <= 0 {
		return nil, engine.NewScriptError("ChangeFPS: frame rate must be positive")
	}
	src := child.VideoInfo()
	if !src.HasVideo() {
		return nil, engine.NewScriptError("ChangeFPS: source clip has no frame rate")
	}
	vi := src
	vi.SetFPS(uint32(num), uint32(den))
	mul := int64(vi.FPSDenominator) * int64(src.FPSNumerator)
	div := int64(vi.FPSNumerator) * int64(src.FPSDenominator)
	vi.NumFrames = int(timeline.MulDiv(int64(src.NumFrames), div, mul, 0))
	if vi.NumFrames < 1 {
		vi.NumFrames = 1
	}
	return &changeFPSClip{child: child, vi: vi, mul: mul, div: div}, nil
}

func (c *changeFPSClip) VideoInfo() engine.VideoInfo { return c.vi }

func (c *changeFPSClip) GetFrame(n int) (*engine.VideoFrame, error) {
	n = clampFrame(n, c.vi)
	src := int(timeline.MulDiv(int64(n), c.mul, c.div, c.div/2))
	return c.child.GetFrame(clampFrame(src, c.child.VideoInfo()))
}

func (c *changeFPSClip) Close() error { return closeChild(c.child) }

type cropClip struct {
	child     engine.Clip
	vi        engine.VideoInfo
	layout    engine.Layout
	left, top int
}

// newCropClip follows the usual convention that a non-positive width or
// height is measured from the right or bottom edge.
func newCropClip(child engine.Clip, left, top, width, height int) (*cropClip, error) {
	src := child.VideoInfo()
	layout, err := engine.LayoutOf(src.PixelType)
	if err != nil {
		return nil, engine.NewScriptError("Crop: %v", err)
	}
	if width <= 0 {
		width = src.Width - left + width
	}
	if height <= 0 {
		height = src.Height - top + height
	}
	if left < 0 || top < 0 || width <= 0 || height <= 0 || left+width > src.Width || top+height > src.Height {
		return nil, engine.NewScriptError("Crop: %dx%d+%d+%d is outside the %dx%d source", width, height, left, top, src.Width, src.Height)
	}
	if left%layout.SubsampleW != 0 || width%layout.SubsampleW != 0 {
		return nil, engine.NewScriptError("Crop: horizontal values must be multiples of %d for %s", layout.SubsampleW, src.PixelType)
	}
	if top%layout.SubsampleH != 0 || height%layout.SubsampleH != 0 {
		return nil, engine.NewScriptError("Crop: vertical values must be multiples of %d for %s", layout.SubsampleH, src.PixelType)
	}
	vi := src
	vi.Width, vi.Height = width, height
	return &cropClip{child: child, vi: vi, layout: layout, left: left, top: top}, nil
}

func (c *cropClip) VideoInfo() engine.VideoInfo { return c.vi }

func (c *cropClip) GetFrame(n int) (*engine.VideoFrame, error) {
	in, err := c.child.GetFrame(n)
	if err != nil {
		return nil, err
	}
	out, err := engine.NewVideoFrame(c.vi)
	if err != nil {
		return nil, err
	}
	srcH := c.child.VideoInfo().Height
	for idx := range out.Planes {
		rowBytes, rows := c.layout.PlaneDims(idx, c.vi.Width, c.vi.Height)
		xOff, yOff := c.offsets(idx)
		if !c.layout.Planar && isRGB(c.vi.PixelType) {
			// RGB frames are stored bottom-up.
			yOff = srcH - c.top - c.vi.Height
		}
		for row := range rows {
			srcStart := (yOff+row)*in.Pitches[idx] + xOff
			copy(out.Planes[idx][row*out.Pitches[idx]:row*out.Pitches[idx]+rowBytes], in.Planes[idx][srcStart:srcStart+rowBytes])
		}
	}
	return out, nil
}

func (c *cropClip) offsets(idx int) (xBytes, yRows int) {
	if !c.layout.Planar {
		return c.left * c.layout.PackedBytes, c.top
	}
	if idx == 0 {
		return c.left * c.layout.ComponentSize, c.top
	}
	return c.left / c.layout.SubsampleW * c.layout.ComponentSize, c.top / c.layout.SubsampleH
}

func (c *cropClip) Close() error { return closeChild(c.child) }

func isRGB(pt engine.PixelType) bool {
	return pt == engine.PixelRGB24 || pt == engine.PixelRGB32
}
