package starlarkenv

import (
	"image"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"synthfilter/internal/engine"
)

const (
	maskNone uint8 = iota
	maskHalo
	maskText
)

// subtitleClip burns a fixed caption into every frame of its child. The
// caption is rasterized once; frames are copied before drawing.
type subtitleClip struct {
	child  engine.Clip
	vi     engine.VideoInfo
	layout engine.Layout
	mask   []uint8
}

// newSubtitleClip renders text with its first baseline at (x, y). A
// non-negative lsp enables multi-line captions: the two-character sequence
// `\n` breaks the line and lsp adds extra spacing in eighths of a pixel.
func newSubtitleClip(child engine.Clip, text string, x, y, lsp int) (*subtitleClip, error) {
	vi := child.VideoInfo()
	layout, err := engine.LayoutOf(vi.PixelType)
	if err != nil {
		return nil, engine.NewScriptError("Subtitle: %v", err)
	}
	lines := []string{text}
	if lsp >= 0 {
		lines = strings.Split(text, `\n`)
	}
	return &subtitleClip{
		child:  child,
		vi:     vi,
		layout: layout,
		mask:   rasterize(lines, vi.Width, vi.Height, x, y, lsp),
	}, nil
}

func rasterize(lines []string, width, height, x, y, lsp int) []uint8 {
	face := basicfont.Face7x13
	lineHeight := face.Height
	if lsp > 0 {
		lineHeight += lsp / 8
	}
	glyphs := image.NewAlpha(image.Rect(0, 0, width, height))
	drawer := font.Drawer{Dst: glyphs, Src: image.Opaque, Face: face}
	for i, line := range lines {
		drawer.Dot = fixed.P(x, y+i*lineHeight)
		drawer.DrawString(line)
	}

	mask := make([]uint8, width*height)
	for py := range height {
		for px := range width {
			if glyphs.AlphaAt(px, py).A > 0 {
				mask[py*width+px] = maskText
				continue
			}
			if nearGlyph(glyphs, px, py) {
				mask[py*width+px] = maskHalo
			}
		}
	}
	return mask
}

func nearGlyph(glyphs *image.Alpha, px, py int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			p := image.Pt(px+dx, py+dy)
			if p.In(glyphs.Rect) && glyphs.AlphaAt(p.X, p.Y).A > 0 {
				return true
			}
		}
	}
	return false
}

func (c *subtitleClip) VideoInfo() engine.VideoInfo { return c.vi }

func (c *subtitleClip) GetFrame(n int) (*engine.VideoFrame, error) {
	in, err := c.child.GetFrame(n)
	if err != nil {
		return nil, err
	}
	out := in.Copy()
	w := c.vi.Width
	for py := range c.vi.Height {
		for px := range w {
			if m := c.mask[py*w+px]; m != maskNone {
				c.paint(out, px, py, m == maskText)
			}
		}
	}
	return out, nil
}

func (c *subtitleClip) paint(frame *engine.VideoFrame, px, py int, text bool) {
	l := c.layout
	switch {
	case l.Planar:
		luma := uint16(16)
		if text {
			luma = 235
		}
		chroma := uint16(128)
		if l.ComponentSize == 2 {
			luma, chroma = luma<<8, chroma<<8
		}
		putSample(frame.Planes[0], py*frame.Pitches[0]+px*l.ComponentSize, l.ComponentSize, luma)
		cx, cy := px/l.SubsampleW, py/l.SubsampleH
		for plane := 1; plane < 3; plane++ {
			putSample(frame.Planes[plane], cy*frame.Pitches[plane]+cx*l.ComponentSize, l.ComponentSize, chroma)
		}
	case frame.Info.PixelType == engine.PixelYUY2:
		row := frame.Planes[0][py*frame.Pitches[0]:]
		row[px*2] = 16
		if text {
			row[px*2] = 235
		}
		pair := px &^ 1
		row[pair*2+1], row[pair*2+3] = 128, 128
	default:
		value := byte(0)
		if text {
			value = 255
		}
		rowIdx := c.vi.Height - 1 - py
		start := rowIdx*frame.Pitches[0] + px*l.PackedBytes
		for i := range 3 {
			frame.Planes[0][start+i] = value
		}
	}
}

func putSample(plane []byte, off, size int, v uint16) {
	if size == 2 {
		plane[off], plane[off+1] = byte(v), byte(v>>8)
		return
	}
	plane[off] = byte(v)
}

func (c *subtitleClip) Close() error { return closeChild(c.child) }
