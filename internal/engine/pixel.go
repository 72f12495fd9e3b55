package engine

import "fmt"

// PixelType names the in-engine memory layout of a frame.
type PixelType string

const (
	PixelYUV420P8  PixelType = "YUV420P8"
	PixelYUV420P16 PixelType = "YUV420P16"
	PixelYUV422P16 PixelType = "YUV422P16"
	PixelYUV444P8  PixelType = "YUV444P8"
	PixelYUY2      PixelType = "YUY2"
	PixelRGB24     PixelType = "RGB24"
	PixelRGB32     PixelType = "RGB32"
)

// Layout describes how a PixelType is stored.
type Layout struct {
	Planar bool
	// Planes is 3 for planar YUV and 1 for packed formats.
	Planes int
	// ComponentSize is the byte width of one sample (1 or 2).
	ComponentSize int
	// SubsampleW and SubsampleH are the chroma subsampling divisors. Packed
	// YUY2 reports SubsampleW=2 so crops stay on macropixel boundaries.
	SubsampleW int
	SubsampleH int
	// PackedBytes is the bytes per pixel of a packed layout.
	PackedBytes int
}

var layouts = map[PixelType]Layout{
	PixelYUV420P8:  {Planar: true, Planes: 3, ComponentSize: 1, SubsampleW: 2, SubsampleH: 2},
	PixelYUV420P16: {Planar: true, Planes: 3, ComponentSize: 2, SubsampleW: 2, SubsampleH: 2},
	PixelYUV422P16: {Planar: true, Planes: 3, ComponentSize: 2, SubsampleW: 2, SubsampleH: 1},
	PixelYUV444P8:  {Planar: true, Planes: 3, ComponentSize: 1, SubsampleW: 1, SubsampleH: 1},
	PixelYUY2:      {Planes: 1, ComponentSize: 1, SubsampleW: 2, SubsampleH: 1, PackedBytes: 2},
	PixelRGB24:     {Planes: 1, ComponentSize: 1, SubsampleW: 1, SubsampleH: 1, PackedBytes: 3},
	PixelRGB32:     {Planes: 1, ComponentSize: 1, SubsampleW: 1, SubsampleH: 1, PackedBytes: 4},
}

// LayoutOf returns the storage layout for pt.
func LayoutOf(pt PixelType) (Layout, error) {
	layout, ok := layouts[pt]
	if !ok {
		return Layout{}, fmt.Errorf("unsupported pixel type %q", pt)
	}
	return layout, nil
}

// Valid reports whether pt has a known layout.
func (pt PixelType) Valid() bool {
	_, ok := layouts[pt]
	return ok
}

// PlaneDims returns the width in bytes and the height in rows of plane idx
// for a frame of the given geometry.
func (l Layout) PlaneDims(idx, width, height int) (rowBytes, rows int) {
	if !l.Planar {
		return width * l.PackedBytes, height
	}
	if idx == 0 {
		return width * l.ComponentSize, height
	}
	return (width / l.SubsampleW) * l.ComponentSize, height / l.SubsampleH
}
