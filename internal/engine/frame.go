package engine

import "fmt"

const frameAlign = 64

// VideoFrame holds the pixel planes of one frame.
//
// Frames handed out by a Clip may be shared between consumers and must be
// treated as read-only. Filters that modify pixels work on a Copy.
type VideoFrame struct {
	Info    VideoInfo
	Planes  [][]byte
	Pitches []int
}

// NewVideoFrame allocates a zeroed frame for vi with aligned row pitches.
func NewVideoFrame(vi VideoInfo) (*VideoFrame, error) {
	if vi.Width <= 0 || vi.Height <= 0 {
		return nil, fmt.Errorf("new frame: invalid geometry %dx%d", vi.Width, vi.Height)
	}
	layout, err := LayoutOf(vi.PixelType)
	if err != nil {
		return nil, fmt.Errorf("new frame: %w", err)
	}
	frame := &VideoFrame{
		Info:    vi,
		Planes:  make([][]byte, layout.Planes),
		Pitches: make([]int, layout.Planes),
	}
	for idx := range layout.Planes {
		rowBytes, rows := layout.PlaneDims(idx, vi.Width, vi.Height)
		pitch := (rowBytes + frameAlign - 1) &^ (frameAlign - 1)
		frame.Pitches[idx] = pitch
		frame.Planes[idx] = make([]byte, pitch*rows)
	}
	return frame, nil
}

// Copy returns a deep copy of the frame.
func (f *VideoFrame) Copy() *VideoFrame {
	if f == nil {
		return nil
	}
	out := &VideoFrame{
		Info:    f.Info,
		Planes:  make([][]byte, len(f.Planes)),
		Pitches: append([]int(nil), f.Pitches...),
	}
	for i, plane := range f.Planes {
		out.Planes[i] = append([]byte(nil), plane...)
	}
	return out
}

// Fill sets every sample of plane idx to value. Two-byte samples are written
// little-endian.
func (f *VideoFrame) Fill(idx int, value uint16) {
	if f == nil || idx >= len(f.Planes) {
		return
	}
	layout, err := LayoutOf(f.Info.PixelType)
	if err != nil {
		return
	}
	plane := f.Planes[idx]
	if layout.ComponentSize == 2 {
		lo, hi := byte(value), byte(value>>8)
		for i := 0; i+1 < len(plane); i += 2 {
			plane[i], plane[i+1] = lo, hi
		}
		return
	}
	for i := range plane {
		plane[i] = byte(value)
	}
}
