package engine

import "fmt"

// VideoInfo is the format of a clip as seen by the engine.
type VideoInfo struct {
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	FPSNumerator   uint32    `json:"fps_numerator"`
	FPSDenominator uint32    `json:"fps_denominator"`
	NumFrames      int       `json:"num_frames"`
	PixelType      PixelType `json:"pixel_type"`
}

// SetFPS stores the frame rate reduced to lowest terms.
func (vi *VideoInfo) SetFPS(num, den uint32) {
	if num == 0 || den == 0 {
		vi.FPSNumerator, vi.FPSDenominator = num, den
		return
	}
	g := gcd(uint64(num), uint64(den))
	vi.FPSNumerator = uint32(uint64(num) / g)
	vi.FPSDenominator = uint32(uint64(den) / g)
}

// FrameRate returns the frame rate as a float for display.
func (vi VideoInfo) FrameRate() float64 {
	if vi.FPSDenominator == 0 {
		return 0
	}
	return float64(vi.FPSNumerator) / float64(vi.FPSDenominator)
}

// HasVideo reports whether the descriptor carries usable geometry and timing.
func (vi VideoInfo) HasVideo() bool {
	return vi.Width > 0 && vi.Height > 0 && vi.FPSNumerator > 0 && vi.FPSDenominator > 0
}

func (vi VideoInfo) String() string {
	return fmt.Sprintf("%dx%d %s @ %d/%d", vi.Width, vi.Height, vi.PixelType, vi.FPSNumerator, vi.FPSDenominator)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
