// Package timeline converts frame rates into average frame durations and
// rate ratios on the 100ns reference clock shared with the media pipeline.
//
// All arithmetic is integer multiply-divide with a 128-bit intermediate, so
// long streams do not accumulate floating point drift.
package timeline

import (
	"math"
	"math/bits"
)

const (
	// Units is the number of reference clock ticks per second (100ns ticks).
	Units int64 = 10_000_000
	// FrameRateScaleFactor scales SourceAvgFrameRate so the ratio keeps three
	// decimal places.
	FrameRateScaleFactor int64 = 1000
	// DefaultAvgTimePerFrame is used when upstream does not announce a rate
	// (25 fps).
	DefaultAvgTimePerFrame int64 = 400_000
	// NumFramesForInfiniteStream is the frame count advertised for a live
	// source. It is divisible by every common frame rate.
	NumFramesForInfiniteStream = 10_810_800
	// MaxOutputFrameDurationPadding is the largest gap, in ticks, that the
	// delivery stage closes by stretching a frame's stop time.
	MaxOutputFrameDurationPadding int64 = 10
)

// MulDiv returns (a*b + rnd) / c computed with a 128-bit intermediate. The
// result saturates at the int64 bounds on overflow or when c is zero.
func MulDiv(a, b, c, rnd int64) int64 {
	if c == 0 {
		if sign(a)*sign(b) < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	negative := (sign(a)*sign(b) < 0) != (c < 0)
	hi, lo := bits.Mul64(abs(a), abs(b))
	// The rounding term follows the sign of the product, so rnd = c/2 rounds
	// half away from zero for either sign.
	var carry uint64
	lo, carry = bits.Add64(lo, abs(rnd), 0)
	hi += carry
	div := abs(c)
	if hi >= div {
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	quo, _ := bits.Div64(hi, lo, div)
	if quo > math.MaxInt64 {
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	if negative {
		return -int64(quo)
	}
	return int64(quo)
}

// AvgFrameDuration returns the duration of one frame at num/den frames per
// second, rounded to the nearest tick. A zero numerator yields
// DefaultAvgTimePerFrame.
func AvgFrameDuration(num, den uint32) int64 {
	if num == 0 || den == 0 {
		return DefaultAvgTimePerFrame
	}
	n := int64(num)
	return MulDiv(Units, int64(den), n, n/2)
}

// Rate is a frame rate fraction.
type Rate struct {
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

// Figures are the timing values the delivery stage paces output against.
type Figures struct {
	SourceAvgFrameDuration int64 `json:"source_avg_frame_duration"`
	ScriptAvgFrameDuration int64 `json:"script_avg_frame_duration"`
	// SourceAvgFrameRate is source.Num scaled by FrameRateScaleFactor over
	// the script denominator.
	SourceAvgFrameRate int64 `json:"source_avg_frame_rate"`
}

// Reconcile derives Figures from the source and script frame rates.
func Reconcile(source, script Rate) Figures {
	figures := Figures{
		SourceAvgFrameDuration: AvgFrameDuration(source.Num, source.Den),
		ScriptAvgFrameDuration: AvgFrameDuration(script.Num, script.Den),
	}
	if script.Den != 0 {
		figures.SourceAvgFrameRate = MulDiv(int64(source.Num), FrameRateScaleFactor, int64(script.Den), 0)
	}
	return figures
}

// FrameStart returns the start time of output frame n relative to the
// stream base.
func FrameStart(n int64, avgFrameDuration int64) int64 {
	return MulDiv(n, avgFrameDuration, 1, 0)
}

// PadStop extends stop to next when the gap between them is within
// MaxOutputFrameDurationPadding ticks.
func PadStop(stop, next int64) int64 {
	if gap := next - stop; gap > 0 && gap <= MaxOutputFrameDurationPadding {
		return next
	}
	return stop
}

func sign(v int64) int64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
