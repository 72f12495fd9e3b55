package timeline_test

import (
	"math"
	"testing"

	"synthfilter/internal/timeline"
)

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, r int64
		want       int64
	}{
		{"exact", 10, 20, 5, 0, 40},
		{"truncates", 10, 1, 3, 0, 3},
		{"rounds", 10, 1, 3, 1, 3},
		{"rounds up", 20, 1, 3, 1, 7},
		{"negative", -10, 20, 5, 0, -40},
		{"wide intermediate", math.MaxInt64, 4, 8, 0, math.MaxInt64 / 2},
		{"overflow saturates", math.MaxInt64, 4, 1, 0, math.MaxInt64},
		{"negative overflow saturates", math.MinInt64, 4, 1, 0, math.MinInt64},
		{"divide by zero", 5, 5, 0, 0, math.MaxInt64},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := timeline.MulDiv(tc.a, tc.b, tc.c, tc.r); got != tc.want {
				t.Fatalf("MulDiv(%d, %d, %d, %d): got %d want %d", tc.a, tc.b, tc.c, tc.r, got, tc.want)
			}
		})
	}
}

func TestAvgFrameDurationWithinOneUnit(t *testing.T) {
	rates := []timeline.Rate{
		{24000, 1001}, {30000, 1001}, {60000, 1001}, {25, 1}, {24, 1}, {50, 1}, {60, 1}, {7, 3}, {120, 1}, {1, 1},
	}
	for _, rate := range rates {
		d := timeline.AvgFrameDuration(rate.Num, rate.Den)
		lhs := int64(rate.Num) * d
		rhs := int64(rate.Den) * timeline.Units
		diff := lhs - rhs
		if diff < 0 {
			diff = -diff
		}
		// |num*D - den*Units| <= num/2 means D is within half a tick.
		if diff > int64(rate.Num)/2 {
			t.Fatalf("rate %d/%d: duration %d off by %d", rate.Num, rate.Den, d, diff)
		}
		if again := timeline.AvgFrameDuration(rate.Num, rate.Den); again != d {
			t.Fatalf("rate %d/%d not idempotent: %d then %d", rate.Num, rate.Den, d, again)
		}
	}
}

func TestAvgFrameDurationKnownValues(t *testing.T) {
	if got := timeline.AvgFrameDuration(25, 1); got != 400_000 {
		t.Fatalf("25fps: got %d", got)
	}
	if got := timeline.AvgFrameDuration(24000, 1001); got != 417_083 {
		t.Fatalf("23.976fps: got %d", got)
	}
	if got := timeline.AvgFrameDuration(30000, 1001); got != 333_667 {
		t.Fatalf("29.97fps: got %d", got)
	}
	if got := timeline.AvgFrameDuration(0, 1); got != timeline.DefaultAvgTimePerFrame {
		t.Fatalf("zero rate: got %d", got)
	}
}

func TestReconcile(t *testing.T) {
	figures := timeline.Reconcile(timeline.Rate{Num: 24000, Den: 1001}, timeline.Rate{Num: 60000, Den: 1001})
	if figures.SourceAvgFrameDuration != 417_083 {
		t.Fatalf("unexpected source duration %d", figures.SourceAvgFrameDuration)
	}
	if figures.ScriptAvgFrameDuration != 166_833 {
		t.Fatalf("unexpected script duration %d", figures.ScriptAvgFrameDuration)
	}
	if figures.SourceAvgFrameRate != 23_976 {
		t.Fatalf("unexpected source rate %d", figures.SourceAvgFrameRate)
	}
	if again := timeline.Reconcile(timeline.Rate{Num: 24000, Den: 1001}, timeline.Rate{Num: 60000, Den: 1001}); again != figures {
		t.Fatalf("reconcile not deterministic: %+v vs %+v", figures, again)
	}
}

func TestReconcileSourceRateUsesScriptDenominator(t *testing.T) {
	tests := []struct {
		name           string
		source, script timeline.Rate
		want           int64
	}{
		{"pal to ntsc", timeline.Rate{Num: 25, Den: 1}, timeline.Rate{Num: 30000, Den: 1001}, 24},
		{"ntsc to integer", timeline.Rate{Num: 30000, Den: 1001}, timeline.Rate{Num: 60, Den: 1}, 30_000_000},
		{"zero script denominator", timeline.Rate{Num: 25, Den: 1}, timeline.Rate{Num: 25, Den: 0}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := timeline.Reconcile(tc.source, tc.script).SourceAvgFrameRate; got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestPadStop(t *testing.T) {
	if got := timeline.PadStop(100, 105); got != 105 {
		t.Fatalf("small gap should be padded, got %d", got)
	}
	if got := timeline.PadStop(100, 200); got != 100 {
		t.Fatalf("large gap should be kept, got %d", got)
	}
	if got := timeline.FrameStart(3, 400_000); got != 1_200_000 {
		t.Fatalf("unexpected frame start %d", got)
	}
}
