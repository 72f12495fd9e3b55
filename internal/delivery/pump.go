package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"synthfilter/internal/engine"
	"synthfilter/internal/logging"
	"synthfilter/internal/timeline"
)

// ErrNoClip is returned when the pump is started without a live clip.
var ErrNoClip = errors.New("no script clip")

// OutputFrame is one rendered frame with its presentation interval.
type OutputFrame struct {
	Index int
	Frame *engine.VideoFrame
	Start int64
	Stop  int64
}

// Sink receives rendered frames in presentation order.
type Sink interface {
	Deliver(ctx context.Context, frame OutputFrame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, frame OutputFrame) error

func (f SinkFunc) Deliver(ctx context.Context, frame OutputFrame) error { return f(ctx, frame) }

// PumpOptions configures a Pump.
type PumpOptions struct {
	Clip    *engine.ClipRef
	Sink    Sink
	Threads int
	// AvgFrameDuration is the script's average frame duration in ticks.
	AvgFrameDuration int64
	// Base is the start time of frame zero.
	Base int64
	// First is the first frame to render; Count limits the run. A Count of
	// zero renders to the end of the clip.
	First  int
	Count  int
	Logger *slog.Logger
}

// Pump renders a clip with parallel workers and delivers frames in order.
type Pump struct {
	opts      PumpOptions
	logger    *slog.Logger
	delivered atomic.Int64
	next      atomic.Int64
}

// NewPump validates opts and returns a pump ready to Run.
func NewPump(opts PumpOptions) (*Pump, error) {
	if opts.Sink == nil {
		return nil, errors.New("pump requires a sink")
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.AvgFrameDuration <= 0 {
		opts.AvgFrameDuration = timeline.DefaultAvgTimePerFrame
	}
	if opts.First < 0 {
		opts.First = 0
	}
	p := &Pump{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "delivery")}
	p.next.Store(int64(opts.First))
	return p, nil
}

// Delivered reports how many frames reached the sink.
func (p *Pump) Delivered() int64 { return p.delivered.Load() }

// Next returns the index of the first frame not yet delivered.
func (p *Pump) Next() int { return int(p.next.Load()) }

type rendered struct {
	frame *engine.VideoFrame
	err   error
}

// Run renders until the last frame is delivered, the sink fails, or ctx is
// cancelled. The clip reference is held for the whole run.
func (p *Pump) Run(ctx context.Context) error {
	ref := p.opts.Clip.Acquire()
	if ref == nil {
		return ErrNoClip
	}
	defer func() {
		if err := ref.Release(); err != nil {
			p.logger.Warn("release script clip", logging.Error(err))
		}
	}()
	clip := ref.Clip()
	if clip == nil {
		return ErrNoClip
	}

	first := p.opts.First
	end := clip.VideoInfo().NumFrames
	if p.opts.Count > 0 && first+p.opts.Count < end {
		end = first + p.opts.Count
	}
	if first >= end {
		return nil
	}
	total := int64(end - first)

	threads := p.opts.Threads
	sem := semaphore.NewWeighted(int64(threads))
	pending := make(chan chan rendered, threads)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(pending)
		for n := first; n < end; n++ {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			slot := make(chan rendered, 1)
			select {
			case pending <- slot:
			case <-gctx.Done():
				sem.Release(1)
				return nil
			}
			g.Go(func() error {
				defer sem.Release(1)
				frame, err := clip.GetFrame(n)
				slot <- rendered{frame: frame, err: err}
				return nil
			})
		}
		return nil
	})

	g.Go(func() error {
		sampler := logging.NewProgressSampler(10, 500)
		n := first
		for slot := range pending {
			var out rendered
			select {
			case out = <-slot:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err := gctx.Err(); err != nil {
				// Frames rendered after a stop may come from an interrupted source.
				return err
			}
			if out.err != nil {
				return fmt.Errorf("render frame %d: %w", n, out.err)
			}
			frame := p.stamp(n, out.frame)
			if err := p.opts.Sink.Deliver(gctx, frame); err != nil {
				return fmt.Errorf("deliver frame %d: %w", n, err)
			}
			n++
			p.next.Store(int64(n))
			done := p.delivered.Add(1)
			if sampler.ShouldLog(done, total) {
				p.logger.Debug("delivery progress",
					logging.Int("frames", int(done)),
					logging.Int("total", int(total)),
					logging.Frame("next", n))
			}
		}
		return gctx.Err()
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("delivery stopped", logging.Error(err), logging.Frame("next", p.Next()))
	}
	return err
}

func (p *Pump) stamp(n int, frame *engine.VideoFrame) OutputFrame {
	avg := p.opts.AvgFrameDuration
	start := p.opts.Base + timeline.FrameStart(int64(n), avg)
	next := p.opts.Base + timeline.FrameStart(int64(n+1), avg)
	return OutputFrame{
		Index: n,
		Frame: frame,
		Start: start,
		Stop:  timeline.PadStop(start+avg, next),
	}
}
