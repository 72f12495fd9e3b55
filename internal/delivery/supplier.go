package delivery

import (
	"context"
	"errors"
	"sync"

	"synthfilter/internal/engine"
)

var (
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("supplier closed")
	// ErrNoFrame is returned when a frame is requested before any frame
	// was pushed and the supplier can no longer wait.
	ErrNoFrame = errors.New("no source frame available")
)

type sourceFrame struct {
	frame *engine.VideoFrame
	start int64
}

// Supplier buffers upstream frames for the engine. Push is called by the
// single upstream goroutine; GetSourceFrame is called concurrently by engine
// workers.
//
// The watermark is the highest frame number requested so far. Push blocks
// while the buffer holds more than 1+extra frames beyond it, and frames
// more than 1+extra below it are dropped.
type Supplier struct {
	ahead int

	mu         sync.Mutex
	changed    chan struct{}
	frames     map[int]sourceFrame
	next       int
	watermark  int
	generation uint64
	epoch      uint64
	last       *engine.VideoFrame
	paused     bool
	closed     bool
}

// NewSupplier returns a supplier allowing extra frames of read-ahead on top
// of the one frame every supplier keeps ready.
func NewSupplier(extra int) *Supplier {
	if extra < 0 {
		extra = 0
	}
	return &Supplier{
		ahead:   1 + extra,
		changed: make(chan struct{}),
		frames:  make(map[int]sourceFrame),
	}
}

// notify wakes every waiter. Callers hold s.mu.
func (s *Supplier) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Push appends the next upstream frame with its start time. It blocks until
// the buffer has room, the supplier is flushed or closed, or ctx is done.
func (s *Supplier) Push(ctx context.Context, frame *engine.VideoFrame, start int64) error {
	if frame == nil {
		return errors.New("push nil frame")
	}
	s.mu.Lock()
	gen := s.generation
	for !s.closed && s.generation == gen && s.next-s.watermark > s.ahead {
		wait := s.changed
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.generation != gen {
		// Flushed while waiting; the frame belongs to the old segment.
		return nil
	}
	s.frames[s.next] = sourceFrame{frame: frame, start: start}
	s.next++
	s.last = frame
	s.notify()
	return nil
}

// GetSourceFrame returns frame n, waiting for upstream when it has not been
// pushed yet. A request released by Interrupt, Flush or Close is answered
// with the last pushed frame instead, and so is any request for an unbuffered
// frame made between Interrupt and Resume. Requests for frames already
// dropped get the oldest frame still buffered.
func (s *Supplier) GetSourceFrame(n int) (*engine.VideoFrame, error) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		if entry, ok := s.frames[n]; ok {
			return entry.frame, nil
		}
		return s.lastLocked()
	}
	epoch := s.epoch
	if n > s.watermark {
		s.watermark = n
		s.collect()
		s.notify()
	}
	for {
		if entry, ok := s.frames[n]; ok {
			return entry.frame, nil
		}
		if n < s.next {
			if entry, ok := s.oldest(); ok {
				return entry.frame, nil
			}
		}
		if s.closed || s.epoch != epoch {
			return s.lastLocked()
		}
		wait := s.changed
		s.mu.Unlock()
		<-wait
		s.mu.Lock()
	}
}

func (s *Supplier) lastLocked() (*engine.VideoFrame, error) {
	if s.last == nil {
		return nil, ErrNoFrame
	}
	return s.last, nil
}

// collect drops frames below the retention window. Callers hold s.mu.
func (s *Supplier) collect() {
	floor := s.watermark - s.ahead
	for n := range s.frames {
		if n < floor {
			delete(s.frames, n)
		}
	}
}

func (s *Supplier) oldest() (sourceFrame, bool) {
	best := -1
	for n := range s.frames {
		if best < 0 || n < best {
			best = n
		}
	}
	if best < 0 {
		return sourceFrame{}, false
	}
	return s.frames[best], true
}

// StartOf returns the start time pushed with frame n.
func (s *Supplier) StartOf(n int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.frames[n]
	return entry.start, ok
}

// Buffered reports the number of frames currently held.
func (s *Supplier) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Flush discards buffered frames and restarts numbering at zero, as after a
// seek. Blocked requests are answered with the last pushed frame.
func (s *Supplier) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.frames)
	s.next = 0
	s.watermark = 0
	s.generation++
	s.epoch++
	s.notify()
}

// Interrupt releases blocked frame requests without touching the buffer.
// Until Resume, requests for frames not yet buffered return at once and do
// not move the watermark. Pushes keep waiting.
func (s *Supplier) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.paused = true
	s.notify()
}

// Resume lets requests wait for upstream again.
func (s *Supplier) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Paused reports whether the supplier is between Interrupt and Resume.
func (s *Supplier) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Close releases every waiter. Further pushes fail with ErrClosed.
func (s *Supplier) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	clear(s.frames)
	s.notify()
}
