package delivery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"synthfilter/internal/bridge"
	"synthfilter/internal/format"
	"synthfilter/internal/logging"
	"synthfilter/internal/services"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Handle   *bridge.Handle
	Supplier *Supplier
	Sink     Sink
	// Base is the start time of output frame zero.
	Base int64
	// Count limits the number of frames rendered; zero runs to the end.
	Count  int
	Logger *slog.Logger
}

// Session drives one Handle: it links the supplier as the frame handler,
// runs a Pump over the committed clip and stops it around reloads so the
// engine never renders while a new script is being committed.
type Session struct {
	handle   *bridge.Handle
	supplier *Supplier
	sink     Sink
	base     int64
	count    int
	logger   *slog.Logger

	ops     sync.Mutex
	mu      sync.Mutex
	parent  context.Context
	media   format.MediaType
	next    int
	pump    *Pump
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	stopped bool
	unwatch func() bool
}

// NewSession validates opts.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Handle == nil || opts.Supplier == nil || opts.Sink == nil {
		return nil, errors.New("session requires a handle, a supplier and a sink")
	}
	return &Session{
		handle:   opts.Handle,
		supplier: opts.Supplier,
		sink:     opts.Sink,
		base:     opts.Base,
		count:    opts.Count,
		logger:   logging.NewComponentLogger(opts.Logger, "session"),
	}, nil
}

// Open commits the script for media and starts delivery.
func (s *Session) Open(ctx context.Context, media format.MediaType) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx = services.WithSessionID(ctx, s.handle.SessionID())
	s.parent = services.WithOperation(ctx, "deliver")
	s.media = media
	if s.unwatch != nil {
		s.unwatch()
	}
	// Cancelling the session must also release workers waiting on upstream.
	s.unwatch = context.AfterFunc(s.parent, s.supplier.Interrupt)
	s.handle.LinkFrameHandler(s.supplier)
	if err := s.handle.Reload(media, false); err != nil {
		return err
	}
	return s.startLocked()
}

// Reload stops delivery, reloads the script against the current media type
// and resumes from the first undelivered frame.
func (s *Session) Reload(ignoreDisconnect bool) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parent == nil {
		return errors.New("session not open")
	}
	s.stopLocked()
	reloadErr := s.handle.Reload(s.media, ignoreDisconnect)
	if reloadErr != nil && !errors.Is(reloadErr, bridge.ErrDisconnected) {
		s.logger.Warn("reload failed; keeping previous script", logging.Error(reloadErr))
	}
	if err := s.startLocked(); err != nil {
		return errors.Join(reloadErr, err)
	}
	return reloadErr
}

// Wait blocks until the current pump finishes and returns its error.
func (s *Session) Wait() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Next returns the index of the first frame not yet delivered.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pump != nil {
		return s.pump.Next()
	}
	return s.next
}

// Close stops delivery and unlinks the supplier. The handle stays open.
func (s *Session) Close() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	s.supplier.Close()
	s.handle.LinkFrameHandler(nil)
}

func (s *Session) startLocked() error {
	clip := s.handle.ScriptClip()
	if clip == nil {
		return ErrNoClip
	}
	count := 0
	if s.count > 0 {
		count = s.count - s.next
		if count <= 0 {
			_ = clip.Release()
			return nil
		}
	}
	pump, err := NewPump(PumpOptions{
		Clip:             clip,
		Sink:             s.sink,
		Threads:          s.handle.OutputThreads(),
		AvgFrameDuration: s.handle.Figures().ScriptAvgFrameDuration,
		Base:             s.base,
		First:            s.next,
		Count:            count,
		Logger:           logging.WithContext(s.parent, s.logger),
	})
	if err != nil {
		_ = clip.Release()
		return err
	}
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.pump, s.cancel, s.done, s.runErr, s.stopped = pump, cancel, done, nil, false
	if s.parent.Err() == nil {
		s.supplier.Resume()
	}
	go func() {
		defer close(done)
		err := pump.Run(ctx)
		if releaseErr := clip.Release(); releaseErr != nil {
			s.logger.Warn("release script clip", logging.Error(releaseErr))
		}
		s.mu.Lock()
		if !s.stopped {
			s.runErr = err
		}
		s.mu.Unlock()
	}()
	s.logger.Debug("delivery started", logging.Frame("first", s.next), logging.Int("threads", s.handle.OutputThreads()))
	return nil
}

// stopLocked cancels the pump and waits for it. The supplier stays
// interrupted until the next startLocked so engine workers still running
// cannot park on upstream. s.mu is released while waiting.
func (s *Session) stopLocked() {
	if s.pump == nil {
		return
	}
	pump, cancel, done := s.pump, s.cancel, s.done
	s.stopped = true
	cancel()
	s.supplier.Interrupt()
	s.mu.Unlock()
	<-done
	s.mu.Lock()
	s.next = pump.Next()
	s.pump = nil
	s.logger.Debug("delivery stopped", logging.Frame("next", s.next))
}
