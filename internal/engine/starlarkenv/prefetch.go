package starlarkenv

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"synthfilter/internal/engine"
)

type prefetchEntry struct {
	done  chan struct{}
	frame *engine.VideoFrame
	err   error
}

// prefetchClip renders up to `frames` frames ahead of the last request on at
// most `threads` background goroutines. GetFrame is safe for concurrent use.
type prefetchClip struct {
	child  engine.Clip
	vi     engine.VideoInfo
	frames int
	sem    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cache    map[int]*prefetchEntry
	inflight int
	closed   bool
}

func newPrefetchClip(child engine.Clip, threads, frames int) *prefetchClip {
	ctx, cancel := context.WithCancel(context.Background())
	return &prefetchClip{
		child:  child,
		vi:     child.VideoInfo(),
		frames: frames,
		sem:    semaphore.NewWeighted(int64(threads)),
		ctx:    ctx,
		cancel: cancel,
		cache:  make(map[int]*prefetchEntry),
	}
}

func (p *prefetchClip) VideoInfo() engine.VideoInfo { return p.vi }

func (p *prefetchClip) GetFrame(n int) (*engine.VideoFrame, error) {
	n = clampFrame(n, p.vi)
	p.mu.Lock()
	entry, ok := p.cache[n]
	if !ok {
		entry = &prefetchEntry{done: make(chan struct{})}
		p.cache[n] = entry
	}
	p.evictLocked(n)
	p.mu.Unlock()
	if !ok {
		p.fill(n, entry)
	}
	for ahead := 1; ahead <= p.frames; ahead++ {
		p.lookahead(n + ahead)
	}
	<-entry.done
	return entry.frame, entry.err
}

func (p *prefetchClip) lookahead(n int) {
	if p.ctx.Err() != nil || (p.vi.NumFrames > 0 && n >= p.vi.NumFrames) {
		return
	}
	p.mu.Lock()
	if _, ok := p.cache[n]; ok {
		p.mu.Unlock()
		return
	}
	if p.closed || !p.sem.TryAcquire(1) {
		p.mu.Unlock()
		return
	}
	entry := &prefetchEntry{done: make(chan struct{})}
	p.cache[n] = entry
	p.inflight++
	p.mu.Unlock()

	go func() {
		p.fill(n, entry)
		p.sem.Release(1)
		p.finish()
	}()
}

// finish retires one background fetch. The last fetch out after Close
// closes the child.
func (p *prefetchClip) finish() {
	p.mu.Lock()
	p.inflight--
	last := p.closed && p.inflight == 0
	p.mu.Unlock()
	if last {
		if err := closeChild(p.child); err != nil {
			slog.Default().Warn("close prefetched clip", slog.Any("error", err))
		}
	}
}

func (p *prefetchClip) fill(n int, entry *prefetchEntry) {
	entry.frame, entry.err = p.child.GetFrame(n)
	close(entry.done)
}

// evictLocked drops finished entries outside the window around n. Failed
// frames are dropped too so a later request retries them.
func (p *prefetchClip) evictLocked(n int) {
	for idx, entry := range p.cache {
		if idx >= n-p.frames && idx <= n+p.frames && idx != n {
			continue
		}
		select {
		case <-entry.done:
			if idx != n || entry.err != nil {
				delete(p.cache, idx)
			}
		default:
		}
	}
}

// Close stops lookahead. Fetches still parked upstream are detached: the
// child is closed by whichever of Close and the last fetch runs last.
func (p *prefetchClip) Close() error {
	p.cancel()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.inflight == 0
	p.mu.Unlock()
	if !idle {
		return nil
	}
	return closeChild(p.child)
}
