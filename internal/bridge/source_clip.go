package bridge

import (
	"errors"
	"sync"

	"synthfilter/internal/engine"
)

// FrameHandler supplies upstream frames to the placeholder source clip.
// GetSourceFrame is called concurrently by engine worker threads.
type FrameHandler interface {
	GetSourceFrame(n int) (*engine.VideoFrame, error)
}

var errNoSourceFrame = errors.New("no source frame available")

// SourceClip is the clip scripts receive from FilterSource. Its descriptor
// follows the current upstream format, and frame requests are routed to the
// linked FrameHandler.
type SourceClip struct {
	mu      sync.RWMutex
	info    engine.VideoInfo
	handler FrameHandler
	drain   *engine.VideoFrame
}

func newSourceClip() *SourceClip {
	return &SourceClip{}
}

// VideoInfo returns the current source descriptor.
func (c *SourceClip) VideoInfo() engine.VideoInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// GetFrame fetches frame n from the linked handler. Without a handler the
// drain frame is returned so the engine can still flush its caches.
func (c *SourceClip) GetFrame(n int) (*engine.VideoFrame, error) {
	c.mu.RLock()
	handler, drain := c.handler, c.drain
	c.mu.RUnlock()
	if handler != nil {
		return handler.GetSourceFrame(n)
	}
	if drain == nil {
		return nil, errNoSourceFrame
	}
	return drain, nil
}

func (c *SourceClip) setFormat(info engine.VideoInfo, drain *engine.VideoFrame) {
	c.mu.Lock()
	c.info = info
	c.drain = drain
	c.mu.Unlock()
}

func (c *SourceClip) setHandler(handler FrameHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

func (c *SourceClip) drainFrame() *engine.VideoFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.drain
}

func (c *SourceClip) releaseDrain() {
	c.mu.Lock()
	c.drain = nil
	c.mu.Unlock()
}
