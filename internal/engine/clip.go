package engine

import (
	"io"
	"sync/atomic"
)

// Clip is a sequence of frames sharing one VideoInfo.
//
// GetFrame may be called from several goroutines at once once a clip has been
// handed to a consumer.
type Clip interface {
	VideoInfo() VideoInfo
	GetFrame(n int) (*VideoFrame, error)
}

// ClipRef is a shared, reference-counted handle to a Clip. The clip is closed
// (when it implements io.Closer) as soon as the last holder releases it.
type ClipRef struct {
	clip Clip
	refs atomic.Int64
}

// NewClipRef wraps clip with a reference count of one owned by the caller.
func NewClipRef(clip Clip) *ClipRef {
	ref := &ClipRef{clip: clip}
	ref.refs.Store(1)
	return ref
}

// Acquire adds a reference and returns the same handle. It returns nil when
// the handle has already been fully released.
func (r *ClipRef) Acquire() *ClipRef {
	if r == nil {
		return nil
	}
	for {
		current := r.refs.Load()
		if current <= 0 {
			return nil
		}
		if r.refs.CompareAndSwap(current, current+1) {
			return r
		}
	}
}

// Release drops one reference. The final release closes the clip and returns
// the close error, if any.
func (r *ClipRef) Release() error {
	if r == nil {
		return nil
	}
	remaining := r.refs.Add(-1)
	if remaining > 0 {
		return nil
	}
	if remaining < 0 {
		r.refs.Store(0)
		return nil
	}
	if closer, ok := r.clip.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Clip returns the wrapped clip, or nil after the final release.
func (r *ClipRef) Clip() Clip {
	if r == nil || r.refs.Load() <= 0 {
		return nil
	}
	return r.clip
}

// Refs reports the current reference count.
func (r *ClipRef) Refs() int64 {
	if r == nil {
		return 0
	}
	return r.refs.Load()
}
