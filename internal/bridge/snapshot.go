package bridge

import (
	"synthfilter/internal/engine"
	"synthfilter/internal/timeline"
)

// Snapshot is the state one reload commits. Its fields are never updated
// individually: a reload either publishes a new Snapshot or leaves the
// previous one in place.
type Snapshot struct {
	Source  engine.VideoInfo
	Script  engine.VideoInfo
	Figures timeline.Figures
	// Fallback is set when the clip renders an error message instead of
	// the user script.
	Fallback bool

	clip *engine.ClipRef
}

// Clip acquires the committed clip. The caller must Release it. It returns
// nil when the clip has been stopped or the handle closed.
func (s *Snapshot) Clip() *engine.ClipRef {
	if s == nil {
		return nil
	}
	return s.clip.Acquire()
}
