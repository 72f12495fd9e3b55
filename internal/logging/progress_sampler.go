package logging

// ProgressSampler suppresses repetitive delivery progress logs. It emits when
// the completed percentage crosses a bucket boundary, or every Interval
// frames for open-ended streams.
type ProgressSampler struct {
	bucketSize float64
	interval   int64
	lastBucket int
	lastFrames int64
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or, with unknown totals, every interval
// frames (default 500).
func NewProgressSampler(bucketSize float64, interval int64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	if interval <= 0 {
		interval = 500
	}
	return &ProgressSampler{bucketSize: bucketSize, interval: interval, lastBucket: -1, lastFrames: -1}
}

// ShouldLog reports whether progress at frames out of total should be
// logged. A total of zero or less means the stream is open ended.
func (s *ProgressSampler) ShouldLog(frames, total int64) bool {
	if s == nil {
		return true
	}
	if total <= 0 {
		if s.lastFrames < 0 || frames-s.lastFrames >= s.interval {
			s.lastFrames = frames
			return true
		}
		return false
	}
	percent := float64(frames) * 100 / float64(total)
	if percent > 100 {
		percent = 100
	}
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Reset clears the sampler state (e.g. after a seek flushes delivery).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastFrames = -1
}
