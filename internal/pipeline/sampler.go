package pipeline

import (
	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
)

// Frame is one planned sampling point.
type Frame struct {
	Index       int
	TimestampMs int64
}

// Plan is the sampling schedule for one job: TotalFrames timestamps at a
// fixed interval starting from 0. It is a pure value; walking it is lazy and
// restartable.
type Plan struct {
	IntervalMs  int64
	TotalFrames int
}

// NewPlan derives the schedule from the media duration and quality tier.
// There are no error conditions: a zero or negative duration still yields a
// single frame at timestamp 0. The plan does not bound-check against the
// real media length; extracting past the end is a per-frame failure.
func NewPlan(durationMs int64, tier entity.QualityTier) Plan {
	interval := tier.FrameInterval().Milliseconds()
	total := int(durationMs / interval)
	if total < 1 {
		total = 1
	}
	return Plan{IntervalMs: interval, TotalFrames: total}
}

// At returns the i-th sampling point. Timestamps are strictly increasing:
// i * IntervalMs.
func (p Plan) At(i int) Frame {
	return Frame{Index: i, TimestampMs: int64(i) * p.IntervalMs}
}
