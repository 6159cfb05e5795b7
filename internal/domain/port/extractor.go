package port

import "context"

// FrameExtractor pulls a single still image out of a video. Extraction past
// the real end of the media is a per-frame error, not a contract violation.
type FrameExtractor interface {
	ExtractFrameAt(ctx context.Context, videoPath string, timestampMs int64, outPath string) error
}

// DurationProber reports the media duration in milliseconds. A probe failure
// is recoverable: callers fall back to a single-frame plan.
type DurationProber interface {
	ProbeDurationMs(ctx context.Context, videoPath string) (int64, error)
}
