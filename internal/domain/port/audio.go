package port

import "context"

// VoiceChanger pitch-shifts the audio track of a video. Implementations are
// best-effort: when the pass cannot run, callers treat the original video as
// the output with applied=false.
type VoiceChanger interface {
	Apply(ctx context.Context, videoPath string, outPath string) (applied bool, err error)
}
