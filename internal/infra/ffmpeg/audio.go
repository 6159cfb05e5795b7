package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"os/exec"

	"go.uber.org/zap"
)

// VoiceChanger pitch-shifts the audio track while keeping the video stream
// untouched. It is a best-effort collaborator: the usecase treats any
// failure as "keep the original audio".
type VoiceChanger struct {
	semitones float64
	logger    *zap.Logger
}

func NewVoiceChanger(semitones float64, logger *zap.Logger) *VoiceChanger {
	return &VoiceChanger{semitones: semitones, logger: logger}
}

func (v *VoiceChanger) Apply(ctx context.Context, videoPath string, outPath string) (bool, error) {
	// asetrate shifts pitch by resampling, atempo compensates the speed so
	// the track keeps its length.
	ratio := math.Pow(2, v.semitones/12)
	filter := fmt.Sprintf("asetrate=44100*%.4f,aresample=44100,atempo=%.4f", ratio, 1/ratio)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-c:v", "copy",
		"-af", filter,
		"-y",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("ffmpeg voice change: %w, output: %s", err, string(output))
	}

	v.logger.Info("voice pitch shifted",
		zap.Float64("semitones", v.semitones),
		zap.String("out", outPath),
	)
	return true, nil
}
