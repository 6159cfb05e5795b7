package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Extractor pulls single frames out of a video with ffmpeg. One invocation
// per timestamp: the pipeline decides the cadence, not ffmpeg.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) ExtractFrameAt(ctx context.Context, videoPath string, timestampMs int64, outPath string) error {
	seek := fmt.Sprintf("%.3f", float64(timestampMs)/1000.0)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", seek,
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract at %ss: %w, output: %s", seek, err, string(output))
	}

	e.logger.Debug("frame extracted",
		zap.Int64("timestamp_ms", timestampMs),
		zap.String("out", outPath),
	)
	return nil
}

// ProbeDurationMs reads the container duration with ffprobe.
func (e *Extractor) ProbeDurationMs(ctx context.Context, videoPath string) (int64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return int64(duration * 1000), nil
}
