package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
	"github.com/vidmask/vidmask-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

type fakeExtractor struct {
	failAt map[int64]error
	calls  []int64
	onCall func(n int)
}

func (f *fakeExtractor) ExtractFrameAt(ctx context.Context, videoPath string, timestampMs int64, outPath string) error {
	f.calls = append(f.calls, timestampMs)
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if err, ok := f.failAt[timestampMs]; ok {
		return err
	}
	return nil
}

type detectorFunc func(ctx context.Context, imagePath string) ([]entity.BoundingBox, error)

func (f detectorFunc) DetectFaces(ctx context.Context, imagePath string) ([]entity.BoundingBox, error) {
	return f(ctx, imagePath)
}

type fakeDetectorProvider struct {
	detector port.FaceDetector
	err      error
	resolved int
}

func (f *fakeDetectorProvider) Resolve(ctx context.Context) (port.FaceDetector, error) {
	f.resolved++
	if f.err != nil {
		return nil, f.err
	}
	return f.detector, nil
}

type fakeCompositor struct {
	err   error
	calls []string
}

func (f *fakeCompositor) Resolve(ctx context.Context) (port.Compositor, error) {
	return f, nil
}

func (f *fakeCompositor) Composite(ctx context.Context, framePath string, boxes []entity.BoundingBox, blurIntensity float64) (string, error) {
	f.calls = append(f.calls, framePath)
	if f.err != nil {
		return "", f.err
	}
	return framePath + "_blurred.jpg", nil
}

type fakeArtifacts struct {
	removed map[string]int
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{removed: make(map[string]int)}
}

func (f *fakeArtifacts) WorkDir(jobID string) (string, error) { return "", nil }
func (f *fakeArtifacts) Remove(path string) error {
	f.removed[path]++
	return nil
}
func (f *fakeArtifacts) RemoveAll(dir string) error { return nil }

// noFaces is the default detector: every frame comes back empty.
var noFaces = detectorFunc(func(ctx context.Context, imagePath string) ([]entity.BoundingBox, error) {
	return nil, nil
})

type runHarness struct {
	extractor  *fakeExtractor
	provider   *fakeDetectorProvider
	compositor *fakeCompositor
	artifacts  *fakeArtifacts
	orch       *Orchestrator
	events     []entity.ProgressEvent
}

func newRunHarness(t *testing.T) *runHarness {
	t.Helper()
	h := &runHarness{
		extractor:  &fakeExtractor{failAt: map[int64]error{}},
		provider:   &fakeDetectorProvider{detector: noFaces},
		compositor: &fakeCompositor{},
		artifacts:  newFakeArtifacts(),
	}
	h.orch = NewOrchestrator(h.extractor, h.provider, h.compositor, h.artifacts, zap.NewNop())
	return h
}

func (h *runHarness) run(t *testing.T, ctx context.Context, durationMs int64, opts entity.Options) *Result {
	t.Helper()
	res, err := h.orch.Run(ctx, Source{
		Path:       "input.mp4",
		Key:        "videos/input.mp4",
		WorkDir:    t.TempDir(),
		DurationMs: durationMs,
	}, opts, func(ev entity.ProgressEvent) {
		h.events = append(h.events, ev)
	})
	require.NoError(t, err)
	return res
}

func (h *runHarness) percents() []int {
	out := make([]int, len(h.events))
	for i, ev := range h.events {
		out[i] = ev.PercentComplete
	}
	return out
}

func TestRunHappyPathDetectsAndComposites(t *testing.T) {
	h := newRunHarness(t)

	// Two overlapping faces, only on the frame at 4000ms (index 2).
	h.provider.detector = detectorFunc(func(ctx context.Context, imagePath string) ([]entity.BoundingBox, error) {
		if strings.HasSuffix(imagePath, "frame_0002.jpg") {
			return []entity.BoundingBox{
				{Left: 10, Top: 10, Width: 50, Height: 50},
				{Left: 30, Top: 30, Width: 50, Height: 50},
			}, nil
		}
		return nil, nil
	})

	res := h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	assert.Equal(t, 5, res.TotalFrames)
	assert.Equal(t, 5, res.FramesProcessed)
	assert.Equal(t, 0, res.FramesFailed)
	assert.Equal(t, 2, res.FacesDetected)
	assert.True(t, res.BlurApplied)
	assert.Equal(t, []int64{0, 2000, 4000, 6000, 8000}, h.extractor.calls)
	assert.Len(t, h.compositor.calls, 1)
	require.Len(t, res.CompositedFrames, 1)
	assert.True(t, strings.HasSuffix(res.CompositedFrames[0], "frame_0002.jpg_blurred.jpg"))
}

func TestRunProgressMonotonicAndTerminal(t *testing.T) {
	h := newRunHarness(t)

	h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	percents := h.percents()
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress must never decrease")
	}

	// 5 + 10 preamble, one event per planned frame, terminal 100.
	assert.Equal(t, []int{5, 10, 26, 42, 58, 74, 90, 100}, percents)
}

func TestRunLongPlanProgressStrictlyIncreasing(t *testing.T) {
	h := newRunHarness(t)

	// 300 frames map several frames onto each integer percent; the repeats
	// must be swallowed, not republished.
	res := h.run(t, context.Background(), 300000, entity.Options{Quality: entity.QualityHigh})
	require.Equal(t, 300, res.TotalFrames)

	percents := h.percents()
	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.Greater(t, percents[i], percents[i-1], "percent %d repeated at event %d", percents[i], i)
	}
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.LessOrEqual(t, len(percents), 83, "at most one event per integer percent step")
}

func TestRunExtractionFailureIsAbsorbed(t *testing.T) {
	h := newRunHarness(t)
	h.extractor.failAt[4000] = errors.New("seek past end of file")

	res := h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	assert.Equal(t, 1, res.FramesFailed)
	assert.Equal(t, 4, res.FramesProcessed)
	assert.Len(t, h.extractor.calls, 5, "remaining frames must still be attempted")
	assert.Equal(t, 100, h.events[len(h.events)-1].PercentComplete)
}

func TestRunDetectionFailureTreatedAsNoFaces(t *testing.T) {
	h := newRunHarness(t)
	h.provider.detector = detectorFunc(func(ctx context.Context, imagePath string) ([]entity.BoundingBox, error) {
		return nil, errors.New("model inference failed")
	})

	res := h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	assert.Equal(t, 0, res.FramesFailed)
	assert.Equal(t, 5, res.FramesProcessed)
	assert.Equal(t, 0, res.FacesDetected)
	assert.Empty(t, h.compositor.calls)
}

func TestRunCompositeFailureIsAbsorbed(t *testing.T) {
	h := newRunHarness(t)
	h.provider.detector = detectorFunc(func(ctx context.Context, imagePath string) ([]entity.BoundingBox, error) {
		return []entity.BoundingBox{{Left: 0, Top: 0, Width: 10, Height: 10}}, nil
	})
	h.compositor.err = errors.New("corrupt jpeg")

	res := h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	assert.Equal(t, 5, res.FramesFailed)
	assert.Equal(t, 0, res.FramesProcessed)
	assert.Equal(t, 0, res.FacesDetected, "faces only count when the blur landed")
	assert.Equal(t, 100, h.events[len(h.events)-1].PercentComplete)
}

func TestRunDegradesToPassThroughOnDependencyFailure(t *testing.T) {
	h := newRunHarness(t)
	h.provider.err = errors.New("cascade file missing")

	res := h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	assert.Equal(t, 0, res.FacesDetected)
	assert.Equal(t, 0, res.FramesProcessed)
	assert.False(t, res.BlurApplied)
	assert.Empty(t, h.extractor.calls, "no frames are touched on the pass-through path")
	assert.Equal(t, 100, h.events[len(h.events)-1].PercentComplete)
}

func TestRunBlurDisabledByOptions(t *testing.T) {
	h := newRunHarness(t)
	disabled := false

	res := h.run(t, context.Background(), 10000, entity.Options{
		EnableFaceBlur: &disabled,
		Quality:        entity.QualityMedium,
	})

	assert.False(t, res.BlurApplied)
	assert.Equal(t, 0, h.provider.resolved, "no dependency resolution when blur is off")
	assert.Equal(t, 100, h.events[len(h.events)-1].PercentComplete)
}

func TestRunReleasesEachFrameExactlyOnce(t *testing.T) {
	h := newRunHarness(t)
	h.extractor.failAt[2000] = errors.New("boom")

	h.run(t, context.Background(), 10000, entity.Options{Quality: entity.QualityMedium})

	assert.Len(t, h.artifacts.removed, 5)
	for path, count := range h.artifacts.removed {
		assert.Equal(t, 1, count, "artifact %s released more than once", path)
	}
}

func TestRunCancellationFinalizesEarly(t *testing.T) {
	h := newRunHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.extractor.onCall = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	res := h.run(t, ctx, 10000, entity.Options{Quality: entity.QualityMedium})

	assert.LessOrEqual(t, len(h.extractor.calls), 3, "loop must stop after cancellation")
	assert.Equal(t, 100, h.events[len(h.events)-1].PercentComplete)
	assert.NotNil(t, res)
}

func TestRunFatalWhenFramesDirUnwritable(t *testing.T) {
	h := newRunHarness(t)
	// A plain file where the workdir should be makes MkdirAll fail.
	workDir := t.TempDir() + "/occupied"
	require.NoError(t, os.WriteFile(workDir, []byte("x"), 0o644))

	_, err := h.orch.Run(context.Background(), Source{
		Path:       "input.mp4",
		Key:        "videos/input.mp4",
		WorkDir:    workDir,
		DurationMs: 10000,
	}, entity.Options{Quality: entity.QualityMedium}, nil)

	require.Error(t, err)
	assert.True(t, IsFatal(err))
}
