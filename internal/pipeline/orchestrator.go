package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
	"github.com/vidmask/vidmask-processing-service/internal/domain/port"
	"github.com/vidmask/vidmask-processing-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Source is the video a single run works on. The caller owns Path and never
// gets it deleted by the pipeline; WorkDir is job-scoped scratch space.
type Source struct {
	Path       string
	Key        string
	WorkDir    string
	DurationMs int64
}

// Result is the aggregate outcome of one run. VideoKey echoes the source
// key: blurred frames are produced as artifacts (CompositedFrames) but the
// final video is not re-muxed, so the original stays the deliverable.
type Result struct {
	VideoKey         string
	FacesDetected    int
	FramesProcessed  int
	FramesFailed     int
	TotalFrames      int
	BlurApplied      bool
	Elapsed          time.Duration
	CompositedFrames []string
}

// Orchestrator drives the sample -> extract -> detect -> composite loop for
// one job at a time. It owns every intermediate artifact from creation to
// release and absorbs all per-frame failures; only fatal I/O aborts a run.
type Orchestrator struct {
	extractor   port.FrameExtractor
	detectors   port.FaceDetectorProvider
	compositors port.CompositorProvider
	artifacts   port.ArtifactStore
	logger      *zap.Logger
}

func NewOrchestrator(
	extractor port.FrameExtractor,
	detectors port.FaceDetectorProvider,
	compositors port.CompositorProvider,
	artifacts port.ArtifactStore,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		extractor:   extractor,
		detectors:   detectors,
		compositors: compositors,
		artifacts:   artifacts,
		logger:      logger,
	}
}

// progressSink wraps the caller's callback and enforces the ordering
// contract: percent values never decrease and the terminal event is exactly
// 100.
type progressSink struct {
	fn   func(entity.ProgressEvent)
	last int
}

func (s *progressSink) emit(percent int, step string, current, total int) {
	if percent < s.last {
		percent = s.last
	}
	s.last = percent
	if s.fn != nil {
		s.fn(entity.ProgressEvent{
			Step:            step,
			PercentComplete: percent,
			CurrentFrame:    current,
			TotalFrames:     total,
		})
	}
}

// advance emits only when the integer percent actually moved. Plans longer
// than 80 frames map several frames onto the same percent; dropping the
// repeats keeps the published sequence strictly increasing.
func (s *progressSink) advance(percent int, step string, current, total int) {
	if percent <= s.last {
		return
	}
	s.emit(percent, step, current, total)
}

// Run executes the pipeline for one source video. It returns an error only
// for FatalIOError; everything else, including a cancelled context, yields a
// (possibly partial) Result. Frame processing is strictly sequential: the
// detector binding is non-reentrant and frame artifacts use coarse
// index-based names, so no two frames may be in flight at once.
func (o *Orchestrator) Run(ctx context.Context, src Source, opts entity.Options, onProgress func(entity.ProgressEvent)) (*Result, error) {
	opts = opts.Normalize()
	start := time.Now()
	log := o.logger.With(zap.String("video_key", src.Key))

	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("video.key", src.Key),
		attribute.Int64("video.duration_ms", src.DurationMs),
		attribute.String("quality", string(opts.Quality)),
	)

	progress := &progressSink{fn: onProgress}
	res := &Result{VideoKey: src.Key}

	// Loading dependencies. Resolution failure is never job-fatal: the run
	// degrades to pass-through and the original video remains the output.
	progress.emit(5, "Preparing face detection", 0, 0)

	detector, compositor, err := o.resolveDependencies(ctx, opts)
	if err != nil {
		log.Warn("face blur unavailable, passing video through unmodified", zap.Error(err))
		o.finalize(progress, res, nil, start)
		return res, nil
	}
	if detector == nil {
		log.Info("face blur disabled by options, passing video through")
		o.finalize(progress, res, nil, start)
		return res, nil
	}

	// Sampling. Plan construction cannot fail.
	plan := NewPlan(src.DurationMs, opts.Quality)
	res.TotalFrames = plan.TotalFrames
	progress.emit(10, "Sampling frames", 0, plan.TotalFrames)

	framesDir := filepath.Join(src.WorkDir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		return nil, &FatalIOError{Err: fmt.Errorf("create frames dir: %w", err)}
	}

	log.Info("processing frames",
		zap.Int("total_frames", plan.TotalFrames),
		zap.Int64("interval_ms", plan.IntervalMs),
	)

	tracked := make(map[string]struct{}, plan.TotalFrames)
	res.BlurApplied = true

	for i := 0; i < plan.TotalFrames; i++ {
		if ctx.Err() != nil {
			log.Warn("run cancelled, finalizing early",
				zap.Int("frames_done", i),
				zap.Int("total_frames", plan.TotalFrames),
			)
			break
		}

		frame := plan.At(i)
		framePath := filepath.Join(framesDir, fmt.Sprintf("frame_%04d.jpg", frame.Index))
		tracked[framePath] = struct{}{}

		faces, compositedPath, ferr := o.processFrame(ctx, detector, compositor, src, frame, framePath, opts.BlurIntensity)

		// Exactly one release per planned timestamp, on every branch. The
		// store's Remove is idempotent, so a frame that never produced an
		// artifact releases cleanly too.
		o.release(framePath, tracked, log)

		percent := 10 + (frame.Index+1)*80/plan.TotalFrames
		if ferr != nil {
			res.FramesFailed++
			metrics.FrameFailuresTotal.WithLabelValues(stageLabel(ferr)).Inc()
			log.Warn("frame failed",
				zap.Int("frame_index", frame.Index),
				zap.Int64("timestamp_ms", frame.TimestampMs),
				zap.Error(ferr),
			)
			progress.emit(percent, fmt.Sprintf("Frame %d failed, continuing", frame.Index), frame.Index+1, plan.TotalFrames)
			continue
		}

		res.FramesProcessed++
		if faces > 0 {
			res.FacesDetected += faces
			res.CompositedFrames = append(res.CompositedFrames, compositedPath)
			metrics.FacesDetectedTotal.Add(float64(faces))
		}
		progress.advance(percent, "Processing frames", frame.Index+1, plan.TotalFrames)
	}

	o.finalize(progress, res, tracked, start)

	log.Info("pipeline run finished",
		zap.Int("faces_detected", res.FacesDetected),
		zap.Int("frames_processed", res.FramesProcessed),
		zap.Int("frames_failed", res.FramesFailed),
		zap.Duration("elapsed", res.Elapsed),
	)

	return res, nil
}

// resolveDependencies binds the detector and compositor once per run. A nil
// detector with nil error means face blur was disabled by options.
func (o *Orchestrator) resolveDependencies(ctx context.Context, opts entity.Options) (port.FaceDetector, port.Compositor, error) {
	if !opts.FaceBlurEnabled() {
		return nil, nil, nil
	}

	detector, err := o.detectors.Resolve(ctx)
	if err != nil {
		return nil, nil, &StageError{Stage: StageDependencyLoad, Err: err}
	}
	compositor, err := o.compositors.Resolve(ctx)
	if err != nil {
		return nil, nil, &StageError{Stage: StageDependencyLoad, Err: err}
	}
	return detector, compositor, nil
}

// processFrame runs the three per-frame stages. Detection failure is folded
// into the empty result: the frame still counts as processed. Extraction and
// composite failures surface as stage errors for the caller to absorb.
func (o *Orchestrator) processFrame(
	ctx context.Context,
	detector port.FaceDetector,
	compositor port.Compositor,
	src Source,
	frame Frame,
	framePath string,
	blurIntensity float64,
) (faces int, compositedPath string, err error) {
	tracer := otel.Tracer("pipeline")

	exStart := time.Now()
	ctxEx, spanEx := tracer.Start(ctx, "extract_frame")
	extractErr := o.extractor.ExtractFrameAt(ctxEx, src.Path, frame.TimestampMs, framePath)
	spanEx.End()
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())
	if extractErr != nil {
		return 0, "", extractionError(extractErr)
	}
	metrics.FramesExtractedTotal.Inc()

	if ctx.Err() != nil {
		return 0, "", nil
	}

	dtStart := time.Now()
	ctxDt, spanDt := tracer.Start(ctx, "detect_faces")
	boxes, detectErr := detector.DetectFaces(ctxDt, framePath)
	spanDt.End()
	metrics.StageDuration.WithLabelValues("detect").Observe(time.Since(dtStart).Seconds())
	if detectErr != nil {
		metrics.DetectionFailuresTotal.Inc()
		o.logger.Warn("face detection failed, treating frame as face-free",
			zap.Int("frame_index", frame.Index),
			zap.Error(detectionError(detectErr)),
		)
		boxes = nil
	}

	if len(boxes) == 0 {
		return 0, "", nil
	}

	if ctx.Err() != nil {
		return 0, "", nil
	}

	cpStart := time.Now()
	ctxCp, spanCp := tracer.Start(ctx, "composite_blur")
	outPath, compErr := compositor.Composite(ctxCp, framePath, boxes, blurIntensity)
	spanCp.End()
	metrics.StageDuration.WithLabelValues("composite").Observe(time.Since(cpStart).Seconds())
	if compErr != nil {
		return 0, "", compositeError(compErr)
	}

	return len(boxes), outPath, nil
}

// release deletes one tracked artifact. Cleanup failures are logged and
// never escalated.
func (o *Orchestrator) release(path string, tracked map[string]struct{}, log *zap.Logger) {
	if err := o.artifacts.Remove(path); err != nil {
		log.Warn("artifact cleanup failed", zap.String("path", path), zap.Error(&StageError{Stage: StageCleanup, Err: err}))
	}
	delete(tracked, path)
}

// finalize releases whatever is still tracked (a second release of an
// already-removed path is a no-op), stamps the elapsed time and emits the
// single terminal 100% event.
func (o *Orchestrator) finalize(progress *progressSink, res *Result, tracked map[string]struct{}, start time.Time) {
	for path := range tracked {
		if err := o.artifacts.Remove(path); err != nil {
			o.logger.Warn("artifact cleanup failed during finalize", zap.String("path", path), zap.Error(err))
		}
	}
	res.Elapsed = time.Since(start)
	progress.emit(100, "Anonymization complete", 0, 0)
}

func stageLabel(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return string(se.Stage)
	}
	return "unknown"
}
