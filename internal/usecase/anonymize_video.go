package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
	"github.com/vidmask/vidmask-processing-service/internal/domain/port"
	"github.com/vidmask/vidmask-processing-service/internal/infra/metrics"
	"github.com/vidmask/vidmask-processing-service/internal/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AnonymizeVideoUseCase handles one video.anonymize message end to end:
// download, run the anonymization pipeline, upload the blurred frames and
// thumbnail, best-effort voice pass, persist and publish the outcome.
type AnonymizeVideoUseCase struct {
	repo         port.JobRepository
	storage      port.VideoStorage
	extractor    port.FrameExtractor
	prober       port.DurationProber
	orchestrator *pipeline.Orchestrator
	artifacts    port.ArtifactStore
	voice        port.VoiceChanger
	thumbnailer  port.ThumbnailGenerator
	publisher    port.StatusPublisher
	dlq          port.DLQPublisher
	notifier     port.FailureNotifier
	logger       *zap.Logger
	maxRetry     int
}

func NewAnonymizeVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	extractor port.FrameExtractor,
	prober port.DurationProber,
	orchestrator *pipeline.Orchestrator,
	artifacts port.ArtifactStore,
	voice port.VoiceChanger,
	thumbnailer port.ThumbnailGenerator,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	maxRetries int,
) *AnonymizeVideoUseCase {
	return &AnonymizeVideoUseCase{
		repo:         repo,
		storage:      storage,
		extractor:    extractor,
		prober:       prober,
		orchestrator: orchestrator,
		artifacts:    artifacts,
		voice:        voice,
		thumbnailer:  thumbnailer,
		publisher:    publisher,
		dlq:          dlq,
		notifier:     notifier,
		logger:       logger,
		maxRetry:     maxRetries,
	}
}

func (uc *AnonymizeVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "AnonymizeVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.AnonymizeVideoMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	if err := uc.runPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *AnonymizeVideoUseCase) runPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.AnonymizeVideoMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir, err := uc.artifacts.WorkDir(job.ID.String())
	if err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer func() {
		if err := uc.artifacts.RemoveAll(workDir); err != nil {
			log.Warn("workdir cleanup failed", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	// Download video from MinIO.
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Probe duration. Failure degrades to a single-frame plan instead of
	// failing the job.
	durationMs, err := uc.prober.ProbeDurationMs(ctx, videoPath)
	if err != nil {
		log.Warn("could not probe video duration, sampling a single frame", zap.Error(err))
		durationMs = 0
	}

	// Run the anonymization pipeline. Progress events fan out to the status
	// queue; the consumer is presentation-only so publish errors are logged
	// and dropped.
	opts := msg.Options.Normalize()
	result, err := uc.orchestrator.Run(ctx, pipeline.Source{
		Path:       videoPath,
		Key:        msg.VideoKey,
		WorkDir:    workDir,
		DurationMs: durationMs,
	}, opts, func(ev entity.ProgressEvent) {
		uc.publishProgress(ctx, job, ev, log)
	})
	if err != nil {
		log.Error("pipeline failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "pipeline: "+err.Error(), log)
	}
	if !result.BlurApplied {
		metrics.PassThroughTotal.Inc()
	}

	// Upload composited frames for audit. Per-frame best effort: a failed
	// upload loses that audit frame, not the job.
	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_frames")
	uploaded := 0
	for _, framePath := range result.CompositedFrames {
		if err := uc.uploadFrame(ctxUp, msg.UserID, job.ID.String(), framePath); err != nil {
			log.Warn("blurred frame upload failed", zap.String("frame", framePath), zap.Error(err))
			continue
		}
		uploaded++
	}
	spanUp.End()
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	// Thumbnail and voice pass are enhancements: both degrade silently.
	thumbKey := uc.generateThumbnail(ctx, job, msg, videoPath, workDir, log)
	voiceChanged := uc.applyVoiceChange(ctx, videoPath, workDir, log)

	job.MarkCompleted(entity.JobOutcome{
		// Blurred frames are not re-muxed into a new video yet, so the
		// original key is the result key.
		ResultKey:       msg.VideoKey,
		FacesDetected:   result.FacesDetected,
		FramesProcessed: result.FramesProcessed,
		FramesFailed:    result.FramesFailed,
		BlurApplied:     result.BlurApplied,
		VoiceChanged:    voiceChanged,
		VideoDuration:   result.Elapsed.Seconds(),
	})
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("faces_detected", result.FacesDetected),
		zap.Int("frames_processed", result.FramesProcessed),
		zap.Int("frames_failed", result.FramesFailed),
		zap.Int("frames_uploaded", uploaded),
		zap.Bool("blur_applied", result.BlurApplied),
		zap.Bool("voice_changed", voiceChanged),
		zap.String("thumbnail_key", thumbKey),
	)

	return nil
}

func (uc *AnonymizeVideoUseCase) uploadFrame(ctx context.Context, userID, jobID, framePath string) error {
	f, err := os.Open(framePath)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s/%s/%s", userID, jobID, filepath.Base(framePath))
	return uc.storage.UploadProcessedFrame(ctx, key, f, stat.Size())
}

func (uc *AnonymizeVideoUseCase) generateThumbnail(
	ctx context.Context,
	job *entity.Job,
	msg entity.AnonymizeVideoMessage,
	videoPath, workDir string,
	log *zap.Logger,
) string {
	framePath := filepath.Join(workDir, "thumb_src.jpg")
	thumbPath := filepath.Join(workDir, "thumb.jpg")
	defer func() {
		_ = uc.artifacts.Remove(framePath)
		_ = uc.artifacts.Remove(thumbPath)
	}()

	if err := uc.extractor.ExtractFrameAt(ctx, videoPath, 0, framePath); err != nil {
		log.Warn("thumbnail frame extraction failed", zap.Error(err))
		return ""
	}
	if err := uc.thumbnailer.Generate(ctx, framePath, thumbPath); err != nil {
		log.Warn("thumbnail generation failed", zap.Error(err))
		return ""
	}

	f, err := os.Open(thumbPath)
	if err != nil {
		log.Warn("thumbnail open failed", zap.Error(err))
		return ""
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		log.Warn("thumbnail stat failed", zap.Error(err))
		return ""
	}

	key := fmt.Sprintf("%s/%s/thumb.jpg", msg.UserID, job.ID.String())
	if err := uc.storage.UploadThumbnail(ctx, key, f, stat.Size()); err != nil {
		log.Warn("thumbnail upload failed", zap.Error(err))
		return ""
	}
	return key
}

func (uc *AnonymizeVideoUseCase) applyVoiceChange(ctx context.Context, videoPath, workDir string, log *zap.Logger) bool {
	outPath := filepath.Join(workDir, "voice_changed.mp4")
	applied, err := uc.voice.Apply(ctx, videoPath, outPath)
	if err != nil {
		log.Warn("voice change failed, keeping original audio", zap.Error(err))
		return false
	}
	return applied
}

func (uc *AnonymizeVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.AnonymizeVideoMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *AnonymizeVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.AnonymizeVideoMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *AnonymizeVideoUseCase) publishProgress(ctx context.Context, job *entity.Job, ev entity.ProgressEvent, log *zap.Logger) {
	statusMsg := entity.VideoStatusMessage{
		JobID:           job.ID,
		UserID:          job.UserID,
		Status:          job.Status,
		VideoKey:        job.VideoKey,
		Step:            ev.Step,
		PercentComplete: ev.PercentComplete,
		CurrentFrame:    ev.CurrentFrame,
		TotalFrames:     ev.TotalFrames,
		Attempt:         job.Attempt,
		MaxAttempts:     job.MaxAttempts,
	}
	if err := uc.publisher.PublishStatus(ctx, statusMsg); err != nil {
		log.Warn("failed to publish progress", zap.Error(err))
	}
}

func (uc *AnonymizeVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	percent := 0
	if job.Status == entity.JobStatusCompleted {
		percent = 100
	}
	statusMsg := entity.VideoStatusMessage{
		JobID:           job.ID,
		UserID:          job.UserID,
		Status:          job.Status,
		VideoKey:        job.VideoKey,
		ResultKey:       job.ResultKey,
		PercentComplete: percent,
		FacesDetected:   job.FacesDetected,
		FramesProcessed: job.FramesProcessed,
		FramesFailed:    job.FramesFailed,
		BlurApplied:     job.BlurApplied,
		VoiceChanged:    job.VoiceChanged,
		Duration:        job.VideoDuration,
		ErrorMessage:    job.ErrorMessage,
		Attempt:         job.Attempt,
		MaxAttempts:     job.MaxAttempts,
	}
	if err := uc.publisher.PublishStatus(ctx, statusMsg); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
