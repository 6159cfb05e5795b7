package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is one anonymization request tracked across retries. ResultKey stays
// equal to VideoKey on completion: blurred frames are uploaded for audit but
// are not re-muxed into a new video, so the original remains the deliverable.
type Job struct {
	ID              uuid.UUID
	UserID          string
	VideoKey        string
	ResultKey       string
	Status          JobStatus
	FacesDetected   int
	FramesProcessed int
	FramesFailed    int
	BlurApplied     bool
	VoiceChanged    bool
	FileSize        int64
	VideoDuration   float64
	Attempt         int
	MaxAttempts     int
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

type JobOutcome struct {
	ResultKey       string
	FacesDetected   int
	FramesProcessed int
	FramesFailed    int
	BlurApplied     bool
	VoiceChanged    bool
	VideoDuration   float64
}

func (j *Job) MarkCompleted(out JobOutcome) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ResultKey = out.ResultKey
	j.FacesDetected = out.FacesDetected
	j.FramesProcessed = out.FramesProcessed
	j.FramesFailed = out.FramesFailed
	j.BlurApplied = out.BlurApplied
	j.VoiceChanged = out.VoiceChanged
	j.VideoDuration = out.VideoDuration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
