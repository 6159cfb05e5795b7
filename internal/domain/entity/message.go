package entity

import "github.com/google/uuid"

// AnonymizeVideoMessage is the inbound message from the video.anonymize queue.
type AnonymizeVideoMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
	Options   Options   `json:"options"`
}

// VideoStatusMessage is the outbound message published to the video.status
// queue. Progress updates and the terminal result share this shape; progress
// fields are zero on the final COMPLETED/FAILED message and result fields are
// zero on progress updates.
type VideoStatusMessage struct {
	JobID           uuid.UUID `json:"job_id"`
	UserID          string    `json:"user_id"`
	Status          JobStatus `json:"status"`
	VideoKey        string    `json:"video_key"`
	ResultKey       string    `json:"result_key,omitempty"`
	Step            string    `json:"step,omitempty"`
	PercentComplete int       `json:"percent_complete"`
	CurrentFrame    int       `json:"current_frame,omitempty"`
	TotalFrames     int       `json:"total_frames,omitempty"`
	FacesDetected   int       `json:"faces_detected,omitempty"`
	FramesProcessed int       `json:"frames_processed,omitempty"`
	FramesFailed    int       `json:"frames_failed,omitempty"`
	BlurApplied     bool      `json:"blur_applied,omitempty"`
	VoiceChanged    bool      `json:"voice_changed,omitempty"`
	Duration        float64   `json:"duration_seconds,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Attempt         int       `json:"attempt"`
	MaxAttempts     int       `json:"max_attempts"`
}
