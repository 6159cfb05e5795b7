package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	job := NewJob("user-1", "videos/a.mp4", 1024, 3)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.Attempt)

	job.MarkCompleted(JobOutcome{
		ResultKey:       "videos/a.mp4",
		FacesDetected:   4,
		FramesProcessed: 5,
		FramesFailed:    1,
		BlurApplied:     true,
		VideoDuration:   12.5,
	})
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, "videos/a.mp4", job.ResultKey)
	assert.Equal(t, 4, job.FacesDetected)
	require.NotNil(t, job.CompletedAt)
}

func TestJobRetryExhaustion(t *testing.T) {
	job := NewJob("user-1", "videos/a.mp4", 1024, 2)

	job.MarkProcessing()
	job.MarkFailed("download failed")
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	job.MarkFailed("download failed")
	assert.False(t, job.CanRetry())
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "download failed", job.ErrorMessage)
}
