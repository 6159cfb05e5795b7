package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	opts := Options{}.Normalize()

	assert.True(t, opts.FaceBlurEnabled())
	assert.Equal(t, float64(DefaultBlurIntensity), opts.BlurIntensity)
	assert.Equal(t, QualityMedium, opts.Quality)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	disabled := false
	opts := Options{
		EnableFaceBlur: &disabled,
		BlurIntensity:  30,
		Quality:        QualityHigh,
	}.Normalize()

	assert.False(t, opts.FaceBlurEnabled())
	assert.Equal(t, 30.0, opts.BlurIntensity)
	assert.Equal(t, QualityHigh, opts.Quality)
}

func TestNormalizeRejectsUnknownTier(t *testing.T) {
	opts := Options{Quality: "4k"}.Normalize()
	assert.Equal(t, QualityMedium, opts.Quality)
}

func TestFrameIntervalPerTier(t *testing.T) {
	assert.Equal(t, 1*time.Second, QualityHigh.FrameInterval())
	assert.Equal(t, 2*time.Second, QualityMedium.FrameInterval())
	assert.Equal(t, 5*time.Second, QualityLow.FrameInterval())
	assert.Equal(t, 2*time.Second, QualityTier("bogus").FrameInterval())
}
