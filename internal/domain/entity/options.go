package entity

import "time"

type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
)

// FrameInterval is the sampling cadence for the tier. Unknown tiers fall
// back to medium so a malformed message still produces a usable plan.
func (q QualityTier) FrameInterval() time.Duration {
	switch q {
	case QualityHigh:
		return 1 * time.Second
	case QualityLow:
		return 5 * time.Second
	default:
		return 2 * time.Second
	}
}

const DefaultBlurIntensity = 15

// Options control a single anonymization run. The zero value is not usable
// directly; call Normalize first.
type Options struct {
	EnableFaceBlur *bool       `json:"enable_face_blur,omitempty"`
	BlurIntensity  float64     `json:"blur_intensity,omitempty"`
	Quality        QualityTier `json:"quality,omitempty"`
}

// Normalize fills in defaults: blur enabled, intensity 15, medium quality.
func (o Options) Normalize() Options {
	if o.EnableFaceBlur == nil {
		enabled := true
		o.EnableFaceBlur = &enabled
	}
	if o.BlurIntensity <= 0 {
		o.BlurIntensity = DefaultBlurIntensity
	}
	switch o.Quality {
	case QualityLow, QualityMedium, QualityHigh:
	default:
		o.Quality = QualityMedium
	}
	return o
}

func (o Options) FaceBlurEnabled() bool {
	return o.EnableFaceBlur != nil && *o.EnableFaceBlur
}
