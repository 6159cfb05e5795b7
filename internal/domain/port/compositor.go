package port

import (
	"context"

	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
)

// Compositor blurs the given regions of a frame and writes the result as a
// new image next to the input. Boxes are clamped to the image bounds; boxes
// fully outside are skipped.
type Compositor interface {
	Composite(ctx context.Context, framePath string, boxes []entity.BoundingBox, blurIntensity float64) (outPath string, err error)
}

// CompositorProvider resolves the compositor binding once per job, mirroring
// FaceDetectorProvider.
type CompositorProvider interface {
	Resolve(ctx context.Context) (Compositor, error)
}
