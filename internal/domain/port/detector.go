package port

import (
	"context"

	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
)

// FaceDetector returns zero or more face bounding boxes for a still image.
// An empty slice is a valid result, not an error.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imagePath string) ([]entity.BoundingBox, error)
}

// FaceDetectorProvider resolves the detector binding once per job. Resolve
// failing (missing model, unusable runtime) puts the job on the
// pass-through path instead of failing it.
type FaceDetectorProvider interface {
	Resolve(ctx context.Context) (FaceDetector, error)
}
