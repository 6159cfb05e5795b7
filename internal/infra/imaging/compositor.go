package imaging

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
	"github.com/vidmask/vidmask-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

const jpegQuality = 90

// Compositor blurs rectangular face regions of a frame and re-encodes the
// result as JPEG. Regions are clamped to the image bounds; boxes fully
// outside are skipped. Overlapping boxes are applied last-wins in the order
// the detector returned them.
type Compositor struct {
	logger *zap.Logger
}

func NewCompositor(logger *zap.Logger) *Compositor {
	return &Compositor{logger: logger}
}

// Resolve implements port.CompositorProvider for the local compositor,
// which has no bindings to load.
func (c *Compositor) Resolve(ctx context.Context) (port.Compositor, error) {
	return c, nil
}

func (c *Compositor) Composite(ctx context.Context, framePath string, boxes []entity.BoundingBox, blurIntensity float64) (string, error) {
	src, err := imaging.Open(framePath)
	if err != nil {
		return "", fmt.Errorf("decode frame %s: %w", framePath, err)
	}

	dst := imaging.Clone(src)
	bounds := dst.Bounds()

	applied := 0
	for _, box := range boxes {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		region := box.Rect().Intersect(bounds)
		if region.Empty() {
			continue
		}

		blurred := imaging.Blur(imaging.Crop(src, region), blurIntensity)
		draw.Draw(dst, region, blurred, image.Point{}, draw.Src)
		applied++
	}

	outPath := blurredPath(framePath)
	if err := imaging.Save(dst, outPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		// Remove a half-written file so it is not mistaken for output.
		_ = os.Remove(outPath)
		return "", fmt.Errorf("encode blurred frame: %w", err)
	}

	c.logger.Debug("composited blur regions",
		zap.String("frame", framePath),
		zap.Int("boxes", len(boxes)),
		zap.Int("applied", applied),
	)

	return outPath, nil
}

func blurredPath(framePath string) string {
	ext := filepath.Ext(framePath)
	return strings.TrimSuffix(framePath, ext) + "_blurred.jpg"
}
