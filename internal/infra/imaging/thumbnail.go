package imaging

import (
	"context"
	"fmt"

	"github.com/disintegration/imaging"
)

const thumbnailWidth = 320

// Thumbnailer renders a small preview from a frame. Height follows the
// source aspect ratio.
type Thumbnailer struct{}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{}
}

func (t *Thumbnailer) Generate(ctx context.Context, framePath string, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := imaging.Open(framePath)
	if err != nil {
		return fmt.Errorf("decode frame %s: %w", framePath, err)
	}

	thumb := imaging.Resize(src, thumbnailWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, outPath, imaging.JPEGQuality(80)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}
