package port

import "context"

type ThumbnailGenerator interface {
	Generate(ctx context.Context, framePath string, outPath string) error
}
