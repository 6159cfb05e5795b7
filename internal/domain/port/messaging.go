package port

import (
	"context"

	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, status entity.VideoStatusMessage) error
}

// DLQPublisher forwards the raw inbound payload so a parked message can be
// replayed verbatim.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
