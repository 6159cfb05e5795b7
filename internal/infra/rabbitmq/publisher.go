package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vidmask/vidmask-processing-service/internal/domain/entity"
	"go.uber.org/zap"
)

// Publisher is the shared outbound channel for the status and DLQ
// publishers. All anonymization traffic is persistent JSON.
type Publisher struct {
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func NewPublisher(conn *amqp.Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table) error {
	return p.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
		},
	)
}

// StatusPublisher fans job progress and outcomes out on the status routing
// key. Status consumers are presentation-only, so callers treat publish
// errors as non-fatal.
type StatusPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewStatusPublisher(pub *Publisher, routingKey string) *StatusPublisher {
	return &StatusPublisher{pub: pub, routingKey: routingKey}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, status entity.VideoStatusMessage) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status for job %s: %w", status.JobID, err)
	}

	sp.pub.logger.Debug("publishing job status",
		zap.String("job_id", status.JobID.String()),
		zap.String("status", string(status.Status)),
		zap.Int("percent", status.PercentComplete),
	)
	return sp.pub.publish(ctx, sp.pub.exchange, sp.routingKey, body, nil)
}

// DLQPublisher parks poison or retry-exhausted anonymization messages. The
// original payload is forwarded untouched so it can be replayed after a fix;
// the failure reason rides in a header.
type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	dp.pub.logger.Warn("parking message on DLQ",
		zap.String("queue", dp.queue),
		zap.String("reason", reason),
	)

	// The default exchange routes straight to the queue by name.
	return dp.pub.publish(ctx, "", dp.queue, msg, amqp.Table{
		"x-dlq-reason":    reason,
		"x-dlq-parked-at": time.Now().UTC().Format(time.RFC3339),
	})
}
