package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/food-ordering/saga-go/internal/outbox"
)

// EventPublisher pushes outbox rows onto one topic. The stored payload goes
// out verbatim; the saga id is the partition key.
type EventPublisher struct {
	writer *kafka.Writer
}

func NewEventPublisher(writer *kafka.Writer) *EventPublisher {
	return &EventPublisher{writer: writer}
}

func (p *EventPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.SagaID.String()),
		Value: msg.Payload,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("messaging: failed to publish outbox message %s: %w", msg.ID, err)
	}
	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}
