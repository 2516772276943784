package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Handler consumes one decoded message. The saga id comes from the kafka
// message key, which is authoritative for partitioning.
type Handler[T any] func(ctx context.Context, sagaID uuid.UUID, msg T) error

const maxRetryDelay = 30 * time.Second

// messageReader is the slice of kafka.Reader the listener needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Listener pumps one topic into a handler. A message is committed only after
// the handler accepts it; commits are positional, so a failed message blocks
// its partition and is retried with backoff rather than skipped — skipping
// would implicitly commit its offset as soon as a later message succeeds.
type Listener[T any] struct {
	reader     messageReader
	handler    Handler[T]
	retryDelay time.Duration
}

func NewListener[T any](reader *kafka.Reader, handler Handler[T]) *Listener[T] {
	return &Listener[T]{reader: reader, handler: handler, retryDelay: time.Second}
}

// Run consumes until the context is cancelled.
func (l *Listener[T]) Run(ctx context.Context) error {
	defer l.reader.Close()

	for {
		kafkaMsg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		delay := l.retryDelay
		for {
			err := l.handle(ctx, kafkaMsg)
			if err == nil {
				break
			}
			log.Error().Err(err).
				Str("topic", kafkaMsg.Topic).
				Int64("offset", kafkaMsg.Offset).
				Dur("retry_in", delay).
				Msg("messaging: failed to handle message, retrying")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			if delay < maxRetryDelay {
				delay *= 2
				if delay > maxRetryDelay {
					delay = maxRetryDelay
				}
			}
		}

		if err := l.reader.CommitMessages(ctx, kafkaMsg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (l *Listener[T]) handle(ctx context.Context, kafkaMsg kafka.Message) error {
	sagaID, err := uuid.FromString(string(kafkaMsg.Key))
	if err != nil {
		// Poison message: not ours, log and commit past it.
		log.Warn().Str("key", string(kafkaMsg.Key)).Msg("messaging: message key is not a saga id, skipping")
		return nil
	}

	var msg T
	if err := json.Unmarshal(kafkaMsg.Value, &msg); err != nil {
		log.Warn().Err(err).Stringer("saga_id", sagaID).Msg("messaging: undecodable payload, skipping")
		return nil
	}

	return l.handler(ctx, sagaID, msg)
}
