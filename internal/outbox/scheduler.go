package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/metrics"
)

// Publisher hands one outbox row to the message bus. The scheduler records
// the outcome; a returned error marks the row FAILED.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Scheduler drains one outbox flow: every interval it polls a bounded batch
// of rows in STARTED delivery state whose saga status is in the flow's
// pending set, publishes them, and records COMPLETED or FAILED. It never
// mutates the saga status.
type Scheduler struct {
	flow         string
	helper       *Helper
	publisher    Publisher
	interval     time.Duration
	initialDelay time.Duration
	batchSize    int
	sagaStatuses []SagaStatus
	metrics      *metrics.OutboxMetrics
}

func NewScheduler(flow string, helper *Helper, publisher Publisher, interval, initialDelay time.Duration, batchSize int, m *metrics.OutboxMetrics, sagaStatuses ...SagaStatus) *Scheduler {
	return &Scheduler{
		flow:         flow,
		helper:       helper,
		publisher:    publisher,
		interval:     interval,
		initialDelay: initialDelay,
		batchSize:    batchSize,
		sagaStatuses: sagaStatuses,
		metrics:      m,
	}
}

// Run loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	select {
	case <-time.After(s.initialDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.processOutboxMessages(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Scheduler) processOutboxMessages(ctx context.Context) {
	messages, err := s.helper.ByStatuses(ctx, StatusStarted, s.batchSize, s.sagaStatuses...)
	if err != nil {
		log.Error().Err(err).Str("flow", s.flow).Msg("scheduler: failed to poll outbox messages")
		return
	}
	if len(messages) == 0 {
		return
	}

	log.Info().Str("flow", s.flow).Int("count", len(messages)).Msg("scheduler: publishing outbox messages")

	for i := range messages {
		msg := messages[i]
		status := StatusCompleted
		if err := s.publisher.Publish(ctx, msg); err != nil {
			// no automatic retry: the row stays FAILED for operator
			// inspection, transport-level retry is the bus's concern
			log.Error().Err(err).Str("flow", s.flow).Stringer("outbox_id", msg.ID).Msg("scheduler: failed to publish outbox message")
			status = StatusFailed
		}
		s.updateOutboxStatus(ctx, &msg, status)
	}
}

func (s *Scheduler) updateOutboxStatus(ctx context.Context, msg *Message, status Status) {
	now := time.Now().UTC()
	msg.ProcessedAt = &now
	msg.OutboxStatus = status

	if err := s.helper.Save(ctx, msg); err != nil {
		log.Error().Err(err).Str("flow", s.flow).Stringer("outbox_id", msg.ID).Msg("scheduler: failed to record delivery outcome")
		return
	}

	if s.metrics != nil {
		s.metrics.Published.WithLabelValues(s.flow, string(status)).Inc()
	}
	log.Info().Str("flow", s.flow).Stringer("outbox_id", msg.ID).Str("outbox_status", string(status)).Msg("scheduler: outbox message updated")
}

// Cleaner removes delivered rows of finished sagas on a slow cadence.
type Cleaner struct {
	flow         string
	helper       *Helper
	interval     time.Duration
	sagaStatuses []SagaStatus
}

func NewCleaner(flow string, helper *Helper, interval time.Duration, sagaStatuses ...SagaStatus) *Cleaner {
	return &Cleaner{flow: flow, helper: helper, interval: interval, sagaStatuses: sagaStatuses}
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := c.helper.DeleteByStatuses(ctx, StatusCompleted, c.sagaStatuses...); err != nil {
			log.Error().Err(err).Str("flow", c.flow).Msg("cleaner: failed to delete outbox messages")
			continue
		}
		log.Info().Str("flow", c.flow).Msg("cleaner: completed outbox messages removed")
	}
}
