package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// SagaName identifies the order-processing saga; it is the `type` value of
// every outbox row the saga writes.
const SagaName = "OrderProcessingSaga"

// Helper is the transactional read/write facade over one outbox flow. All
// queries are filtered by the saga type, and saga-step reads must run inside
// the same transaction as the subsequent write.
type Helper struct {
	store    Store
	sagaType string
}

func NewHelper(store Store) *Helper {
	return &Helper{store: store, sagaType: SagaName}
}

func (h *Helper) Save(ctx context.Context, msg *Message) error {
	if err := h.store.Save(ctx, msg); err != nil {
		return err
	}
	log.Debug().Stringer("outbox_id", msg.ID).Str("type", msg.Type).Msg("outbox: message saved")
	return nil
}

// SaveNew stamps and persists a fresh STARTED-version row for the given
// payload.
func (h *Helper) SaveNew(ctx context.Context, payload any, aggregateStatus string, sagaStatus SagaStatus, outboxStatus Status, sagaID uuid.UUID) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: failed to marshal payload for saga %s: %w", sagaID, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("outbox: failed to generate message id: %w", err)
	}

	return h.Save(ctx, &Message{
		ID:              id,
		SagaID:          sagaID,
		Type:            h.sagaType,
		CreatedAt:       time.Now().UTC(),
		Payload:         data,
		AggregateStatus: aggregateStatus,
		SagaStatus:      sagaStatus,
		OutboxStatus:    outboxStatus,
	})
}

// BySagaAndStatuses is the idempotency gate: at most one live row can satisfy
// the (type, sagaID, sagaStatus) filter.
func (h *Helper) BySagaAndStatuses(ctx context.Context, sagaID uuid.UUID, statuses ...SagaStatus) (*Message, error) {
	return h.store.FindBySagaAndStatuses(ctx, h.sagaType, sagaID, statuses...)
}

func (h *Helper) ByStatuses(ctx context.Context, outboxStatus Status, limit int, statuses ...SagaStatus) ([]Message, error) {
	return h.store.FindByStatuses(ctx, h.sagaType, outboxStatus, limit, statuses...)
}

func (h *Helper) DeleteByStatuses(ctx context.Context, outboxStatus Status, statuses ...SagaStatus) error {
	return h.store.DeleteByStatuses(ctx, h.sagaType, outboxStatus, statuses...)
}

// MarkProcessed updates the row's snapshot and saga status after a saga step
// advanced the aggregate.
func (h *Helper) MarkProcessed(ctx context.Context, msg *Message, aggregateStatus string, sagaStatus SagaStatus) error {
	now := time.Now().UTC()
	msg.ProcessedAt = &now
	msg.AggregateStatus = aggregateStatus
	msg.SagaStatus = sagaStatus
	return h.Save(ctx, msg)
}
