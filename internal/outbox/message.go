// Package outbox implements the transactional-outbox message model shared by
// the payment, restaurant-approval and order-response flows: events are
// persisted in the same local transaction as the state change they describe
// and published asynchronously by a scheduler.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

// Status is the delivery status of an outbox row.
type Status string

const (
	// StatusStarted marks a row awaiting delivery.
	StatusStarted Status = "STARTED"
	// StatusCompleted marks an acknowledged delivery.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed marks a failed delivery attempt; terminal, left for
	// operator inspection.
	StatusFailed Status = "FAILED"
)

// SagaStatus is the coordination-level status of one saga instance, distinct
// from the order aggregate's own status.
type SagaStatus string

const (
	SagaStatusStarted      SagaStatus = "STARTED"
	SagaStatusProcessing   SagaStatus = "PROCESSING"
	SagaStatusSucceeded    SagaStatus = "SUCCEEDED"
	SagaStatusCompensating SagaStatus = "COMPENSATING"
	SagaStatusCompensated  SagaStatus = "COMPENSATED"
	SagaStatusFailed       SagaStatus = "FAILED"
)

// Message is one outbox row. SagaID correlates all rows of one saga instance;
// Version drives the optimistic-concurrency check on every update.
type Message struct {
	ID          uuid.UUID
	SagaID      uuid.UUID
	Type        string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Payload     json.RawMessage

	// AggregateStatus snapshots the order status for order-side flows and
	// the payment status for the order-response flow.
	AggregateStatus string

	SagaStatus   SagaStatus
	OutboxStatus Status
	Version      int32
}
