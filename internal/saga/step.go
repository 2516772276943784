// Package saga coordinates the order-processing saga: each step consumes a
// response message from a downstream service, advances or compensates the
// order aggregate and flips the outbox rows that drive the next step, all
// inside one local transaction.
package saga

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/outbox"
)

// Step processes or compensates one saga stage in response to an inbound
// message from a downstream service.
type Step[T any] interface {
	Process(ctx context.Context, response T) error
	Rollback(ctx context.Context, response T) error
}

// PaymentResponse is the inbound message from the payment service.
type PaymentResponse struct {
	SagaID          uuid.UUID            `json:"saga_id"`
	OrderID         uuid.UUID            `json:"order_id"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
	FailureMessages []string             `json:"failure_messages"`
}

// RestaurantApprovalResponse is the inbound message from the restaurant
// service.
type RestaurantApprovalResponse struct {
	SagaID          uuid.UUID             `json:"saga_id"`
	OrderID         uuid.UUID             `json:"order_id"`
	ApprovalStatus  domain.ApprovalStatus `json:"approval_status"`
	FailureMessages []string              `json:"failure_messages"`
}

// ConsistencyError reports a missing outbox row that a compensating step
// depends on: the outbox tables drifted out of sync. Fatal, never retried.
type ConsistencyError struct {
	Flow       string
	SagaID     uuid.UUID
	SagaStatus outbox.SagaStatus
}

func (e ConsistencyError) Error() string {
	return fmt.Sprintf("%s outbox message for saga %s could not be found in %s status",
		e.Flow, e.SagaID, e.SagaStatus)
}

func marshalPayload(payload any, sagaID string) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("saga: failed to marshal payload for saga %s: %w", sagaID, err)
	}
	return data, nil
}

// sagaStatusFor maps the order status reached by a step to the saga
// coordination status recorded on the outbox rows.
func sagaStatusFor(status domain.OrderStatus) outbox.SagaStatus {
	switch status {
	case domain.OrderStatusPaid:
		return outbox.SagaStatusProcessing
	case domain.OrderStatusApproved:
		return outbox.SagaStatusSucceeded
	case domain.OrderStatusCancelling:
		return outbox.SagaStatusCompensating
	case domain.OrderStatusCancelled:
		return outbox.SagaStatusCompensated
	default:
		return outbox.SagaStatusStarted
	}
}
