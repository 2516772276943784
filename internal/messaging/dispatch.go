package messaging

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/metrics"
	"github.com/food-ordering/saga-go/internal/payment"
	"github.com/food-ordering/saga-go/internal/restaurant"
	"github.com/food-ordering/saga-go/internal/saga"
)

// PaymentResponseHandler routes payment outcomes into the saga: a completed
// payment advances it, a cancelled or failed one compensates it.
func PaymentResponseHandler(step saga.Step[saga.PaymentResponse], m *metrics.SagaMetrics) Handler[saga.PaymentResponse] {
	return func(ctx context.Context, sagaID uuid.UUID, response saga.PaymentResponse) error {
		response.SagaID = sagaID
		switch response.PaymentStatus {
		case domain.PaymentStatusCompleted:
			return recordStep(m, "payment_process", step.Process(ctx, response))
		case domain.PaymentStatusCancelled, domain.PaymentStatusFailed:
			return recordStep(m, "payment_rollback", step.Rollback(ctx, response))
		default:
			log.Warn().Stringer("saga_id", sagaID).Stringer("status", response.PaymentStatus).
				Msg("messaging: unknown payment status, skipping")
			return nil
		}
	}
}

// ApprovalResponseHandler routes restaurant decisions into the saga.
func ApprovalResponseHandler(step saga.Step[saga.RestaurantApprovalResponse], m *metrics.SagaMetrics) Handler[saga.RestaurantApprovalResponse] {
	return func(ctx context.Context, sagaID uuid.UUID, response saga.RestaurantApprovalResponse) error {
		response.SagaID = sagaID
		switch response.ApprovalStatus {
		case domain.ApprovalStatusApproved:
			return recordStep(m, "approval_process", step.Process(ctx, response))
		case domain.ApprovalStatusRejected:
			return recordStep(m, "approval_rollback", step.Rollback(ctx, response))
		default:
			log.Warn().Stringer("saga_id", sagaID).Stringer("status", response.ApprovalStatus).
				Msg("messaging: unknown approval status, skipping")
			return nil
		}
	}
}

// PaymentRequestHandler routes charge and refund requests to the payment
// processor. The saga id rides on the message key, not in the payload.
func PaymentRequestHandler(processor *payment.Processor) Handler[payment.Request] {
	return func(ctx context.Context, sagaID uuid.UUID, request payment.Request) error {
		request.SagaID = sagaID
		switch request.OrderPaymentStatus {
		case string(domain.OrderStatusPending):
			return processor.CompletePayment(ctx, request)
		case string(domain.OrderStatusCancelled):
			return processor.CancelPayment(ctx, request)
		default:
			log.Warn().Stringer("saga_id", sagaID).Str("status", request.OrderPaymentStatus).
				Msg("messaging: unknown payment order status, skipping")
			return nil
		}
	}
}

// ApprovalRequestHandler routes approval requests to the restaurant
// processor.
func ApprovalRequestHandler(processor *restaurant.Processor) Handler[restaurant.Request] {
	return func(ctx context.Context, sagaID uuid.UUID, request restaurant.Request) error {
		request.SagaID = sagaID
		return processor.ApproveOrder(ctx, request)
	}
}

func recordStep(m *metrics.SagaMetrics, step string, err error) error {
	if m != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		m.Steps.WithLabelValues(step, outcome).Inc()
	}
	return err
}
