package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/order"
	"github.com/food-ordering/saga-go/internal/outbox"
)

// PaymentSaga reacts to payment-service responses: a completed payment
// advances the order to PAID and arms the restaurant-approval flow; a
// cancelled or failed payment compensates the order.
type PaymentSaga struct {
	domainService  order.DomainService
	orders         order.Repository
	paymentOutbox  *outbox.Helper
	approvalOutbox *outbox.Helper
	transactor     db.Transactor
}

var _ Step[PaymentResponse] = (*PaymentSaga)(nil)

func NewPaymentSaga(
	domainService order.DomainService,
	orders order.Repository,
	paymentOutbox *outbox.Helper,
	approvalOutbox *outbox.Helper,
	transactor db.Transactor,
) *PaymentSaga {
	return &PaymentSaga{
		domainService:  domainService,
		orders:         orders,
		paymentOutbox:  paymentOutbox,
		approvalOutbox: approvalOutbox,
		transactor:     transactor,
	}
}

// Process handles a COMPLETED payment response.
func (s *PaymentSaga) Process(ctx context.Context, response PaymentResponse) error {
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		msg, err := s.paymentOutbox.BySagaAndStatuses(ctx, response.SagaID, outbox.SagaStatusStarted)
		if err != nil {
			if errors.Is(err, outbox.ErrMessageNotFound) {
				// duplicate delivery: the row already advanced past STARTED
				log.Info().Stringer("saga_id", response.SagaID).Msg("saga: payment outbox message is already processed")
				return nil
			}
			return err
		}

		ord, err := s.orders.FindByID(ctx, response.OrderID)
		if err != nil {
			return err
		}

		event, err := s.domainService.PayOrder(ord)
		if err != nil {
			return err
		}
		if err := s.orders.Update(ctx, ord); err != nil {
			return err
		}

		sagaStatus := sagaStatusFor(ord.Status)
		if err := s.paymentOutbox.MarkProcessed(ctx, msg, string(ord.Status), sagaStatus); err != nil {
			return err
		}

		payload := order.ApprovalEventPayloadFrom(ord, event.CreatedAt)
		if err := s.approvalOutbox.SaveNew(ctx, payload,
			string(ord.Status), sagaStatus, outbox.StatusStarted, response.SagaID); err != nil {
			return err
		}

		log.Info().Stringer("order_id", ord.ID).Msg("saga: order is paid")
		return nil
	})

	return s.swallowConcurrentModification(err, response.SagaID, "process")
}

// Rollback handles a CANCELLED or FAILED payment response by cancelling the
// order.
func (s *PaymentSaga) Rollback(ctx context.Context, response PaymentResponse) error {
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		msg, err := s.paymentOutbox.BySagaAndStatuses(ctx, response.SagaID,
			rollbackGateStatuses(response.PaymentStatus)...)
		if err != nil {
			if errors.Is(err, outbox.ErrMessageNotFound) {
				log.Info().Stringer("saga_id", response.SagaID).Msg("saga: payment outbox message is already rolled back")
				return nil
			}
			return err
		}

		ord, err := s.orders.FindByID(ctx, response.OrderID)
		if err != nil {
			return err
		}

		if err := s.domainService.CancelOrder(ord, response.FailureMessages); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, ord); err != nil {
			return err
		}

		sagaStatus := sagaStatusFor(ord.Status)
		if err := s.paymentOutbox.MarkProcessed(ctx, msg, string(ord.Status), sagaStatus); err != nil {
			return err
		}

		// a CANCELLED payment closes a compensation that the approval
		// rollback started; its approval row must be finished as well
		if response.PaymentStatus == domain.PaymentStatusCancelled {
			approvalMsg, err := s.approvalOutbox.BySagaAndStatuses(ctx, response.SagaID, outbox.SagaStatusCompensating)
			if err != nil {
				if errors.Is(err, outbox.ErrMessageNotFound) {
					return ConsistencyError{Flow: "approval", SagaID: response.SagaID, SagaStatus: outbox.SagaStatusCompensating}
				}
				return err
			}
			if err := s.approvalOutbox.MarkProcessed(ctx, approvalMsg, string(ord.Status), sagaStatus); err != nil {
				return err
			}
		}

		log.Info().Stringer("order_id", ord.ID).Msg("saga: order is cancelled")
		return nil
	})

	return s.swallowConcurrentModification(err, response.SagaID, "rollback")
}

// rollbackGateStatuses returns the saga statuses the payment outbox row may
// legitimately hold when the given payment status triggers a rollback: a
// FAILED payment can interrupt the saga before or after the forward step,
// a CANCELLED payment only closes a compensation already in flight.
func rollbackGateStatuses(status domain.PaymentStatus) []outbox.SagaStatus {
	switch status {
	case domain.PaymentStatusCancelled:
		return []outbox.SagaStatus{outbox.SagaStatusCompensating}
	case domain.PaymentStatusFailed:
		return []outbox.SagaStatus{outbox.SagaStatusStarted, outbox.SagaStatusProcessing}
	default:
		return []outbox.SagaStatus{outbox.SagaStatusStarted}
	}
}

// swallowConcurrentModification turns a lost optimistic-concurrency race into
// a silent no-op: another worker already completed this step and the local
// transaction was rolled back.
func (s *PaymentSaga) swallowConcurrentModification(err error, sagaID interface{ String() string }, step string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, outbox.ErrConcurrentModification) {
		log.Info().Str("saga_id", sagaID.String()).Str("step", step).
			Msg("saga: payment step lost the update race, skipping")
		return nil
	}
	return fmt.Errorf("saga: payment %s failed for saga %s: %w", step, sagaID, err)
}
