package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/order"
	"github.com/food-ordering/saga-go/internal/outbox"
)

// ApprovalSaga reacts to restaurant-approval responses: an approval completes
// the saga, a rejection starts compensation by re-arming the payment flow
// with a cancellation request.
type ApprovalSaga struct {
	domainService  order.DomainService
	orders         order.Repository
	paymentOutbox  *outbox.Helper
	approvalOutbox *outbox.Helper
	transactor     db.Transactor
}

var _ Step[RestaurantApprovalResponse] = (*ApprovalSaga)(nil)

func NewApprovalSaga(
	domainService order.DomainService,
	orders order.Repository,
	paymentOutbox *outbox.Helper,
	approvalOutbox *outbox.Helper,
	transactor db.Transactor,
) *ApprovalSaga {
	return &ApprovalSaga{
		domainService:  domainService,
		orders:         orders,
		paymentOutbox:  paymentOutbox,
		approvalOutbox: approvalOutbox,
		transactor:     transactor,
	}
}

// Process handles an APPROVED response: the saga's final forward step.
func (s *ApprovalSaga) Process(ctx context.Context, response RestaurantApprovalResponse) error {
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		msg, err := s.approvalOutbox.BySagaAndStatuses(ctx, response.SagaID, outbox.SagaStatusProcessing)
		if err != nil {
			if errors.Is(err, outbox.ErrMessageNotFound) {
				log.Info().Stringer("saga_id", response.SagaID).Msg("saga: approval outbox message is already processed")
				return nil
			}
			return err
		}

		ord, err := s.orders.FindByID(ctx, response.OrderID)
		if err != nil {
			return err
		}

		if err := s.domainService.ApproveOrder(ord); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, ord); err != nil {
			return err
		}

		sagaStatus := sagaStatusFor(ord.Status)
		if err := s.approvalOutbox.MarkProcessed(ctx, msg, string(ord.Status), sagaStatus); err != nil {
			return err
		}

		// close out the payment row left in PROCESSING by the payment step
		paymentMsg, err := s.paymentOutbox.BySagaAndStatuses(ctx, response.SagaID, outbox.SagaStatusProcessing)
		if err != nil {
			if errors.Is(err, outbox.ErrMessageNotFound) {
				return ConsistencyError{Flow: "payment", SagaID: response.SagaID, SagaStatus: outbox.SagaStatusProcessing}
			}
			return err
		}
		if err := s.paymentOutbox.MarkProcessed(ctx, paymentMsg, string(ord.Status), sagaStatus); err != nil {
			return err
		}

		log.Info().Stringer("order_id", ord.ID).Msg("saga: order is approved")
		return nil
	})

	return s.swallowConcurrentModification(err, response.SagaID, "process")
}

// Rollback handles a REJECTED response: the order enters CANCELLING and the
// payment outbox row is re-armed so the scheduler publishes a cancellation
// request to the payment service.
func (s *ApprovalSaga) Rollback(ctx context.Context, response RestaurantApprovalResponse) error {
	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		msg, err := s.approvalOutbox.BySagaAndStatuses(ctx, response.SagaID, outbox.SagaStatusProcessing)
		if err != nil {
			if errors.Is(err, outbox.ErrMessageNotFound) {
				log.Info().Stringer("saga_id", response.SagaID).Msg("saga: approval outbox message is already rolled back")
				return nil
			}
			return err
		}

		ord, err := s.orders.FindByID(ctx, response.OrderID)
		if err != nil {
			return err
		}

		event, err := s.domainService.CancelOrderPayment(ord, response.FailureMessages)
		if err != nil {
			return err
		}
		if err := s.orders.Update(ctx, ord); err != nil {
			return err
		}

		sagaStatus := sagaStatusFor(ord.Status)
		if err := s.approvalOutbox.MarkProcessed(ctx, msg, string(ord.Status), sagaStatus); err != nil {
			return err
		}

		if err := s.rearmPaymentOutbox(ctx, response, event, sagaStatus); err != nil {
			return err
		}

		log.Info().Stringer("order_id", ord.ID).Msg("saga: order payment cancellation initiated")
		return nil
	})

	return s.swallowConcurrentModification(err, response.SagaID, "rollback")
}

// rearmPaymentOutbox flips the payment row left in PROCESSING back to a
// publishable STARTED state carrying the cancellation payload. A missing row
// means the two outbox tables drifted apart.
func (s *ApprovalSaga) rearmPaymentOutbox(ctx context.Context, response RestaurantApprovalResponse, event order.CancelledEvent, sagaStatus outbox.SagaStatus) error {
	paymentMsg, err := s.paymentOutbox.BySagaAndStatuses(ctx, response.SagaID, outbox.SagaStatusProcessing)
	if err != nil {
		if errors.Is(err, outbox.ErrMessageNotFound) {
			return ConsistencyError{Flow: "payment", SagaID: response.SagaID, SagaStatus: outbox.SagaStatusProcessing}
		}
		return err
	}

	payload := order.PaymentEventPayloadFrom(event.Order, event.CreatedAt, string(domain.OrderStatusCancelled))
	data, err := marshalPayload(payload, response.SagaID.String())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	paymentMsg.ProcessedAt = &now
	paymentMsg.Payload = data
	paymentMsg.AggregateStatus = string(event.Order.Status)
	paymentMsg.SagaStatus = sagaStatus
	paymentMsg.OutboxStatus = outbox.StatusStarted
	return s.paymentOutbox.Save(ctx, paymentMsg)
}

func (s *ApprovalSaga) swallowConcurrentModification(err error, sagaID interface{ String() string }, step string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, outbox.ErrConcurrentModification) {
		log.Info().Str("saga_id", sagaID.String()).Str("step", step).
			Msg("saga: approval step lost the update race, skipping")
		return nil
	}
	return fmt.Errorf("saga: approval %s failed for saga %s: %w", step, sagaID, err)
}
