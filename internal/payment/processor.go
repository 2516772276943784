package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/outbox"
)

// Request is the inbound payment-request message from the order service.
// OrderPaymentStatus PENDING asks for a charge, CANCELLED for a refund.
type Request struct {
	SagaID             uuid.UUID    `json:"saga_id"`
	OrderID            uuid.UUID    `json:"order_id"`
	CustomerID         uuid.UUID    `json:"customer_id"`
	Price              domain.Money `json:"price"`
	OrderPaymentStatus string       `json:"payment_order_status"`
}

// ResponsePayload is what the order service reads back from the
// payment-response topic.
type ResponsePayload struct {
	OrderID         string       `json:"order_id"`
	CustomerID      string       `json:"customer_id"`
	SagaID          string       `json:"saga_id"`
	Price           domain.Money `json:"price"`
	CreatedAt       time.Time    `json:"created_at"`
	PaymentStatus   string       `json:"payment_status"`
	FailureMessages []string     `json:"failure_messages"`
}

// Processor handles payment requests: it runs the credit-check rules and
// persists the payment together with its order-response outbox row in one
// local transaction. Duplicate requests are detected through the outbox.
type Processor struct {
	domainService   DomainService
	payments        Repository
	creditEntries   CreditEntryRepository
	creditHistories CreditHistoryRepository
	responseOutbox  *outbox.Helper
	transactor      db.Transactor
}

func NewProcessor(
	domainService DomainService,
	payments Repository,
	creditEntries CreditEntryRepository,
	creditHistories CreditHistoryRepository,
	responseOutbox *outbox.Helper,
	transactor db.Transactor,
) *Processor {
	return &Processor{
		domainService:   domainService,
		payments:        payments,
		creditEntries:   creditEntries,
		creditHistories: creditHistories,
		responseOutbox:  responseOutbox,
		transactor:      transactor,
	}
}

// CompletePayment charges the customer for a created order.
func (p *Processor) CompletePayment(ctx context.Context, request Request) error {
	return p.handle(ctx, request, p.chargePayment, outbox.SagaStatusProcessing)
}

// CancelPayment refunds the customer during saga compensation.
func (p *Processor) CancelPayment(ctx context.Context, request Request) error {
	return p.handle(ctx, request, p.refundPayment, outbox.SagaStatusCompensated)
}

// paymentStep runs one domain operation and persists its payment record.
type paymentStep func(ctx context.Context, request Request, creditEntry *CreditEntry, creditHistories *[]CreditHistory, failureMessages *[]string) (Event, error)

// chargePayment records a new payment for the order.
func (p *Processor) chargePayment(ctx context.Context, request Request, creditEntry *CreditEntry, creditHistories *[]CreditHistory, failureMessages *[]string) (Event, error) {
	payment := &Payment{
		OrderID:    request.OrderID,
		CustomerID: request.CustomerID,
		Price:      request.Price,
	}

	event, err := p.domainService.ValidateAndInitiatePayment(payment, creditEntry, creditHistories, failureMessages)
	if err != nil {
		return Event{}, err
	}
	if err := p.payments.Save(ctx, payment); err != nil {
		return Event{}, err
	}
	return event, nil
}

// refundPayment cancels the payment already recorded for the order; a refund
// never creates a payment row of its own.
func (p *Processor) refundPayment(ctx context.Context, request Request, creditEntry *CreditEntry, creditHistories *[]CreditHistory, failureMessages *[]string) (Event, error) {
	payment, err := p.payments.FindByOrderID(ctx, request.OrderID)
	if err != nil {
		return Event{}, err
	}

	event, err := p.domainService.ValidateAndCancelPayment(payment, creditEntry, creditHistories, failureMessages)
	if err != nil {
		return Event{}, err
	}
	if err := p.payments.UpdateStatus(ctx, payment); err != nil {
		return Event{}, err
	}
	return event, nil
}

func (p *Processor) handle(ctx context.Context, request Request, step paymentStep, gateStatus outbox.SagaStatus) error {
	err := p.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		processed, err := p.alreadyProcessed(ctx, request.SagaID, gateStatus)
		if err != nil {
			return err
		}
		if processed {
			log.Info().Stringer("saga_id", request.SagaID).Msg("payment: request already processed")
			return nil
		}

		creditEntry, err := p.creditEntries.FindByCustomerID(ctx, request.CustomerID)
		if err != nil {
			return err
		}
		histories, err := p.creditHistories.FindByCustomerID(ctx, request.CustomerID)
		if err != nil {
			return err
		}

		var failureMessages []string
		historiesBefore := len(histories)
		event, err := step(ctx, request, creditEntry, &histories, &failureMessages)
		if err != nil {
			return err
		}
		payment := event.Payment

		// a failed payment is recorded, but the balance and ledger stay as
		// they were
		if event.Kind != EventFailed {
			if err := p.creditEntries.Update(ctx, creditEntry); err != nil {
				return err
			}
			for _, h := range histories[historiesBefore:] {
				if err := p.creditHistories.Save(ctx, h); err != nil {
					return err
				}
			}
		}

		payload := ResponsePayload{
			OrderID:         payment.OrderID.String(),
			CustomerID:      payment.CustomerID.String(),
			SagaID:          request.SagaID.String(),
			Price:           payment.Price,
			CreatedAt:       event.CreatedAt,
			PaymentStatus:   string(payment.Status),
			FailureMessages: event.FailureMessages,
		}
		return p.responseOutbox.SaveNew(ctx, payload,
			string(payment.Status), sagaStatusForEvent(event.Kind), outbox.StatusStarted, request.SagaID)
	})
	if err != nil {
		if errors.Is(err, outbox.ErrConcurrentModification) {
			log.Info().Stringer("saga_id", request.SagaID).Msg("payment: request lost the insert race, skipping")
			return nil
		}
		return fmt.Errorf("payment: failed to process request for saga %s: %w", request.SagaID, err)
	}
	return nil
}

// alreadyProcessed is the consumer-side idempotency gate: a response row for
// this saga in the expected status means the request was handled before. A
// redelivery racing past this check hits the outbox unique constraint and is
// rolled back.
func (p *Processor) alreadyProcessed(ctx context.Context, sagaID uuid.UUID, gateStatus outbox.SagaStatus) (bool, error) {
	_, err := p.responseOutbox.BySagaAndStatuses(ctx, sagaID, gateStatus)
	if err != nil {
		if errors.Is(err, outbox.ErrMessageNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func sagaStatusForEvent(kind EventKind) outbox.SagaStatus {
	switch kind {
	case EventCompleted:
		return outbox.SagaStatusProcessing
	case EventCancelled:
		return outbox.SagaStatusCompensated
	default:
		return outbox.SagaStatusFailed
	}
}
