package payment

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/domain"
)

// EventKind tags the fixed set of payment outcomes; consumers dispatch on it
// instead of inspecting concrete event types.
type EventKind string

const (
	EventCompleted EventKind = "COMPLETED"
	EventCancelled EventKind = "CANCELLED"
	EventFailed    EventKind = "FAILED"
)

// Event is the tagged result of a payment domain operation.
type Event struct {
	Kind            EventKind
	Payment         *Payment
	CreatedAt       time.Time
	FailureMessages []string
}

// DomainService runs the credit-check business rules. Violations accumulate
// as failure messages; a failed payment is a valid outcome, not an error.
type DomainService struct{}

func NewDomainService() DomainService {
	return DomainService{}
}

// ValidateAndInitiatePayment charges the customer's credit for a new order.
func (s DomainService) ValidateAndInitiatePayment(
	payment *Payment,
	creditEntry *CreditEntry,
	creditHistories *[]CreditHistory,
	failureMessages *[]string,
) (Event, error) {
	payment.Validate(failureMessages)
	if err := payment.Initialize(); err != nil {
		return Event{}, err
	}

	s.validateCreditEntry(payment, creditEntry, failureMessages)
	creditEntry.SubtractCreditAmount(payment.Price)
	if err := appendCreditHistory(payment, creditHistories, TransactionTypeDebit); err != nil {
		return Event{}, err
	}
	s.validateCreditHistory(creditEntry, *creditHistories, failureMessages)

	if len(*failureMessages) == 0 {
		log.Info().Stringer("order_id", payment.OrderID).Msg("payment: payment initiated")
		payment.Status = domain.PaymentStatusCompleted
		return Event{Kind: EventCompleted, Payment: payment, CreatedAt: time.Now().UTC()}, nil
	}

	log.Info().Stringer("order_id", payment.OrderID).Strs("failures", *failureMessages).
		Msg("payment: payment initiation failed")
	payment.Status = domain.PaymentStatusFailed
	return Event{Kind: EventFailed, Payment: payment, CreatedAt: time.Now().UTC(), FailureMessages: *failureMessages}, nil
}

// ValidateAndCancelPayment refunds the customer's credit during saga
// compensation.
func (s DomainService) ValidateAndCancelPayment(
	payment *Payment,
	creditEntry *CreditEntry,
	creditHistories *[]CreditHistory,
	failureMessages *[]string,
) (Event, error) {
	payment.Validate(failureMessages)
	creditEntry.AddCreditAmount(payment.Price)
	if err := appendCreditHistory(payment, creditHistories, TransactionTypeCredit); err != nil {
		return Event{}, err
	}

	if len(*failureMessages) == 0 {
		log.Info().Stringer("order_id", payment.OrderID).Msg("payment: payment cancelled")
		payment.Status = domain.PaymentStatusCancelled
		return Event{Kind: EventCancelled, Payment: payment, CreatedAt: time.Now().UTC()}, nil
	}

	log.Info().Stringer("order_id", payment.OrderID).Strs("failures", *failureMessages).
		Msg("payment: payment cancellation failed")
	payment.Status = domain.PaymentStatusFailed
	return Event{Kind: EventFailed, Payment: payment, CreatedAt: time.Now().UTC(), FailureMessages: *failureMessages}, nil
}

func (DomainService) validateCreditEntry(payment *Payment, creditEntry *CreditEntry, failureMessages *[]string) {
	if payment.Price.IsGreaterThan(creditEntry.TotalCreditAmount) {
		msg := fmt.Sprintf("Customer %s doesn't have enough credit for payment!", payment.CustomerID)
		log.Warn().Msg("payment: " + msg)
		*failureMessages = append(*failureMessages, msg)
	}
}

// validateCreditHistory checks that the ledger and the entry balance agree.
func (DomainService) validateCreditHistory(creditEntry *CreditEntry, histories []CreditHistory, failureMessages *[]string) {
	totalCredit := totalHistoryAmount(histories, TransactionTypeCredit)
	totalDebit := totalHistoryAmount(histories, TransactionTypeDebit)

	if totalDebit.IsGreaterThan(totalCredit) {
		msg := fmt.Sprintf("Customer %s doesn't have enough credit according to credit history!", creditEntry.CustomerID)
		log.Warn().Msg("payment: " + msg)
		*failureMessages = append(*failureMessages, msg)
	}

	if !creditEntry.TotalCreditAmount.Equal(totalCredit.Subtract(totalDebit)) {
		msg := fmt.Sprintf("Credit history total is not equal to current credit for customer %s!", creditEntry.CustomerID)
		log.Warn().Msg("payment: " + msg)
		*failureMessages = append(*failureMessages, msg)
	}
}

func appendCreditHistory(payment *Payment, histories *[]CreditHistory, txType TransactionType) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("payment: failed to generate credit history id: %w", err)
	}
	*histories = append(*histories, CreditHistory{
		ID:         id,
		CustomerID: payment.CustomerID,
		Amount:     payment.Price,
		Type:       txType,
	})
	return nil
}

func totalHistoryAmount(histories []CreditHistory, txType TransactionType) domain.Money {
	total := domain.ZeroMoney
	for _, h := range histories {
		if h.Type == txType {
			total = total.Add(h.Amount)
		}
	}
	return total
}
