// Package payment implements the payment bounded context: it charges a
// customer's credit for a created order, refunds it when the saga
// compensates, and records the outcome on the order-response outbox.
package payment

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/food-ordering/saga-go/internal/domain"
)

// Payment records one charge or refund attempt for an order.
type Payment struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Price      domain.Money
	Status     domain.PaymentStatus
	CreatedAt  time.Time
}

// Initialize assigns the payment id and creation time.
func (p *Payment) Initialize() error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("payment: failed to generate payment id: %w", err)
	}
	p.ID = id
	p.CreatedAt = time.Now().UTC()
	return nil
}

// Validate appends a failure message for an invalid price instead of
// returning an error: a failed payment is a valid terminal outcome.
func (p *Payment) Validate(failureMessages *[]string) {
	if !p.Price.IsGreaterThanZero() {
		*failureMessages = append(*failureMessages,
			fmt.Sprintf("Total price must be greater than zero for order %s!", p.OrderID))
	}
}

// CreditEntry is the running credit balance of one customer.
type CreditEntry struct {
	ID                uuid.UUID
	CustomerID        uuid.UUID
	TotalCreditAmount domain.Money
}

func (c *CreditEntry) AddCreditAmount(amount domain.Money) {
	c.TotalCreditAmount = c.TotalCreditAmount.Add(amount)
}

func (c *CreditEntry) SubtractCreditAmount(amount domain.Money) {
	c.TotalCreditAmount = c.TotalCreditAmount.Subtract(amount)
}

type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "DEBIT"
	TransactionTypeCredit TransactionType = "CREDIT"
)

// CreditHistory is one ledger line of a customer's credit movements.
type CreditHistory struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	Amount     domain.Money
	Type       TransactionType
}
