package domain

import (
	"fmt"

	"github.com/gofrs/uuid"
)

// Product is the order's view of a restaurant product. Name and Price are
// confirmed against restaurant data before the order is validated.
type Product struct {
	ID    uuid.UUID
	Name  string
	Price Money
}

// OrderItem identity is local to its order: items are numbered 1..n at
// initialization, not globally unique.
type OrderItem struct {
	ID       int64
	OrderID  uuid.UUID
	Product  Product
	Quantity int
	Price    Money
	Subtotal Money
}

func (i OrderItem) isPriceValid() bool {
	return i.Price.IsGreaterThanZero() &&
		i.Price.Equal(i.Product.Price) &&
		i.Subtotal.Equal(i.Price.Multiply(i.Quantity))
}

type Address struct {
	Street     string
	PostalCode string
	City       string
}

// Order is the aggregate root of the order bounded context. All state
// transitions go through its methods; illegal transitions return a StateError.
type Order struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	RestaurantID    uuid.UUID
	DeliveryAddress Address
	Price           Money
	Items           []OrderItem

	TrackingID      uuid.UUID
	Status          OrderStatus
	FailureMessages []string
}

// Initialize assigns the order and tracking ids, numbers the items and moves
// the order to PENDING. It must only be called on a fresh order.
func (o *Order) Initialize() error {
	if o.Status != "" || o.ID != uuid.Nil {
		return NewValidationError("order is not in correct state for initialization")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("domain: failed to generate order id: %w", err)
	}
	trackingID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("domain: failed to generate tracking id: %w", err)
	}

	o.ID = id
	o.TrackingID = trackingID
	o.Status = OrderStatusPending

	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
	}

	return nil
}

// Validate recomputes the order-level and item-level price invariants.
func (o *Order) Validate() error {
	if !o.Price.IsGreaterThanZero() {
		return NewValidationError("Total price must be greater than zero")
	}

	itemsTotal := ZeroMoney
	for _, item := range o.Items {
		if !item.isPriceValid() {
			return NewValidationError("Order item price %s is not valid for product %s",
				item.Price, item.Product.ID)
		}
		itemsTotal = itemsTotal.Add(item.Subtotal)
	}

	if !o.Price.Equal(itemsTotal) {
		return NewValidationError("Total price %s is not equal to order items total price %s",
			o.Price, itemsTotal)
	}

	return nil
}

func (o *Order) Pay() error {
	if o.Status != OrderStatusPending {
		return StateError{Op: "pay", Status: o.Status}
	}
	o.Status = OrderStatusPaid
	return nil
}

func (o *Order) Approve() error {
	if o.Status != OrderStatusPaid {
		return StateError{Op: "approve", Status: o.Status}
	}
	o.Status = OrderStatusApproved
	return nil
}

// InitCancel starts compensation of a paid order.
func (o *Order) InitCancel(failureMessages []string) error {
	if o.Status != OrderStatusPaid {
		return StateError{Op: "initCancel", Status: o.Status}
	}
	o.Status = OrderStatusCancelling
	o.appendFailureMessages(failureMessages)
	return nil
}

// Cancel finishes compensation, or rejects an order that was never paid.
func (o *Order) Cancel(failureMessages []string) error {
	if o.Status != OrderStatusCancelling && o.Status != OrderStatusPending {
		return StateError{Op: "cancel", Status: o.Status}
	}
	o.Status = OrderStatusCancelled
	o.appendFailureMessages(failureMessages)
	return nil
}

func (o *Order) appendFailureMessages(messages []string) {
	for _, m := range messages {
		if m != "" {
			o.FailureMessages = append(o.FailureMessages, m)
		}
	}
}
