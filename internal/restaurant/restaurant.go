// Package restaurant implements the approval bounded context: it checks an
// incoming paid order against the restaurant's menu and records the approval
// decision on the order-response outbox.
package restaurant

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/food-ordering/saga-go/internal/domain"
)

// Product is a menu entry as the restaurant knows it. Availability and price
// here are authoritative, not what the order claims.
type Product struct {
	ID        uuid.UUID
	Name      string
	Price     domain.Money
	Quantity  int
	Available bool
}

// OrderDetail is the restaurant-side view of the order under approval.
type OrderDetail struct {
	ID          uuid.UUID
	Products    []Product
	TotalAmount domain.Money
	Status      domain.OrderStatus
}

// Restaurant is the aggregate deciding whether an order can be prepared.
type Restaurant struct {
	ID          uuid.UUID
	Active      bool
	OrderDetail OrderDetail
}

// OrderApproval is the persisted decision for one order.
type OrderApproval struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	OrderID      uuid.UUID
	Status       domain.ApprovalStatus
	CreatedAt    time.Time
}

// NewOrderApproval stamps a fresh approval record for the given decision.
func NewOrderApproval(restaurantID, orderID uuid.UUID, status domain.ApprovalStatus) (OrderApproval, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return OrderApproval{}, fmt.Errorf("restaurant: failed to generate approval id: %w", err)
	}
	return OrderApproval{
		ID:           id,
		RestaurantID: restaurantID,
		OrderID:      orderID,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
