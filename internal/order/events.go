package order

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/food-ordering/saga-go/internal/domain"
)

// Domain events produced by the order domain service. Each carries the
// mutated aggregate and a UTC creation timestamp.

type CreatedEvent struct {
	Order     *domain.Order
	CreatedAt time.Time
}

type PaidEvent struct {
	Order     *domain.Order
	CreatedAt time.Time
}

type CancelledEvent struct {
	Order     *domain.Order
	CreatedAt time.Time
}

// Restaurant is the order context's view of restaurant data, loaded once per
// create-order command to confirm product names and prices.
type Restaurant struct {
	ID       uuid.UUID
	Active   bool
	Products []domain.Product
}
