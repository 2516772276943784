package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/domain"
)

// DomainService orchestrates order aggregate operations and wraps the results
// in events. It is stateless; one value is shared process-wide.
type DomainService struct{}

func NewDomainService() DomainService {
	return DomainService{}
}

// ValidateAndInitiateOrder confirms restaurant data against the command,
// validates the price invariants and moves the fresh order to PENDING.
func (DomainService) ValidateAndInitiateOrder(order *domain.Order, restaurant *Restaurant) (CreatedEvent, error) {
	if !restaurant.Active {
		return CreatedEvent{}, domain.NewValidationError("Restaurant %s is not active", restaurant.ID)
	}

	setOrderProductInformation(order, restaurant)

	if err := order.Validate(); err != nil {
		return CreatedEvent{}, err
	}
	if err := order.Initialize(); err != nil {
		return CreatedEvent{}, err
	}

	log.Info().Stringer("order_id", order.ID).Msg("order: order initialized")
	return CreatedEvent{Order: order, CreatedAt: time.Now().UTC()}, nil
}

func (DomainService) PayOrder(order *domain.Order) (PaidEvent, error) {
	if err := order.Pay(); err != nil {
		return PaidEvent{}, err
	}
	log.Info().Stringer("order_id", order.ID).Msg("order: order paid")
	return PaidEvent{Order: order, CreatedAt: time.Now().UTC()}, nil
}

func (DomainService) ApproveOrder(order *domain.Order) error {
	if err := order.Approve(); err != nil {
		return err
	}
	log.Info().Stringer("order_id", order.ID).Msg("order: order approved")
	return nil
}

// CancelOrderPayment starts compensation of a paid order whose restaurant
// approval was rejected.
func (DomainService) CancelOrderPayment(order *domain.Order, failureMessages []string) (CancelledEvent, error) {
	if err := order.InitCancel(failureMessages); err != nil {
		return CancelledEvent{}, err
	}
	log.Info().Stringer("order_id", order.ID).Msg("order: order payment is being cancelled")
	return CancelledEvent{Order: order, CreatedAt: time.Now().UTC()}, nil
}

func (DomainService) CancelOrder(order *domain.Order, failureMessages []string) error {
	if err := order.Cancel(failureMessages); err != nil {
		return err
	}
	log.Info().Stringer("order_id", order.ID).Msg("order: order cancelled")
	return nil
}

// setOrderProductInformation confirms item product names and prices from the
// restaurant's data, joined by product id.
func setOrderProductInformation(order *domain.Order, restaurant *Restaurant) {
	confirmed := make(map[uuid.UUID]domain.Product, len(restaurant.Products))
	for _, p := range restaurant.Products {
		confirmed[p.ID] = p
	}

	for i := range order.Items {
		if p, ok := confirmed[order.Items[i].Product.ID]; ok {
			order.Items[i].Product.Name = p.Name
			order.Items[i].Product.Price = p.Price
		}
	}
}
