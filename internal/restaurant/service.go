package restaurant

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/domain"
)

// EventKind tags the fixed set of approval outcomes.
type EventKind string

const (
	EventApproved EventKind = "APPROVED"
	EventRejected EventKind = "REJECTED"
)

// Event is the tagged result of an approval decision.
type Event struct {
	Kind            EventKind
	Approval        OrderApproval
	CreatedAt       time.Time
	FailureMessages []string
}

// DomainService runs the approval business rules. A rejected order is a
// valid outcome carried as failure messages, not an error.
type DomainService struct{}

func NewDomainService() DomainService {
	return DomainService{}
}

// ValidateOrder checks the paid order against the restaurant's menu and
// decides approval. The order total must match the menu prices of available
// products, and the restaurant itself must be active.
func (s DomainService) ValidateOrder(restaurant *Restaurant, failureMessages *[]string) (Event, error) {
	s.validateRestaurant(restaurant, failureMessages)
	s.validateProducts(restaurant, failureMessages)
	s.validateTotalAmount(restaurant, failureMessages)

	status := domain.ApprovalStatusApproved
	kind := EventApproved
	if len(*failureMessages) > 0 {
		status = domain.ApprovalStatusRejected
		kind = EventRejected
	}

	approval, err := NewOrderApproval(restaurant.ID, restaurant.OrderDetail.ID, status)
	if err != nil {
		return Event{}, err
	}

	log.Info().Stringer("order_id", restaurant.OrderDetail.ID).
		Stringer("status", status).
		Msg("restaurant: order validated")
	return Event{Kind: kind, Approval: approval, CreatedAt: approval.CreatedAt, FailureMessages: *failureMessages}, nil
}

func (DomainService) validateRestaurant(restaurant *Restaurant, failureMessages *[]string) {
	if !restaurant.Active {
		*failureMessages = append(*failureMessages,
			fmt.Sprintf("Restaurant with id %s is currently not active!", restaurant.ID))
	}
}

func (DomainService) validateProducts(restaurant *Restaurant, failureMessages *[]string) {
	for _, product := range restaurant.OrderDetail.Products {
		if !product.Available {
			*failureMessages = append(*failureMessages,
				fmt.Sprintf("Product with id %s is not available!", product.ID))
		}
	}
}

// validateTotalAmount recomputes the order total from the restaurant's own
// menu prices; only available products count.
func (DomainService) validateTotalAmount(restaurant *Restaurant, failureMessages *[]string) {
	total := domain.ZeroMoney
	for _, product := range restaurant.OrderDetail.Products {
		if product.Available {
			total = total.Add(product.Price.Multiply(product.Quantity))
		}
	}
	if !total.Equal(restaurant.OrderDetail.TotalAmount) {
		*failureMessages = append(*failureMessages,
			fmt.Sprintf("Price total is not correct for order %s!", restaurant.OrderDetail.ID))
	}
}
