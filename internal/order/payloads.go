package order

import (
	"time"

	"github.com/food-ordering/saga-go/internal/domain"
)

// Outbox payloads published to the downstream services. The downstream
// consumers read these fields verbatim.

type PaymentEventPayload struct {
	OrderID            string       `json:"order_id"`
	CustomerID         string       `json:"customer_id"`
	Price              domain.Money `json:"price"`
	CreatedAt          time.Time    `json:"created_at"`
	PaymentOrderStatus string       `json:"payment_order_status"`
}

type ApprovalEventProduct struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type ApprovalEventPayload struct {
	OrderID               string                 `json:"order_id"`
	RestaurantID          string                 `json:"restaurant_id"`
	Price                 domain.Money           `json:"price"`
	Products              []ApprovalEventProduct `json:"products"`
	CreatedAt             time.Time              `json:"created_at"`
	RestaurantOrderStatus string                 `json:"restaurant_order_status"`
}

// PaymentEventPayloadFrom builds the payment-request payload for a created or
// cancelled order.
func PaymentEventPayloadFrom(o *domain.Order, createdAt time.Time, paymentOrderStatus string) PaymentEventPayload {
	return PaymentEventPayload{
		OrderID:            o.ID.String(),
		CustomerID:         o.CustomerID.String(),
		Price:              o.Price,
		CreatedAt:          createdAt,
		PaymentOrderStatus: paymentOrderStatus,
	}
}

// ApprovalEventPayloadFrom builds the restaurant-approval payload for a paid
// order.
func ApprovalEventPayloadFrom(o *domain.Order, createdAt time.Time) ApprovalEventPayload {
	products := make([]ApprovalEventProduct, 0, len(o.Items))
	for _, item := range o.Items {
		products = append(products, ApprovalEventProduct{
			ID:       item.Product.ID.String(),
			Quantity: item.Quantity,
		})
	}
	return ApprovalEventPayload{
		OrderID:               o.ID.String(),
		RestaurantID:          o.RestaurantID.String(),
		Price:                 o.Price,
		Products:              products,
		CreatedAt:             createdAt,
		RestaurantOrderStatus: string(domain.OrderStatusPaid),
	}
}
