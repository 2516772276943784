// Package handler exposes the order service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/order"
)

// OrderService is the application-service surface the handler needs.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error)
	TrackOrder(ctx context.Context, trackingID uuid.UUID) (order.TrackOrderResult, error)
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	app OrderService
}

func NewOrderHandler(app OrderService) *OrderHandler {
	return &OrderHandler{app: app}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/track/{trackingId}", h.TrackOrder)
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"sub_total"`
}

type createOrderRequest struct {
	CustomerID   string                   `json:"customer_id"`
	RestaurantID string                   `json:"restaurant_id"`
	Price        string                   `json:"price"`
	Items        []createOrderItemRequest `json:"items"`
	Address      struct {
		Street     string `json:"street"`
		PostalCode string `json:"postal_code"`
		City       string `json:"city"`
	} `json:"address"`
}

type createOrderResponse struct {
	TrackingID string `json:"order_tracking_id"`
	Status     string `json:"order_status"`
	Message    string `json:"message"`
}

type trackOrderResponse struct {
	TrackingID      string   `json:"order_tracking_id"`
	Status          string   `json:"order_status"`
	FailureMessages []string `json:"failure_messages"`
}

// CreateOrder handles the creation of a new order.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cmd, err := commandFromRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.app.CreateOrder(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createOrderResponse{
		TrackingID: result.TrackingID.String(),
		Status:     string(result.Status),
		Message:    "Order created successfully",
	})
}

// TrackOrder handles retrieving an order by its tracking id.
func (h *OrderHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	trackingID, err := uuid.FromString(chi.URLParam(r, "trackingId"))
	if err != nil {
		http.Error(w, "trackingId must be a uuid", http.StatusBadRequest)
		return
	}

	result, err := h.app.TrackOrder(r.Context(), trackingID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trackOrderResponse{
		TrackingID:      result.TrackingID.String(),
		Status:          string(result.Status),
		FailureMessages: result.FailureMessages,
	})
}

func commandFromRequest(req createOrderRequest) (order.CreateOrderCommand, error) {
	customerID, err := uuid.FromString(req.CustomerID)
	if err != nil {
		return order.CreateOrderCommand{}, errors.New("customer_id must be a uuid")
	}
	restaurantID, err := uuid.FromString(req.RestaurantID)
	if err != nil {
		return order.CreateOrderCommand{}, errors.New("restaurant_id must be a uuid")
	}
	price, err := domain.NewMoneyFromString(req.Price)
	if err != nil {
		return order.CreateOrderCommand{}, errors.New("price must be a decimal number")
	}

	items := make([]order.CreateOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.FromString(item.ProductID)
		if err != nil {
			return order.CreateOrderCommand{}, errors.New("items.product_id must be a uuid")
		}
		itemPrice, err := domain.NewMoneyFromString(item.Price)
		if err != nil {
			return order.CreateOrderCommand{}, errors.New("items.price must be a decimal number")
		}
		subtotal, err := domain.NewMoneyFromString(item.Subtotal)
		if err != nil {
			return order.CreateOrderCommand{}, errors.New("items.sub_total must be a decimal number")
		}
		items = append(items, order.CreateOrderItem{
			ProductID: productID,
			Quantity:  item.Quantity,
			Price:     itemPrice,
			Subtotal:  subtotal,
		})
	}

	return order.CreateOrderCommand{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		Price:        price,
		Items:        items,
		Address: domain.Address{
			Street:     req.Address.Street,
			PostalCode: req.Address.PostalCode,
			City:       req.Address.City,
		},
	}, nil
}

func writeError(w http.ResponseWriter, err error) {
	var validationErr domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Message, http.StatusBadRequest)
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrRestaurantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("handler: request failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Info().Msgf("Failed to encode response: %v", err)
	}
}
