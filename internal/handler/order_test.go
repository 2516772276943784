package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/order"
)

type mockOrderService struct {
	CreateOrderFunc func(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error)
	TrackOrderFunc  func(ctx context.Context, trackingID uuid.UUID) (order.TrackOrderResult, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error) {
	return m.CreateOrderFunc(ctx, cmd)
}

func (m *mockOrderService) TrackOrder(ctx context.Context, trackingID uuid.UUID) (order.TrackOrderResult, error) {
	return m.TrackOrderFunc(ctx, trackingID)
}

func newRouter(svc *mockOrderService) http.Handler {
	router := chi.NewRouter()
	NewOrderHandler(svc).RegisterRoutes(router)
	return router
}

const createOrderBody = `{
	"customer_id": "d215b5f8-0249-4dc5-89a3-51fd148cfb41",
	"restaurant_id": "d215b5f8-0249-4dc5-89a3-51fd148cfb45",
	"price": "200.00",
	"items": [
		{"product_id": "d215b5f8-0249-4dc5-89a3-51fd148cfb48", "quantity": 1, "price": "50.00", "sub_total": "50.00"},
		{"product_id": "d215b5f8-0249-4dc5-89a3-51fd148cfb48", "quantity": 3, "price": "50.00", "sub_total": "150.00"}
	],
	"address": {"street": "Main St 1", "postal_code": "10115", "city": "Berlin"}
}`

func TestOrderHandler_CreateOrder(t *testing.T) {
	trackingID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name           string
		body           string
		createOrder    func(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error)
		expectedStatus int
		contains       string
	}{
		{
			name: "success",
			body: createOrderBody,
			createOrder: func(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error) {
				return order.CreateOrderResult{TrackingID: trackingID, Status: domain.OrderStatusPending}, nil
			},
			expectedStatus: http.StatusCreated,
			contains:       trackingID.String(),
		},
		{
			name: "validation_error",
			body: createOrderBody,
			createOrder: func(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error) {
				return order.CreateOrderResult{}, domain.NewValidationError("Total price must be greater than zero")
			},
			expectedStatus: http.StatusBadRequest,
			contains:       "Total price must be greater than zero",
		},
		{
			name: "unknown_customer",
			body: createOrderBody,
			createOrder: func(ctx context.Context, cmd order.CreateOrderCommand) (order.CreateOrderResult, error) {
				return order.CreateOrderResult{}, domain.ErrCustomerNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid_json",
			body:           `{invalid json}`,
			createOrder:    nil,
			expectedStatus: http.StatusBadRequest,
			contains:       "invalid request body",
		},
		{
			name:           "invalid_price",
			body:           strings.Replace(createOrderBody, `"price": "200.00"`, `"price": "not-a-number"`, 1),
			createOrder:    nil,
			expectedStatus: http.StatusBadRequest,
			contains:       "price must be a decimal number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(&mockOrderService{CreateOrderFunc: tt.createOrder})

			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.contains != "" {
				assert.Contains(t, rec.Body.String(), tt.contains)
			}
		})
	}
}

func TestOrderHandler_TrackOrder(t *testing.T) {
	trackingID := uuid.Must(uuid.NewV4())

	router := newRouter(&mockOrderService{
		TrackOrderFunc: func(ctx context.Context, id uuid.UUID) (order.TrackOrderResult, error) {
			require.Equal(t, trackingID, id)
			return order.TrackOrderResult{
				TrackingID:      trackingID,
				Status:          domain.OrderStatusCancelled,
				FailureMessages: []string{"Customer has no credit"},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/track/"+trackingID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_status":"CANCELLED"`)
	assert.Contains(t, rec.Body.String(), "Customer has no credit")
}

func TestOrderHandler_TrackOrder_notFound(t *testing.T) {
	router := newRouter(&mockOrderService{
		TrackOrderFunc: func(ctx context.Context, id uuid.UUID) (order.TrackOrderResult, error) {
			return order.TrackOrderResult{}, domain.ErrOrderNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/track/"+uuid.Must(uuid.NewV4()).String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/orders/track/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
