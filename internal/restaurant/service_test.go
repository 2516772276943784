package restaurant

import (
	"fmt"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/food-ordering/saga-go/internal/domain"
)

func money(t *testing.T, value string) domain.Money {
	t.Helper()
	m, err := domain.NewMoneyFromString(value)
	require.NoError(t, err)
	return m
}

func restaurantFixture(t *testing.T) *Restaurant {
	t.Helper()
	return &Restaurant{
		ID:     uuid.Must(uuid.NewV4()),
		Active: true,
		OrderDetail: OrderDetail{
			ID:          uuid.Must(uuid.NewV4()),
			TotalAmount: money(t, "100.00"),
			Status:      domain.OrderStatusPaid,
			Products: []Product{
				{ID: uuid.Must(uuid.NewV4()), Name: "pizza", Price: money(t, "25.00"), Quantity: 2, Available: true},
				{ID: uuid.Must(uuid.NewV4()), Name: "salad", Price: money(t, "50.00"), Quantity: 1, Available: true},
			},
		},
	}
}

func TestDomainService_ValidateOrder(t *testing.T) {
	svc := NewDomainService()

	t.Run("approved", func(t *testing.T) {
		restaurant := restaurantFixture(t)

		var failures []string
		event, err := svc.ValidateOrder(restaurant, &failures)
		require.NoError(t, err)

		assert.Equal(t, EventApproved, event.Kind)
		assert.Equal(t, domain.ApprovalStatusApproved, event.Approval.Status)
		assert.Equal(t, restaurant.ID, event.Approval.RestaurantID)
		assert.Equal(t, restaurant.OrderDetail.ID, event.Approval.OrderID)
		assert.Empty(t, event.FailureMessages)
	})

	t.Run("inactive_restaurant", func(t *testing.T) {
		restaurant := restaurantFixture(t)
		restaurant.Active = false

		var failures []string
		event, err := svc.ValidateOrder(restaurant, &failures)
		require.NoError(t, err)

		assert.Equal(t, EventRejected, event.Kind)
		assert.Contains(t, event.FailureMessages,
			fmt.Sprintf("Restaurant with id %s is currently not active!", restaurant.ID))
	})

	t.Run("unavailable_product", func(t *testing.T) {
		restaurant := restaurantFixture(t)
		restaurant.OrderDetail.Products[0].Available = false

		var failures []string
		event, err := svc.ValidateOrder(restaurant, &failures)
		require.NoError(t, err)

		assert.Equal(t, EventRejected, event.Kind)
		assert.Equal(t, domain.ApprovalStatusRejected, event.Approval.Status)
		assert.Contains(t, event.FailureMessages,
			fmt.Sprintf("Product with id %s is not available!", restaurant.OrderDetail.Products[0].ID))
		// the unavailable product also breaks the total check
		assert.Contains(t, event.FailureMessages,
			fmt.Sprintf("Price total is not correct for order %s!", restaurant.OrderDetail.ID))
	})

	t.Run("price_mismatch", func(t *testing.T) {
		restaurant := restaurantFixture(t)
		restaurant.OrderDetail.TotalAmount = money(t, "90.00")

		var failures []string
		event, err := svc.ValidateOrder(restaurant, &failures)
		require.NoError(t, err)

		assert.Equal(t, EventRejected, event.Kind)
		assert.Contains(t, event.FailureMessages,
			fmt.Sprintf("Price total is not correct for order %s!", restaurant.OrderDetail.ID))
	})
}
