package order

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/outbox"
)

type memoryOrders struct {
	orders map[uuid.UUID]domain.Order
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[uuid.UUID]domain.Order)}
}

func (m *memoryOrders) Save(_ context.Context, o *domain.Order) error {
	m.orders[o.ID] = *o
	return nil
}

func (m *memoryOrders) Update(_ context.Context, o *domain.Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *memoryOrders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memoryOrders) FindByTrackingID(_ context.Context, trackingID uuid.UUID) (*domain.Order, error) {
	for _, o := range m.orders {
		if o.TrackingID == trackingID {
			copied := o
			return &copied, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

type fakeCustomers struct {
	known map[uuid.UUID]bool
}

func (f *fakeCustomers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type fakeRestaurants struct {
	restaurant *Restaurant
}

func (f *fakeRestaurants) FindInfo(_ context.Context, restaurantID uuid.UUID, _ []uuid.UUID) (*Restaurant, error) {
	if f.restaurant == nil || f.restaurant.ID != restaurantID {
		return nil, domain.ErrRestaurantNotFound
	}
	return f.restaurant, nil
}

type memoryOutboxStore struct {
	rows map[uuid.UUID]outbox.Message
}

func (s *memoryOutboxStore) Save(_ context.Context, msg *outbox.Message) error {
	if msg.Version == 0 {
		msg.Version = 1
	} else {
		msg.Version++
	}
	s.rows[msg.ID] = *msg
	return nil
}

func (s *memoryOutboxStore) FindBySagaAndStatuses(_ context.Context, _ string, _ uuid.UUID, _ ...outbox.SagaStatus) (*outbox.Message, error) {
	return nil, outbox.ErrMessageNotFound
}

func (s *memoryOutboxStore) FindByStatuses(_ context.Context, _ string, _ outbox.Status, _ int, _ ...outbox.SagaStatus) ([]outbox.Message, error) {
	return nil, nil
}

func (s *memoryOutboxStore) DeleteByStatuses(_ context.Context, _ string, _ outbox.Status, _ ...outbox.SagaStatus) error {
	return nil
}

type passthroughTransactor struct{}

func (passthroughTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func appFixture(t *testing.T) (*ApplicationService, *memoryOrders, *memoryOutboxStore, CreateOrderCommand) {
	t.Helper()
	restaurant := restaurantFixture(t)
	customerID := uuid.Must(uuid.NewV4())

	orders := newMemoryOrders()
	store := &memoryOutboxStore{rows: make(map[uuid.UUID]outbox.Message)}
	app := NewApplicationService(
		NewDomainService(),
		orders,
		&fakeCustomers{known: map[uuid.UUID]bool{customerID: true}},
		&fakeRestaurants{restaurant: restaurant},
		outbox.NewHelper(store),
		passthroughTransactor{},
	)

	cmd := CreateOrderCommand{
		CustomerID:   customerID,
		RestaurantID: restaurant.ID,
		Price:        money(t, "100.00"),
		Items: []CreateOrderItem{
			{ProductID: restaurant.Products[0].ID, Quantity: 2, Price: money(t, "25.00"), Subtotal: money(t, "50.00")},
			{ProductID: restaurant.Products[1].ID, Quantity: 1, Price: money(t, "50.00"), Subtotal: money(t, "50.00")},
		},
		Address: domain.Address{Street: "Main St 1", PostalCode: "10115", City: "Berlin"},
	}
	return app, orders, store, cmd
}

func TestApplicationService_CreateOrder(t *testing.T) {
	app, orders, store, cmd := appFixture(t)

	result, err := app.CreateOrder(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, result.Status)
	assert.NotEqual(t, uuid.Nil, result.TrackingID)

	require.Len(t, orders.orders, 1)
	require.Len(t, store.rows, 1)

	for _, row := range store.rows {
		assert.Equal(t, outbox.SagaStatusStarted, row.SagaStatus)
		assert.Equal(t, outbox.StatusStarted, row.OutboxStatus)
		assert.Equal(t, string(domain.OrderStatusPending), row.AggregateStatus)

		var payload PaymentEventPayload
		require.NoError(t, json.Unmarshal(row.Payload, &payload))
		assert.Equal(t, cmd.CustomerID.String(), payload.CustomerID)
		assert.Equal(t, string(domain.OrderStatusPending), payload.PaymentOrderStatus)
		assert.Equal(t, "100.00", payload.Price.String())
	}
}

func TestApplicationService_CreateOrder_unknownCustomer(t *testing.T) {
	app, orders, store, cmd := appFixture(t)
	cmd.CustomerID = uuid.Must(uuid.NewV4())

	_, err := app.CreateOrder(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	assert.Empty(t, orders.orders)
	assert.Empty(t, store.rows)
}

func TestApplicationService_CreateOrder_unknownRestaurant(t *testing.T) {
	app, _, _, cmd := appFixture(t)
	cmd.RestaurantID = uuid.Must(uuid.NewV4())

	_, err := app.CreateOrder(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrRestaurantNotFound)
}

func TestApplicationService_TrackOrder(t *testing.T) {
	app, _, _, cmd := appFixture(t)

	created, err := app.CreateOrder(context.Background(), cmd)
	require.NoError(t, err)

	tracked, err := app.TrackOrder(context.Background(), created.TrackingID)
	require.NoError(t, err)
	assert.Equal(t, created.TrackingID, tracked.TrackingID)
	assert.Equal(t, domain.OrderStatusPending, tracked.Status)

	_, err = app.TrackOrder(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}
