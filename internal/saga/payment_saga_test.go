package saga

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/order"
	"github.com/food-ordering/saga-go/internal/outbox"
)

func newPaymentSagaFixture(ord *domain.Order) (*PaymentSaga, *fakeOrders, *fakeStore, *fakeStore) {
	orders := newFakeOrders(ord)
	paymentStore := newFakeStore()
	approvalStore := newFakeStore()
	s := NewPaymentSaga(
		order.NewDomainService(),
		orders,
		outbox.NewHelper(paymentStore),
		outbox.NewHelper(approvalStore),
		newFakeTransactor(orders, paymentStore, approvalStore),
	)
	return s, orders, paymentStore, approvalStore
}

func TestPaymentSaga_Process(t *testing.T) {
	ord := pendingOrder()
	s, orders, paymentStore, approvalStore := newPaymentSagaFixture(ord)

	sagaID := mustUUID()
	seeded := seedOutboxRow(paymentStore, sagaID, domain.OrderStatusPending, outbox.SagaStatusStarted, outbox.StatusCompleted)

	err := s.Process(context.Background(), PaymentResponse{
		SagaID:        sagaID,
		OrderID:       ord.ID,
		PaymentStatus: domain.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPaid, orders.get(ord.ID).Status)

	paymentRow, ok := paymentStore.get(seeded.ID)
	require.True(t, ok)
	assert.Equal(t, outbox.SagaStatusProcessing, paymentRow.SagaStatus)
	assert.Equal(t, string(domain.OrderStatusPaid), paymentRow.AggregateStatus)
	assert.NotNil(t, paymentRow.ProcessedAt)

	approvalRows := approvalStore.bySagaID(sagaID)
	require.Len(t, approvalRows, 1)
	assert.Equal(t, outbox.SagaStatusProcessing, approvalRows[0].SagaStatus)
	assert.Equal(t, outbox.StatusStarted, approvalRows[0].OutboxStatus)

	var payload order.ApprovalEventPayload
	require.NoError(t, json.Unmarshal(approvalRows[0].Payload, &payload))
	assert.Equal(t, ord.ID.String(), payload.OrderID)
	assert.Equal(t, string(domain.OrderStatusPaid), payload.RestaurantOrderStatus)
	require.Len(t, payload.Products, 1)
	assert.Equal(t, 1, payload.Products[0].Quantity)
}

func TestPaymentSaga_Process_duplicateDelivery(t *testing.T) {
	ord := pendingOrder()
	s, orders, paymentStore, approvalStore := newPaymentSagaFixture(ord)

	sagaID := mustUUID()
	seedOutboxRow(paymentStore, sagaID, domain.OrderStatusPending, outbox.SagaStatusStarted, outbox.StatusCompleted)

	response := PaymentResponse{SagaID: sagaID, OrderID: ord.ID, PaymentStatus: domain.PaymentStatusCompleted}
	require.NoError(t, s.Process(context.Background(), response))
	// second delivery finds no STARTED row and must be a silent no-op
	require.NoError(t, s.Process(context.Background(), response))

	assert.Equal(t, domain.OrderStatusPaid, orders.get(ord.ID).Status)
	assert.Len(t, approvalStore.bySagaID(sagaID), 1)
}

func TestPaymentSaga_Process_concurrentDeliveries(t *testing.T) {
	ord := pendingOrder()
	s, orders, paymentStore, approvalStore := newPaymentSagaFixture(ord)

	sagaID := mustUUID()
	seeded := seedOutboxRow(paymentStore, sagaID, domain.OrderStatusPending, outbox.SagaStatusStarted, outbox.StatusCompleted)

	response := PaymentResponse{SagaID: sagaID, OrderID: ord.ID, PaymentStatus: domain.PaymentStatusCompleted}

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = s.Process(context.Background(), response)
		}(i)
	}
	close(start)
	wg.Wait()

	// exactly one delivery advances the order; the other exits silently
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, domain.OrderStatusPaid, orders.get(ord.ID).Status)
	assert.Len(t, approvalStore.bySagaID(sagaID), 1)

	row, _ := paymentStore.get(seeded.ID)
	assert.Equal(t, outbox.SagaStatusProcessing, row.SagaStatus)
	assert.Equal(t, int32(2), row.Version)
}

func TestPaymentSaga_Process_lostRaceRollsBack(t *testing.T) {
	ord := pendingOrder()
	orders := newFakeOrders(ord)
	paymentStore := newFakeStore()
	approvalStore := newFakeStore()

	sagaID := mustUUID()
	seeded := seedOutboxRow(paymentStore, sagaID, domain.OrderStatusPending, outbox.SagaStatusStarted, outbox.StatusCompleted)

	s := NewPaymentSaga(
		order.NewDomainService(),
		orders,
		outbox.NewHelper(&conflictingStore{fakeStore: paymentStore}),
		outbox.NewHelper(approvalStore),
		newFakeTransactor(orders, paymentStore, approvalStore),
	)

	err := s.Process(context.Background(), PaymentResponse{
		SagaID:        sagaID,
		OrderID:       ord.ID,
		PaymentStatus: domain.PaymentStatusCompleted,
	})
	require.NoError(t, err, "losing the race must be silent")

	// the whole transaction rolled back: no PAID order, no flipped row
	assert.Equal(t, domain.OrderStatusPending, orders.get(ord.ID).Status)
	row, _ := paymentStore.get(seeded.ID)
	assert.Equal(t, outbox.SagaStatusStarted, row.SagaStatus)
	assert.Empty(t, approvalStore.bySagaID(sagaID))
}

func TestPaymentSaga_Rollback_failedPayment(t *testing.T) {
	ord := pendingOrder()
	s, orders, paymentStore, _ := newPaymentSagaFixture(ord)

	sagaID := mustUUID()
	seeded := seedOutboxRow(paymentStore, sagaID, domain.OrderStatusPending, outbox.SagaStatusStarted, outbox.StatusCompleted)

	err := s.Rollback(context.Background(), PaymentResponse{
		SagaID:          sagaID,
		OrderID:         ord.ID,
		PaymentStatus:   domain.PaymentStatusFailed,
		FailureMessages: []string{"Customer has no credit", ""},
	})
	require.NoError(t, err)

	// a payment that never succeeded cancels the order directly
	got := orders.get(ord.ID)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, []string{"Customer has no credit"}, got.FailureMessages)

	row, _ := paymentStore.get(seeded.ID)
	assert.Equal(t, outbox.SagaStatusCompensated, row.SagaStatus)
	assert.Equal(t, string(domain.OrderStatusCancelled), row.AggregateStatus)
}

func TestPaymentSaga_Rollback_cancelledPaymentClosesCompensation(t *testing.T) {
	ord := pendingOrder()
	ord.Status = domain.OrderStatusCancelling
	s, orders, paymentStore, approvalStore := newPaymentSagaFixture(ord)

	sagaID := mustUUID()
	paymentRow := seedOutboxRow(paymentStore, sagaID, domain.OrderStatusCancelling, outbox.SagaStatusCompensating, outbox.StatusCompleted)
	approvalRow := seedOutboxRow(approvalStore, sagaID, domain.OrderStatusCancelling, outbox.SagaStatusCompensating, outbox.StatusCompleted)

	err := s.Rollback(context.Background(), PaymentResponse{
		SagaID:        sagaID,
		OrderID:       ord.ID,
		PaymentStatus: domain.PaymentStatusCancelled,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, orders.get(ord.ID).Status)

	row, _ := paymentStore.get(paymentRow.ID)
	assert.Equal(t, outbox.SagaStatusCompensated, row.SagaStatus)
	row, _ = approvalStore.get(approvalRow.ID)
	assert.Equal(t, outbox.SagaStatusCompensated, row.SagaStatus)
}

func TestPaymentSaga_Rollback_missingApprovalRow(t *testing.T) {
	ord := pendingOrder()
	ord.Status = domain.OrderStatusCancelling
	s, _, paymentStore, _ := newPaymentSagaFixture(ord)

	sagaID := mustUUID()
	seedOutboxRow(paymentStore, sagaID, domain.OrderStatusCancelling, outbox.SagaStatusCompensating, outbox.StatusCompleted)

	err := s.Rollback(context.Background(), PaymentResponse{
		SagaID:        sagaID,
		OrderID:       ord.ID,
		PaymentStatus: domain.PaymentStatusCancelled,
	})
	require.Error(t, err)

	var consistencyErr ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, "approval", consistencyErr.Flow)
}

func TestPaymentSaga_Rollback_duplicateDelivery(t *testing.T) {
	ord := pendingOrder()
	ord.Status = domain.OrderStatusCancelled
	s, orders, _, _ := newPaymentSagaFixture(ord)

	// no row in any rollback-gate status: already handled
	err := s.Rollback(context.Background(), PaymentResponse{
		SagaID:        mustUUID(),
		OrderID:       ord.ID,
		PaymentStatus: domain.PaymentStatusFailed,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, orders.get(ord.ID).Status)
}

// conflictingStore simulates losing every optimistic-concurrency race.
type conflictingStore struct {
	*fakeStore
}

func (s *conflictingStore) Save(context.Context, *outbox.Message) error {
	return outbox.ErrConcurrentModification
}
