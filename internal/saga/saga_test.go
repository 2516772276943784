package saga

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/outbox"
)

// fakeStore is an in-memory outbox.Store with the same optimistic-concurrency
// behavior as the postgres one: version CAS on update, unique
// (type, saga_id, saga_status) on insert.
type fakeStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]outbox.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]outbox.Message)}
}

func (s *fakeStore) Save(_ context.Context, msg *outbox.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Version == 0 {
		for _, row := range s.rows {
			if row.Type == msg.Type && row.SagaID == msg.SagaID && row.SagaStatus == msg.SagaStatus {
				return outbox.ErrConcurrentModification
			}
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		msg.Version = 1
		s.rows[msg.ID] = *msg
		return nil
	}

	row, ok := s.rows[msg.ID]
	if !ok || row.Version != msg.Version {
		return outbox.ErrConcurrentModification
	}
	msg.Version++
	s.rows[msg.ID] = *msg
	return nil
}

func (s *fakeStore) FindBySagaAndStatuses(_ context.Context, msgType string, sagaID uuid.UUID, statuses ...outbox.SagaStatus) (*outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.Type == msgType && row.SagaID == sagaID && sagaStatusIn(row.SagaStatus, statuses) {
			copied := row
			return &copied, nil
		}
	}
	return nil, outbox.ErrMessageNotFound
}

func (s *fakeStore) FindByStatuses(_ context.Context, msgType string, outboxStatus outbox.Status, limit int, statuses ...outbox.SagaStatus) ([]outbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Message
	for _, row := range s.rows {
		if len(out) == limit {
			break
		}
		if row.Type == msgType && row.OutboxStatus == outboxStatus && sagaStatusIn(row.SagaStatus, statuses) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteByStatuses(_ context.Context, msgType string, outboxStatus outbox.Status, statuses ...outbox.SagaStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range s.rows {
		if row.Type == msgType && row.OutboxStatus == outboxStatus && sagaStatusIn(row.SagaStatus, statuses) {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *fakeStore) get(id uuid.UUID) (outbox.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	return row, ok
}

func (s *fakeStore) bySagaID(sagaID uuid.UUID) []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Message
	for _, row := range s.rows {
		if row.SagaID == sagaID {
			out = append(out, row)
		}
	}
	return out
}

func sagaStatusIn(status outbox.SagaStatus, statuses []outbox.SagaStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}
	return false
}

// fakeOrders is an in-memory order.Repository. Reads hand out copies so the
// step's mutations only become visible through Update.
type fakeOrders struct {
	mu     sync.Mutex
	orders map[uuid.UUID]domain.Order
}

func newFakeOrders(orders ...*domain.Order) *fakeOrders {
	f := &fakeOrders{orders: make(map[uuid.UUID]domain.Order)}
	for _, o := range orders {
		f.orders[o.ID] = *o
	}
	return f
}

func (f *fakeOrders) Save(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrders) Update(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (f *fakeOrders) FindByTrackingID(_ context.Context, trackingID uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.TrackingID == trackingID {
			copied := o
			return &copied, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (f *fakeOrders) get(id uuid.UUID) domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id]
}

// fakeTransactor mimics transaction semantics over the in-memory fakes: it
// snapshots their state before the function runs and restores it on error,
// like a database rollback would. Transactions run serialized, as the
// database would serialize them on the locked gate row.
type fakeTransactor struct {
	mu     sync.Mutex
	orders *fakeOrders
	stores []*fakeStore
}

func newFakeTransactor(orders *fakeOrders, stores ...*fakeStore) *fakeTransactor {
	return &fakeTransactor{orders: orders, stores: stores}
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ordersBefore := snapshotOrders(t.orders)
	rowsBefore := make([]map[uuid.UUID]outbox.Message, len(t.stores))
	for i, s := range t.stores {
		rowsBefore[i] = snapshotRows(s)
	}

	if err := fn(ctx); err != nil {
		t.orders.mu.Lock()
		t.orders.orders = ordersBefore
		t.orders.mu.Unlock()
		for i, s := range t.stores {
			s.mu.Lock()
			s.rows = rowsBefore[i]
			s.mu.Unlock()
		}
		return err
	}
	return nil
}

func snapshotOrders(f *fakeOrders) map[uuid.UUID]domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]domain.Order, len(f.orders))
	for id, o := range f.orders {
		out[id] = o
	}
	return out
}

func snapshotRows(s *fakeStore) map[uuid.UUID]outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]outbox.Message, len(s.rows))
	for id, row := range s.rows {
		out[id] = row
	}
	return out
}

func mustUUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

func pendingOrder() *domain.Order {
	price, _ := domain.NewMoneyFromString("50.00")
	return &domain.Order{
		ID:           mustUUID(),
		CustomerID:   mustUUID(),
		RestaurantID: mustUUID(),
		TrackingID:   mustUUID(),
		Price:        price,
		Status:       domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{
				ID:       1,
				Product:  domain.Product{ID: mustUUID(), Name: "pizza", Price: price},
				Quantity: 1,
				Price:    price,
				Subtotal: price,
			},
		},
	}
}

func seedOutboxRow(s *fakeStore, sagaID uuid.UUID, orderStatus domain.OrderStatus, sagaStatus outbox.SagaStatus, outboxStatus outbox.Status) outbox.Message {
	msg := outbox.Message{
		ID:              mustUUID(),
		SagaID:          sagaID,
		Type:            outbox.SagaName,
		CreatedAt:       time.Now().UTC(),
		Payload:         []byte(`{}`),
		AggregateStatus: string(orderStatus),
		SagaStatus:      sagaStatus,
		OutboxStatus:    outboxStatus,
	}
	if err := s.Save(context.Background(), &msg); err != nil {
		panic(err)
	}
	return msg
}
