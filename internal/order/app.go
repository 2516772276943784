package order

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/outbox"
)

type CreateOrderItem struct {
	ProductID uuid.UUID
	Quantity  int
	Price     domain.Money
	Subtotal  domain.Money
}

type CreateOrderCommand struct {
	CustomerID   uuid.UUID
	RestaurantID uuid.UUID
	Price        domain.Money
	Items        []CreateOrderItem
	Address      domain.Address
}

type CreateOrderResult struct {
	TrackingID uuid.UUID
	Status     domain.OrderStatus
}

type TrackOrderResult struct {
	TrackingID      uuid.UUID
	Status          domain.OrderStatus
	FailureMessages []string
}

// ApplicationService is the inbound-command facade of the order service. It
// validates command preconditions, initiates the aggregate and persists the
// order together with the first payment outbox row in one local transaction.
type ApplicationService struct {
	domainService DomainService
	orders        Repository
	customers     CustomerRepository
	restaurants   RestaurantRepository
	paymentOutbox *outbox.Helper
	transactor    db.Transactor
}

func NewApplicationService(
	domainService DomainService,
	orders Repository,
	customers CustomerRepository,
	restaurants RestaurantRepository,
	paymentOutbox *outbox.Helper,
	transactor db.Transactor,
) *ApplicationService {
	return &ApplicationService{
		domainService: domainService,
		orders:        orders,
		customers:     customers,
		restaurants:   restaurants,
		paymentOutbox: paymentOutbox,
		transactor:    transactor,
	}
}

func (s *ApplicationService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	exists, err := s.customers.Exists(ctx, cmd.CustomerID)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("order: failed to check customer: %w", err)
	}
	if !exists {
		log.Warn().Stringer("customer_id", cmd.CustomerID).Msg("order: customer not found")
		return CreateOrderResult{}, domain.ErrCustomerNotFound
	}

	productIDs := make([]uuid.UUID, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	restaurant, err := s.restaurants.FindInfo(ctx, cmd.RestaurantID, productIDs)
	if err != nil {
		return CreateOrderResult{}, err
	}

	order := commandToOrder(cmd)
	event, err := s.domainService.ValidateAndInitiateOrder(order, restaurant)
	if err != nil {
		return CreateOrderResult{}, err
	}

	sagaID, err := uuid.NewV4()
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("order: failed to generate saga id: %w", err)
	}

	// the aggregate write and the STARTED outbox row must commit together;
	// the scheduler picks the row up asynchronously
	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}
		payload := PaymentEventPayloadFrom(order, event.CreatedAt, string(domain.OrderStatusPending))
		return s.paymentOutbox.SaveNew(ctx, payload,
			string(order.Status), outbox.SagaStatusStarted, outbox.StatusStarted, sagaID)
	})
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("order: failed to persist order: %w", err)
	}

	log.Info().Stringer("order_id", order.ID).Stringer("saga_id", sagaID).Msg("order: order created")
	return CreateOrderResult{TrackingID: order.TrackingID, Status: order.Status}, nil
}

func (s *ApplicationService) TrackOrder(ctx context.Context, trackingID uuid.UUID) (TrackOrderResult, error) {
	order, err := s.orders.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return TrackOrderResult{}, err
	}
	return TrackOrderResult{
		TrackingID:      order.TrackingID,
		Status:          order.Status,
		FailureMessages: order.FailureMessages,
	}, nil
}

func commandToOrder(cmd CreateOrderCommand) *domain.Order {
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		items = append(items, domain.OrderItem{
			Product:  domain.Product{ID: item.ProductID},
			Quantity: item.Quantity,
			Price:    item.Price,
			Subtotal: item.Subtotal,
		})
	}
	return &domain.Order{
		CustomerID:      cmd.CustomerID,
		RestaurantID:    cmd.RestaurantID,
		DeliveryAddress: cmd.Address,
		Price:           cmd.Price,
		Items:           items,
	}
}
