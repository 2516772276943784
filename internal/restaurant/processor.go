package restaurant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
	"github.com/food-ordering/saga-go/internal/outbox"
)

// RequestProduct is one ordered product inside an approval request.
type RequestProduct struct {
	ID       uuid.UUID `json:"id"`
	Quantity int       `json:"quantity"`
}

// Request is the inbound approval-request message from the order service.
type Request struct {
	SagaID                uuid.UUID        `json:"saga_id"`
	OrderID               uuid.UUID        `json:"order_id"`
	RestaurantID          uuid.UUID        `json:"restaurant_id"`
	Price                 domain.Money     `json:"price"`
	Products              []RequestProduct `json:"products"`
	CreatedAt             time.Time        `json:"created_at"`
	RestaurantOrderStatus string           `json:"restaurant_order_status"`
}

// ResponsePayload is what the order service reads back from the
// approval-response topic.
type ResponsePayload struct {
	OrderID             string    `json:"order_id"`
	RestaurantID        string    `json:"restaurant_id"`
	SagaID              string    `json:"saga_id"`
	CreatedAt           time.Time `json:"created_at"`
	OrderApprovalStatus string    `json:"order_approval_status"`
	FailureMessages     []string  `json:"failure_messages"`
}

// Processor handles approval requests: it validates the order against the
// menu and persists the approval together with its order-response outbox row
// in one local transaction. Duplicate requests are detected through the
// outbox.
type Processor struct {
	domainService  DomainService
	restaurants    Repository
	approvals      ApprovalRepository
	responseOutbox *outbox.Helper
	transactor     db.Transactor
}

func NewProcessor(
	domainService DomainService,
	restaurants Repository,
	approvals ApprovalRepository,
	responseOutbox *outbox.Helper,
	transactor db.Transactor,
) *Processor {
	return &Processor{
		domainService:  domainService,
		restaurants:    restaurants,
		approvals:      approvals,
		responseOutbox: responseOutbox,
		transactor:     transactor,
	}
}

// ApproveOrder decides the approval for a paid order.
func (p *Processor) ApproveOrder(ctx context.Context, request Request) error {
	err := p.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		processed, err := p.alreadyProcessed(ctx, request.SagaID)
		if err != nil {
			return err
		}
		if processed {
			log.Info().Stringer("saga_id", request.SagaID).Msg("restaurant: request already processed")
			return nil
		}

		restaurant, err := p.findRestaurant(ctx, request)
		if err != nil {
			return err
		}

		var failureMessages []string
		event, err := p.domainService.ValidateOrder(restaurant, &failureMessages)
		if err != nil {
			return err
		}

		if err := p.approvals.Save(ctx, event.Approval); err != nil {
			return err
		}

		payload := ResponsePayload{
			OrderID:             request.OrderID.String(),
			RestaurantID:        request.RestaurantID.String(),
			SagaID:              request.SagaID.String(),
			CreatedAt:           event.CreatedAt,
			OrderApprovalStatus: string(event.Approval.Status),
			FailureMessages:     event.FailureMessages,
		}
		return p.responseOutbox.SaveNew(ctx, payload,
			string(event.Approval.Status), sagaStatusForEvent(event.Kind), outbox.StatusStarted, request.SagaID)
	})
	if err != nil {
		if errors.Is(err, outbox.ErrConcurrentModification) {
			log.Info().Stringer("saga_id", request.SagaID).Msg("restaurant: request lost the insert race, skipping")
			return nil
		}
		if errors.Is(err, ErrRestaurantNotFound) {
			// retrying cannot help an unknown restaurant, drop the request
			log.Warn().Stringer("saga_id", request.SagaID).Stringer("restaurant_id", request.RestaurantID).
				Msg("restaurant: unknown restaurant in request, dropping")
			return nil
		}
		return fmt.Errorf("restaurant: failed to process request for saga %s: %w", request.SagaID, err)
	}
	return nil
}

// findRestaurant loads the menu rows for the requested products and merges
// in the requested quantities. A product unknown to the restaurant comes
// back unavailable so the domain rules reject it.
func (p *Processor) findRestaurant(ctx context.Context, request Request) (*Restaurant, error) {
	productIDs := make([]uuid.UUID, 0, len(request.Products))
	for _, rp := range request.Products {
		productIDs = append(productIDs, rp.ID)
	}

	restaurant, err := p.restaurants.FindByID(ctx, request.RestaurantID, productIDs)
	if err != nil {
		return nil, err
	}

	menu := make(map[uuid.UUID]Product, len(restaurant.OrderDetail.Products))
	for _, mp := range restaurant.OrderDetail.Products {
		menu[mp.ID] = mp
	}

	products := make([]Product, 0, len(request.Products))
	for _, rp := range request.Products {
		product := Product{ID: rp.ID, Quantity: rp.Quantity}
		if mp, ok := menu[rp.ID]; ok {
			product.Name = mp.Name
			product.Price = mp.Price
			product.Available = mp.Available
		}
		products = append(products, product)
	}

	restaurant.OrderDetail = OrderDetail{
		ID:          request.OrderID,
		Products:    products,
		TotalAmount: request.Price,
		Status:      domain.OrderStatusPaid,
	}
	return restaurant, nil
}

// alreadyProcessed is the consumer-side idempotency gate: any recorded
// decision for this saga means the request was handled before.
func (p *Processor) alreadyProcessed(ctx context.Context, sagaID uuid.UUID) (bool, error) {
	_, err := p.responseOutbox.BySagaAndStatuses(ctx, sagaID,
		outbox.SagaStatusSucceeded, outbox.SagaStatusCompensating)
	if err != nil {
		if errors.Is(err, outbox.ErrMessageNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func sagaStatusForEvent(kind EventKind) outbox.SagaStatus {
	if kind == EventApproved {
		return outbox.SagaStatusSucceeded
	}
	return outbox.SagaStatusCompensating
}
