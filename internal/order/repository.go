package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
)

// Repository persists order aggregates.
type Repository interface {
	Save(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByTrackingID(ctx context.Context, trackingID uuid.UUID) (*domain.Order, error)
}

// CustomerRepository checks command preconditions against the local customer
// replica.
type CustomerRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// RestaurantRepository loads the restaurant view used to confirm product
// prices.
type RestaurantRepository interface {
	FindInfo(ctx context.Context, restaurantID uuid.UUID, productIDs []uuid.UUID) (*Restaurant, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Save(ctx context.Context, order *domain.Order) error {
	q := db.QuerierFrom(ctx, r.pool)
	now := time.Now().UTC()

	queryOrder := `
		INSERT INTO orders (id, customer_id, restaurant_id, tracking_id, price, status, failure_messages,
			street, postal_code, city, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.Exec(ctx, queryOrder,
		order.ID, order.CustomerID, order.RestaurantID, order.TrackingID,
		order.Price.String(), string(order.Status), order.FailureMessages,
		order.DeliveryAddress.Street, order.DeliveryAddress.PostalCode, order.DeliveryAddress.City,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order %s: %w", order.ID, err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, product_name, price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, item := range order.Items {
		_, err = q.Exec(ctx, queryItem,
			item.ID, order.ID, item.Product.ID, item.Product.Name,
			item.Price.String(), item.Quantity, item.Subtotal.String(),
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", order.ID, err)
		}
	}

	return nil
}

func (r *postgresRepository) Update(ctx context.Context, order *domain.Order) error {
	q := db.QuerierFrom(ctx, r.pool)

	query := `
		UPDATE orders
		SET status = $1, failure_messages = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := q.Exec(ctx, query,
		string(order.Status), order.FailureMessages, time.Now().UTC(), order.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update order %s: %w", order.ID, err)
	}
	if tag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", order.ID).Msg("repository: order not found for update")
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

func (r *postgresRepository) FindByTrackingID(ctx context.Context, trackingID uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, `WHERE tracking_id = $1`, trackingID)
}

func (r *postgresRepository) findOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	q := db.QuerierFrom(ctx, r.pool)

	query := `
		SELECT id, customer_id, restaurant_id, tracking_id, price, status, failure_messages,
			street, postal_code, city
		FROM orders ` + where

	var (
		order domain.Order
		price string
	)
	err := q.QueryRow(ctx, query, arg).Scan(
		&order.ID, &order.CustomerID, &order.RestaurantID, &order.TrackingID,
		&price, &order.Status, &order.FailureMessages,
		&order.DeliveryAddress.Street, &order.DeliveryAddress.PostalCode, &order.DeliveryAddress.City,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order: %w", err)
	}

	if order.Price, err = domain.NewMoneyFromString(price); err != nil {
		return nil, fmt.Errorf("repository: invalid price for order %s: %w", order.ID, err)
	}

	items, err := r.findItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *postgresRepository) findItems(ctx context.Context, q db.Querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, price, quantity, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			item            domain.OrderItem
			price, subtotal string
		)
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.Product.ID, &item.Product.Name,
			&price, &item.Quantity, &subtotal,
		); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		if item.Price, err = domain.NewMoneyFromString(price); err != nil {
			return nil, fmt.Errorf("repository: invalid item price for order %s: %w", orderID, err)
		}
		if item.Subtotal, err = domain.NewMoneyFromString(subtotal); err != nil {
			return nil, fmt.Errorf("repository: invalid item subtotal for order %s: %w", orderID, err)
		}
		item.Product.Price = item.Price
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}

	return items, nil
}

type postgresCustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &postgresCustomerRepository{pool: pool}
}

func (r *postgresCustomerRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q := db.QuerierFrom(ctx, r.pool)

	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check customer %s: %w", id, err)
	}
	return exists, nil
}

type postgresRestaurantRepository struct {
	pool *pgxpool.Pool
}

func NewRestaurantRepository(pool *pgxpool.Pool) RestaurantRepository {
	return &postgresRestaurantRepository{pool: pool}
}

func (r *postgresRestaurantRepository) FindInfo(ctx context.Context, restaurantID uuid.UUID, productIDs []uuid.UUID) (*Restaurant, error) {
	q := db.QuerierFrom(ctx, r.pool)

	restaurant := Restaurant{ID: restaurantID}
	err := q.QueryRow(ctx, `SELECT active FROM restaurants WHERE id = $1`, restaurantID).Scan(&restaurant.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("repository: failed to select restaurant %s: %w", restaurantID, err)
	}

	query := `
		SELECT product_id, name, price
		FROM restaurant_products
		WHERE restaurant_id = $1 AND product_id = ANY($2)
	`
	rows, err := q.Query(ctx, query, restaurantID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products for restaurant %s: %w", restaurantID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			product domain.Product
			price   string
		)
		if err := rows.Scan(&product.ID, &product.Name, &price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product for restaurant %s: %w", restaurantID, err)
		}
		if product.Price, err = domain.NewMoneyFromString(price); err != nil {
			return nil, fmt.Errorf("repository: invalid product price for restaurant %s: %w", restaurantID, err)
		}
		restaurant.Products = append(restaurant.Products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products for restaurant %s: %w", restaurantID, err)
	}

	return &restaurant, nil
}
