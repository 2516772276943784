package restaurant

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/food-ordering/saga-go/internal/db"
	"github.com/food-ordering/saga-go/internal/domain"
)

var ErrRestaurantNotFound = errors.New("restaurant not found")

type Repository interface {
	// FindByID loads the restaurant with the menu rows matching the given
	// product ids. Products the restaurant does not carry are absent from
	// the result.
	FindByID(ctx context.Context, restaurantID uuid.UUID, productIDs []uuid.UUID) (*Restaurant, error)
}

type ApprovalRepository interface {
	Save(ctx context.Context, approval OrderApproval) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) FindByID(ctx context.Context, restaurantID uuid.UUID, productIDs []uuid.UUID) (*Restaurant, error) {
	q := db.QuerierFrom(ctx, r.pool)

	restaurant := &Restaurant{ID: restaurantID}
	err := q.QueryRow(ctx,
		`SELECT active FROM restaurants WHERE id = $1`, restaurantID,
	).Scan(&restaurant.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("repository: failed to select restaurant %s: %w", restaurantID, err)
	}

	query := `
		SELECT product_id, name, price, available
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
			p     Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Available); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product for restaurant %s: %w", restaurantID, err)
		}
		if p.Price, err = domain.NewMoneyFromString(price); err != nil {
			return nil, fmt.Errorf("repository: invalid product price for restaurant %s: %w", restaurantID, err)
		}
		restaurant.OrderDetail.Products = append(restaurant.OrderDetail.Products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating products for restaurant %s: %w", restaurantID, err)
	}

	return restaurant, nil
}

type postgresApprovalRepository struct {
	pool *pgxpool.Pool
}

func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &postgresApprovalRepository{pool: pool}
}

func (r *postgresApprovalRepository) Save(ctx context.Context, approval OrderApproval) error {
	q := db.QuerierFrom(ctx, r.pool)

	query := `
		INSERT INTO order_approvals (id, restaurant_id, order_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.Exec(ctx, query,
		approval.ID, approval.RestaurantID, approval.OrderID,
		string(approval.Status), approval.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order approval %s: %w", approval.ID, err)
	}
	return nil
}
