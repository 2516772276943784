package payment

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

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrCreditEntryNotFound = errors.New("credit entry not found")
)

type Repository interface {
	Save(ctx context.Context, payment *Payment) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	UpdateStatus(ctx context.Context, payment *Payment) error
}

type CreditEntryRepository interface {
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) (*CreditEntry, error)
	Update(ctx context.Context, entry *CreditEntry) error
}

type CreditHistoryRepository interface {
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]CreditHistory, error)
	Save(ctx context.Context, history CreditHistory) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Save(ctx context.Context, payment *Payment) error {
	q := db.QuerierFrom(ctx, r.pool)

	query := `
		INSERT INTO payments (id, order_id, customer_id, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.Exec(ctx, query,
		payment.ID, payment.OrderID, payment.CustomerID,
		payment.Price.String(), string(payment.Status), payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert payment %s: %w", payment.ID, err)
	}
	return nil
}

func (r *postgresRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	q := db.QuerierFrom(ctx, r.pool)

	var (
		payment Payment
		price   string
	)
	query := `
		SELECT id, order_id, customer_id, price, status, created_at
		FROM payments
		WHERE order_id = $1
	`
	err := q.QueryRow(ctx, query, orderID).Scan(
		&payment.ID, &payment.OrderID, &payment.CustomerID,
		&price, &payment.Status, &payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment for order %s: %w", orderID, err)
	}

	if payment.Price, err = domain.NewMoneyFromString(price); err != nil {
		return nil, fmt.Errorf("repository: invalid payment price for order %s: %w", orderID, err)
	}
	return &payment, nil
}

func (r *postgresRepository) UpdateStatus(ctx context.Context, payment *Payment) error {
	q := db.QuerierFrom(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2`,
		string(payment.Status), payment.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update payment %s: %w", payment.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

type postgresCreditEntryRepository struct {
	pool *pgxpool.Pool
}

func NewCreditEntryRepository(pool *pgxpool.Pool) CreditEntryRepository {
	return &postgresCreditEntryRepository{pool: pool}
}

func (r *postgresCreditEntryRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) (*CreditEntry, error) {
	q := db.QuerierFrom(ctx, r.pool)

	var (
		entry  CreditEntry
		amount string
	)
	// locked for the duration of the surrounding transaction so two
	// concurrent payments cannot both read the same balance
	query := `
		SELECT id, customer_id, total_credit_amount
		FROM credit_entries
		WHERE customer_id = $1
		FOR UPDATE
	`
	err := q.QueryRow(ctx, query, customerID).Scan(&entry.ID, &entry.CustomerID, &amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCreditEntryNotFound
		}
		return nil, fmt.Errorf("repository: failed to select credit entry for customer %s: %w", customerID, err)
	}

	if entry.TotalCreditAmount, err = domain.NewMoneyFromString(amount); err != nil {
		return nil, fmt.Errorf("repository: invalid credit amount for customer %s: %w", customerID, err)
	}
	return &entry, nil
}

func (r *postgresCreditEntryRepository) Update(ctx context.Context, entry *CreditEntry) error {
	q := db.QuerierFrom(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE credit_entries SET total_credit_amount = $1 WHERE id = $2`,
		entry.TotalCreditAmount.String(), entry.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update credit entry %s: %w", entry.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCreditEntryNotFound
	}
	return nil
}

type postgresCreditHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewCreditHistoryRepository(pool *pgxpool.Pool) CreditHistoryRepository {
	return &postgresCreditHistoryRepository{pool: pool}
}

func (r *postgresCreditHistoryRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]CreditHistory, error) {
	q := db.QuerierFrom(ctx, r.pool)

	query := `
		SELECT id, customer_id, amount, type
		FROM credit_histories
		WHERE customer_id = $1
		ORDER BY created_at
	`
	rows, err := q.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query credit histories for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	var histories []CreditHistory
	for rows.Next() {
		var (
			h      CreditHistory
			amount string
		)
		if err := rows.Scan(&h.ID, &h.CustomerID, &amount, &h.Type); err != nil {
			return nil, fmt.Errorf("repository: failed to scan credit history for customer %s: %w", customerID, err)
		}
		if h.Amount, err = domain.NewMoneyFromString(amount); err != nil {
			return nil, fmt.Errorf("repository: invalid credit history amount for customer %s: %w", customerID, err)
		}
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating credit histories for customer %s: %w", customerID, err)
	}

	return histories, nil
}

func (r *postgresCreditHistoryRepository) Save(ctx context.Context, history CreditHistory) error {
	q := db.QuerierFrom(ctx, r.pool)

	query := `
		INSERT INTO credit_histories (id, customer_id, amount, type, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	_, err := q.Exec(ctx, query, history.ID, history.CustomerID, history.Amount.String(), string(history.Type))
	if err != nil {
		return fmt.Errorf("repository: failed to insert credit history %s: %w", history.ID, err)
	}
	return nil
}
