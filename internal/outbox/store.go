package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/food-ordering/saga-go/internal/db"
)

var (
	// ErrMessageNotFound signals an absent gate row: the caller treats the
	// inbound message as a duplicate of one already processed.
	ErrMessageNotFound = errors.New("outbox message not found")
	// ErrConcurrentModification signals a lost optimistic-concurrency race:
	// another worker already advanced the row.
	ErrConcurrentModification = errors.New("outbox message was modified concurrently")
	// ErrNothingSaved signals a write that reported no saved row.
	ErrNothingSaved = errors.New("outbox message was not saved")
)

// Store is the durable record of events that must be delivered. One store
// instance is bound to one outbox table (one flow).
type Store interface {
	// Save upserts the message and increments its version. A lost version
	// race or a violated (type, saga_id, saga_status) unique constraint
	// returns ErrConcurrentModification.
	Save(ctx context.Context, msg *Message) error
	// FindBySagaAndStatuses returns the single live row for a saga instance
	// in one of the given saga statuses, or ErrMessageNotFound.
	FindBySagaAndStatuses(ctx context.Context, msgType string, sagaID uuid.UUID, statuses ...SagaStatus) (*Message, error)
	// FindByStatuses is the scheduler's polling query; limit bounds one
	// poll pass.
	FindByStatuses(ctx context.Context, msgType string, outboxStatus Status, limit int, statuses ...SagaStatus) ([]Message, error)
	// DeleteByStatuses bulk-removes terminal rows.
	DeleteByStatuses(ctx context.Context, msgType string, outboxStatus Status, statuses ...SagaStatus) error
}

// PostgresStore implements Store over one outbox table. The snapshot column
// name differs per flow (order_status on the order side, payment_status on the
// order-response side), so it is part of the store configuration.
type PostgresStore struct {
	pool           *pgxpool.Pool
	table          string
	snapshotColumn string
}

func NewPostgresStore(pool *pgxpool.Pool, table, snapshotColumn string) *PostgresStore {
	return &PostgresStore{pool: pool, table: table, snapshotColumn: snapshotColumn}
}

func (s *PostgresStore) Save(ctx context.Context, msg *Message) error {
	q := db.QuerierFrom(ctx, s.pool)

	if msg.Version == 0 {
		return s.insert(ctx, q, msg)
	}
	return s.update(ctx, q, msg)
}

func (s *PostgresStore) insert(ctx context.Context, q db.Querier, msg *Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, saga_id, type, created_at, processed_at, payload, %s, saga_status, outbox_status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
	`, s.table, s.snapshotColumn)

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := q.Exec(ctx, query,
		msg.ID, msg.SagaID, msg.Type, createdAt, msg.ProcessedAt, msg.Payload,
		msg.AggregateStatus, string(msg.SagaStatus), string(msg.OutboxStatus),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// another worker already created the row for this
			// (type, saga_id, saga_status); the gate held
			return fmt.Errorf("outbox: %w: %s saga %s", ErrConcurrentModification, msg.Type, msg.SagaID)
		}
		return fmt.Errorf("outbox: failed to insert message %s: %w", msg.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox: %w: message %s", ErrNothingSaved, msg.ID)
	}

	msg.CreatedAt = createdAt
	msg.Version = 1
	return nil
}

func (s *PostgresStore) update(ctx context.Context, q db.Querier, msg *Message) error {
	// explicit compare-and-swap on the version column; zero rows affected
	// means another worker won the race
	query := fmt.Sprintf(`
		UPDATE %s
		SET processed_at = $1, payload = $2, %s = $3, saga_status = $4, outbox_status = $5, version = version + 1
		WHERE id = $6 AND version = $7
	`, s.table, s.snapshotColumn)

	tag, err := q.Exec(ctx, query,
		msg.ProcessedAt, msg.Payload, msg.AggregateStatus,
		string(msg.SagaStatus), string(msg.OutboxStatus),
		msg.ID, msg.Version,
	)
	if err != nil {
		return fmt.Errorf("outbox: failed to update message %s: %w", msg.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox: %w: message %s version %d", ErrConcurrentModification, msg.ID, msg.Version)
	}

	msg.Version++
	return nil
}

func (s *PostgresStore) FindBySagaAndStatuses(ctx context.Context, msgType string, sagaID uuid.UUID, statuses ...SagaStatus) (*Message, error) {
	q := db.QuerierFrom(ctx, s.pool)

	query := fmt.Sprintf(`
		SELECT id, saga_id, type, created_at, processed_at, payload, %s, saga_status, outbox_status, version
		FROM %s
		WHERE type = $1 AND saga_id = $2 AND saga_status = ANY($3)
	`, s.snapshotColumn, s.table)

	var msg Message
	err := q.QueryRow(ctx, query, msgType, sagaID, sagaStatusStrings(statuses)).Scan(
		&msg.ID, &msg.SagaID, &msg.Type, &msg.CreatedAt, &msg.ProcessedAt, &msg.Payload,
		&msg.AggregateStatus, &msg.SagaStatus, &msg.OutboxStatus, &msg.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("outbox: failed to select message for saga %s: %w", sagaID, err)
	}

	return &msg, nil
}

func (s *PostgresStore) FindByStatuses(ctx context.Context, msgType string, outboxStatus Status, limit int, statuses ...SagaStatus) ([]Message, error) {
	q := db.QuerierFrom(ctx, s.pool)

	query := fmt.Sprintf(`
		SELECT id, saga_id, type, created_at, processed_at, payload, %s, saga_status, outbox_status, version
		FROM %s
		WHERE type = $1 AND outbox_status = $2 AND saga_status = ANY($3)
		ORDER BY created_at
		LIMIT $4
	`, s.snapshotColumn, s.table)

	rows, err := q.Query(ctx, query, msgType, string(outboxStatus), sagaStatusStrings(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: failed to query %s messages: %w", strings.ToLower(string(outboxStatus)), err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID, &msg.SagaID, &msg.Type, &msg.CreatedAt, &msg.ProcessedAt, &msg.Payload,
			&msg.AggregateStatus, &msg.SagaStatus, &msg.OutboxStatus, &msg.Version,
		); err != nil {
			return nil, fmt.Errorf("outbox: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: error iterating messages: %w", err)
	}

	return messages, nil
}

func (s *PostgresStore) DeleteByStatuses(ctx context.Context, msgType string, outboxStatus Status, statuses ...SagaStatus) error {
	q := db.QuerierFrom(ctx, s.pool)

	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE type = $1 AND outbox_status = $2 AND saga_status = ANY($3)
	`, s.table)

	if _, err := q.Exec(ctx, query, msgType, string(outboxStatus), sagaStatusStrings(statuses)); err != nil {
		return fmt.Errorf("outbox: failed to delete messages: %w", err)
	}
	return nil
}

func sagaStatusStrings(statuses []SagaStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, string(st))
	}
	return out
}
