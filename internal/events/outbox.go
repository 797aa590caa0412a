package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is the slice of pgx needed to append a row. Pools and open
// transactions both satisfy it, so an append can join the caller's
// transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Querier interface {
	Execer
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Append writes one notification request. The ID is assigned here when
// unset; created_at is assigned by the database.
func Append(ctx context.Context, db Execer, n *NotificationRequest) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	_, err := db.Exec(ctx, `
		INSERT INTO notification_requests (id, event_type, recipient_id, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, n.ID, n.EventType, n.RecipientID, n.AppointmentID, n.Payload)
	if err != nil {
		return fmt.Errorf("append notification request: %w", err)
	}

	return nil
}

// PgOutbox reads and settles pending notification requests.
type PgOutbox struct {
	db Querier
}

func NewPgOutbox(pool *pgxpool.Pool) *PgOutbox {
	return &PgOutbox{db: pool}
}

func NewPgOutboxWithQuerier(q Querier) *PgOutbox {
	return &PgOutbox{db: q}
}

func (o *PgOutbox) ListPending(ctx context.Context, limit int) ([]NotificationRequest, error) {
	rows, err := o.db.Query(ctx, `
		SELECT id, event_type, recipient_id, appointment_id, payload, created_at, delivered_at
		FROM notification_requests
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var result []NotificationRequest
	for rows.Next() {
		var n NotificationRequest
		err := rows.Scan(
			&n.ID,
			&n.EventType,
			&n.RecipientID,
			&n.AppointmentID,
			&n.Payload,
			&n.CreatedAt,
			&n.DeliveredAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (o *PgOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := o.db.Exec(ctx, `
		UPDATE notification_requests
		SET delivered_at = now()
		WHERE id = $1
		  AND delivered_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}

	return nil
}
