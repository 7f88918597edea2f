package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// NotificationRepository persists alert records. Dedup correctness rests on
// CreateIfAbsent being a single conditional write, not a read-then-write.
type NotificationRepository interface {
	// CreateIfAbsent inserts the batch unless a notification of the same
	// (ticket, kind) already exists within the lookback window. All
	// notifications in one batch share a ticket and kind. Returns false
	// when the batch was suppressed as a duplicate.
	CreateIfAbsent(ctx context.Context, batch []domain.Notification, window time.Duration) (bool, error)
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.Notification, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the postgres-backed repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) CreateIfAbsent(ctx context.Context, batch []domain.Notification, window time.Duration) (bool, error) {
	if len(batch) == 0 {
		return false, nil
	}
	ticketID := batch[0].TicketID
	kind := batch[0].Kind

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The first insert is the dedup gate: the WHERE NOT EXISTS makes the
	// check-and-write atomic under concurrent passes. Remaining recipients
	// ride in the same transaction.
	const gated = `
        INSERT INTO notifications (id, ticket_id, user_id, kind, payload)
        SELECT $1, $2, $3, $4, $5
        WHERE NOT EXISTS (
            SELECT 1 FROM notifications
            WHERE ticket_id=$2 AND kind=$4 AND created_at > NOW() - make_interval(secs => $6)
        )`
	cmd, err := tx.Exec(ctx, gated,
		batch[0].ID, ticketID, batch[0].UserID, kind, batch[0].Payload, window.Seconds())
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}

	const plain = `
        INSERT INTO notifications (id, ticket_id, user_id, kind, payload)
        VALUES ($1,$2,$3,$4,$5)`
	for _, n := range batch[1:] {
		if _, err := tx.Exec(ctx, plain, n.ID, n.TicketID, n.UserID, n.Kind, n.Payload); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *notificationRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, ticket_id, user_id, kind, payload, created_at
        FROM notifications WHERE ticket_id=$1
        ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.TicketID, &n.UserID, &n.Kind, &n.Payload, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
