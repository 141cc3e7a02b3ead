package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/taskflow/internal/domain"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, body, link, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.Link, n.CreatedAt, n.ReadAt,
	)
	return mapErr(err)
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, type, title, body, link, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := conn(ctx, r.pool).Query(ctx, query, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []domain.Notification{}
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Link, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, $1) WHERE id = $2 AND user_id = $3`,
		at, id, userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL`, at, userID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
