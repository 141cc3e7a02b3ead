package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/taskflow/internal/domain"
)

const messageColumns = `m.id, m.channel_id, m.author_id, m.content, m.edited_at, m.deleted_at, m.created_at, m.updated_at,
	u.email, u.name, u.avatar_url`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Content, msg.CreatedAt, msg.UpdatedAt,
	)
	return mapErr(err)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.id = $1 AND m.deleted_at IS NULL`
	msg, err := scanMessage(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListByChannel pages oldest-first.
func (r *MessageRepo) ListByChannel(ctx context.Context, channelID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON m.author_id = u.id
		WHERE m.channel_id = $1 AND m.deleted_at IS NULL
		ORDER BY m.seq
		LIMIT $2 OFFSET $3`

	rows, err := conn(ctx, r.pool).Query(ctx, query, channelID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *MessageRepo) CountByChannel(ctx context.Context, channelID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE channel_id = $1 AND deleted_at IS NULL`, channelID,
	).Scan(&n)
	return n, err
}

func (r *MessageRepo) Update(ctx context.Context, msg *domain.Message) error {
	query := `UPDATE messages SET content = $1, edited_at = $2, updated_at = $3 WHERE id = $4`
	_, err := conn(ctx, r.pool).Exec(ctx, query, msg.Content, msg.EditedAt, msg.UpdatedAt, msg.ID)
	return err
}

func (r *MessageRepo) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `UPDATE messages SET deleted_at = $1 WHERE id = $2`, at, id)
	return err
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var author domain.UserSummary
	if err := row.Scan(
		&msg.ID, &msg.ChannelID, &msg.AuthorID, &msg.Content, &msg.EditedAt, &msg.DeletedAt,
		&msg.CreatedAt, &msg.UpdatedAt, &author.Email, &author.Name, &author.AvatarURL,
	); err != nil {
		return nil, err
	}
	author.ID = msg.AuthorID
	msg.Author = &author
	return &msg, nil
}
