package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/taskflow/internal/domain"
)

const channelColumns = `c.id, c.name, c.description, c.type, c.project_id, c.task_id, c.created_at, c.updated_at`

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) Create(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (id, name, description, type, project_id, task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		ch.ID, ch.Name, ch.Description, ch.Type, ch.ProjectID, ch.TaskID, ch.CreatedAt, ch.UpdatedAt,
	)
	return mapErr(err)
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	var ch domain.Channel
	err := conn(ctx, r.pool).QueryRow(ctx, "SELECT "+channelColumns+" FROM channels c WHERE c.id = $1", id).Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.Type, &ch.ProjectID, &ch.TaskID, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Channel, error) {
	return r.list(ctx, "SELECT "+channelColumns+" FROM channels c WHERE c.project_id = $1 ORDER BY c.created_at", projectID)
}

func (r *ChannelRepo) ListByProjectForMember(ctx context.Context, projectID, userID uuid.UUID) ([]domain.Channel, error) {
	query := "SELECT " + channelColumns + `
		FROM channels c
		JOIN channel_members cm ON c.id = cm.channel_id
		WHERE c.project_id = $1 AND cm.user_id = $2
		ORDER BY c.created_at`
	return r.list(ctx, query, projectID, userID)
}

func (r *ChannelRepo) ListProjectDefaults(ctx context.Context, projectID uuid.UUID) ([]domain.Channel, error) {
	query := "SELECT " + channelColumns + `
		FROM channels c
		WHERE c.project_id = $1 AND c.type IN ('PROJECT_GENERAL', 'ANNOUNCEMENTS')
		ORDER BY c.created_at`
	return r.list(ctx, query, projectID)
}

func (r *ChannelRepo) ListDirect(ctx context.Context, userID uuid.UUID) ([]domain.Channel, error) {
	query := "SELECT " + channelColumns + `
		FROM channels c
		JOIN channel_members cm ON c.id = cm.channel_id
		WHERE c.type = 'PRIVATE_DM' AND cm.user_id = $1
		ORDER BY c.updated_at DESC`
	return r.list(ctx, query, userID)
}

func (r *ChannelRepo) FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Channel, error) {
	query := "SELECT " + channelColumns + `
		FROM channels c
		WHERE c.type = 'PRIVATE_DM' AND c.project_id IS NULL
			AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id = c.id AND user_id = $1)
			AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id = c.id AND user_id = $2)
			AND (SELECT COUNT(*) FROM channel_members WHERE channel_id = c.id) = 2
		ORDER BY c.created_at
		LIMIT 1`
	var ch domain.Channel
	err := conn(ctx, r.pool).QueryRow(ctx, query, userA, userB).Scan(
		&ch.ID, &ch.Name, &ch.Description, &ch.Type, &ch.ProjectID, &ch.TaskID, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChannelRepo) AddMember(ctx context.Context, m *domain.ChannelMember) error {
	query := `INSERT INTO channel_members (channel_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`
	_, err := conn(ctx, r.pool).Exec(ctx, query, m.ChannelID, m.UserID, m.Role, m.JoinedAt)
	return mapErr(err)
}

func (r *ChannelRepo) EnsureMember(ctx context.Context, m *domain.ChannelMember) (bool, error) {
	query := `
		INSERT INTO channel_members (channel_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (channel_id, user_id) DO NOTHING`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, m.ChannelID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ChannelRepo) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error) {
	query := `SELECT channel_id, user_id, role, joined_at FROM channel_members WHERE channel_id = $1 AND user_id = $2`
	var m domain.ChannelMember
	err := conn(ctx, r.pool).QueryRow(ctx, query, channelID, userID).Scan(&m.ChannelID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ChannelRepo) ListMembers(ctx context.Context, channelID uuid.UUID) ([]domain.ChannelMember, error) {
	query := `
		SELECT cm.channel_id, cm.user_id, cm.role, cm.joined_at, u.email, u.name, u.avatar_url
		FROM channel_members cm
		JOIN users u ON cm.user_id = u.id
		WHERE cm.channel_id = $1
		ORDER BY cm.joined_at`

	rows, err := conn(ctx, r.pool).Query(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.ChannelMember
	for rows.Next() {
		var m domain.ChannelMember
		var u domain.UserSummary
		if err := rows.Scan(&m.ChannelID, &m.UserID, &m.Role, &m.JoinedAt, &u.Email, &u.Name, &u.AvatarURL); err != nil {
			return nil, err
		}
		u.ID = m.UserID
		m.User = &u
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ChannelRepo) RemoveMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2`, channelID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChannelRepo) RemoveFromProject(ctx context.Context, projectID, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		DELETE FROM channel_members cm
		USING channels c
		WHERE cm.channel_id = c.id AND c.project_id = $1 AND cm.user_id = $2
		RETURNING cm.channel_id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, projectID, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// LockDirectPair takes a transaction-scoped advisory lock keyed on the
// unordered user pair.
func (r *ChannelRepo) LockDirectPair(ctx context.Context, userA, userB uuid.UUID) error {
	a, b := userA.String(), userB.String()
	if b < a {
		a, b = b, a
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "dm:"+a+":"+b)
	return err
}

func (r *ChannelRepo) list(ctx context.Context, query string, args ...any) ([]domain.Channel, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.Type, &ch.ProjectID, &ch.TaskID,
			&ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
