package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/taskflow/internal/domain"
)

const userColumns = `id, email, name, password_hash, avatar_url, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
	)
	return mapErr(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.scanUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := conn(ctx, r.pool).QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type RefreshTokenRepo struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepo(pool *pgxpool.Pool) *RefreshTokenRepo {
	return &RefreshTokenRepo{pool: pool}
}

func (r *RefreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (token, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`
	_, err := conn(ctx, r.pool).Exec(ctx, query, t.Token, t.UserID, t.ExpiresAt, t.CreatedAt)
	return mapErr(err)
}

func (r *RefreshTokenRepo) Get(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `SELECT token, user_id, expires_at, created_at FROM refresh_tokens WHERE token = $1`
	var t domain.RefreshToken
	err := conn(ctx, r.pool).QueryRow(ctx, query, token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Delete(ctx context.Context, token string) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
