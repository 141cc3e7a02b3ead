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

const invitationColumns = `i.id, i.project_id, i.invited_by_id, i.invited_user_email, i.status, i.created_at, i.updated_at, p.name`

type InvitationRepo struct {
	pool *pgxpool.Pool
}

func NewInvitationRepo(pool *pgxpool.Pool) *InvitationRepo {
	return &InvitationRepo{pool: pool}
}

func (r *InvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	query := `
		INSERT INTO invitations (id, project_id, invited_by_id, invited_user_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		inv.ID, inv.ProjectID, inv.InvitedByID, inv.InvitedUserEmail, inv.Status, inv.CreatedAt, inv.UpdatedAt,
	)
	return mapErr(err)
}

func (r *InvitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations i
		JOIN projects p ON i.project_id = p.id
		WHERE i.id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *InvitationRepo) GetPending(ctx context.Context, projectID uuid.UUID, email string) (*domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations i
		JOIN projects p ON i.project_id = p.id
		WHERE i.project_id = $1 AND i.invited_user_email = $2 AND i.status = 'PENDING'`
	return r.scanOne(ctx, query, projectID, email)
}

func (r *InvitationRepo) ListPendingByEmail(ctx context.Context, email string) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations i
		JOIN projects p ON i.project_id = p.id
		WHERE i.invited_user_email = $1 AND i.status = 'PENDING'
		ORDER BY i.created_at DESC`
	return r.list(ctx, query, email)
}

func (r *InvitationRepo) ListPendingByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM invitations i
		JOIN projects p ON i.project_id = p.id
		WHERE i.project_id = $1 AND i.status = 'PENDING'
		ORDER BY i.created_at DESC`
	return r.list(ctx, query, projectID)
}

func (r *InvitationRepo) Resolve(ctx context.Context, id uuid.UUID, status domain.InvitationStatus, at time.Time) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE invitations SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'PENDING'`,
		status, at, id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InvitationRepo) scanOne(ctx context.Context, query string, args ...any) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&inv.ID, &inv.ProjectID, &inv.InvitedByID, &inv.InvitedUserEmail,
		&inv.Status, &inv.CreatedAt, &inv.UpdatedAt, &inv.ProjectName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepo) list(ctx context.Context, query string, arg any) ([]domain.Invitation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []domain.Invitation
	for rows.Next() {
		var inv domain.Invitation
		if err := rows.Scan(&inv.ID, &inv.ProjectID, &inv.InvitedByID, &inv.InvitedUserEmail,
			&inv.Status, &inv.CreatedAt, &inv.UpdatedAt, &inv.ProjectName); err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
