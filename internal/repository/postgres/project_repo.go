package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/taskflow/internal/domain"
)

type ProjectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	query := `
		INSERT INTO projects (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := conn(ctx, r.pool).Exec(ctx, query, p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM projects WHERE id = $1`
	var p domain.Project
	err := conn(ctx, r.pool).QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Project, error) {
	query := `
		SELECT p.id, p.name, p.description, p.created_at, p.updated_at, up.role
		FROM projects p
		JOIN user_projects up ON p.id = up.project_id
		WHERE up.user_id = $1
		ORDER BY p.created_at`

	rows, err := conn(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.Role); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	query := `UPDATE projects SET name = $1, description = $2, updated_at = $3 WHERE id = $4`
	_, err := conn(ctx, r.pool).Exec(ctx, query, p.Name, p.Description, p.UpdatedAt, p.ID)
	return err
}

func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

func (r *ProjectRepo) AddMember(ctx context.Context, m *domain.ProjectMember) error {
	query := `INSERT INTO user_projects (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`
	_, err := conn(ctx, r.pool).Exec(ctx, query, m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	return mapErr(err)
}

func (r *ProjectRepo) EnsureMember(ctx context.Context, m *domain.ProjectMember) (bool, error) {
	query := `
		INSERT INTO user_projects (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, project_id) DO NOTHING`
	tag, err := conn(ctx, r.pool).Exec(ctx, query, m.ProjectID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ProjectRepo) GetMember(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error) {
	query := `SELECT project_id, user_id, role, joined_at FROM user_projects WHERE project_id = $1 AND user_id = $2`
	var m domain.ProjectMember
	err := conn(ctx, r.pool).QueryRow(ctx, query, projectID, userID).Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ProjectRepo) ListMembers(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	query := `
		SELECT up.project_id, up.user_id, up.role, up.joined_at, u.email, u.name, u.avatar_url
		FROM user_projects up
		JOIN users u ON up.user_id = u.id
		WHERE up.project_id = $1
		ORDER BY up.joined_at`

	rows, err := conn(ctx, r.pool).Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		var u domain.UserSummary
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt, &u.Email, &u.Name, &u.AvatarURL); err != nil {
			return nil, err
		}
		u.ID = m.UserID
		m.User = &u
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ProjectRepo) UpdateMemberRole(ctx context.Context, projectID, userID uuid.UUID, role domain.ProjectRole) error {
	query := `UPDATE user_projects SET role = $1 WHERE project_id = $2 AND user_id = $3`
	_, err := conn(ctx, r.pool).Exec(ctx, query, role, projectID, userID)
	return err
}

func (r *ProjectRepo) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM user_projects WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LockOwners must run inside a transaction. A concurrent demotion waits on
// the row locks and then sees the committed roles.
func (r *ProjectRepo) LockOwners(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM user_projects
		WHERE project_id = $1 AND role = 'OWNER'
		ORDER BY user_id
		FOR UPDATE`

	rows, err := conn(ctx, r.pool).Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *ProjectRepo) ListManagerIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM user_projects
		WHERE project_id = $1 AND role IN ('OWNER', 'MANAGER')
		ORDER BY joined_at`

	rows, err := conn(ctx, r.pool).Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
