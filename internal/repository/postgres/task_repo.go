package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/taskflow/internal/domain"
)

const taskColumns = `id, project_id, title, description, status, due_date, created_at, updated_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	query := `
		INSERT INTO tasks (id, project_id, title, description, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, r.pool).Exec(ctx, query,
		t.ID, t.ProjectID, t.Title, t.Description, t.Status, t.DueDate, t.CreatedAt, t.UpdatedAt,
	)
	return mapErr(err)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var t domain.Task
	err := conn(ctx, r.pool).QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id).Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID, status *domain.TaskStatus) ([]domain.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE project_id = $1 AND ($2::text IS NULL OR status = $2) ORDER BY created_at"

	rows, err := conn(ctx, r.pool).Query(ctx, query, projectID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	query := `UPDATE tasks SET title = $1, description = $2, status = $3, due_date = $4, updated_at = $5 WHERE id = $6`
	_, err := conn(ctx, r.pool).Exec(ctx, query, t.Title, t.Description, t.Status, t.DueDate, t.UpdatedAt, t.ID)
	return err
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

func (r *TaskRepo) UpsertAssignment(ctx context.Context, a *domain.TaskAssignment) error {
	query := `
		INSERT INTO task_assignments (task_id, user_id, note, assigned_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id, user_id) DO UPDATE SET note = EXCLUDED.note`
	_, err := conn(ctx, r.pool).Exec(ctx, query, a.TaskID, a.UserID, a.Note, a.AssignedAt)
	return err
}

func (r *TaskRepo) DeleteAssignment(ctx context.Context, taskID, userID uuid.UUID) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM task_assignments WHERE task_id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TaskRepo) ListAssignments(ctx context.Context, taskID uuid.UUID) ([]domain.TaskAssignment, error) {
	query := `
		SELECT ta.task_id, ta.user_id, ta.note, ta.assigned_at, u.email, u.name, u.avatar_url
		FROM task_assignments ta
		JOIN users u ON ta.user_id = u.id
		WHERE ta.task_id = $1
		ORDER BY ta.assigned_at`

	rows, err := conn(ctx, r.pool).Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := []domain.TaskAssignment{}
	for rows.Next() {
		var a domain.TaskAssignment
		var u domain.UserSummary
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.Note, &a.AssignedAt, &u.Email, &u.Name, &u.AvatarURL); err != nil {
			return nil, err
		}
		u.ID = a.UserID
		a.User = &u
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *TaskRepo) ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]domain.UserTask, error) {
	query := `
		SELECT t.id, t.title, t.description, t.status, t.due_date, t.created_at, t.updated_at,
			p.id, p.name, ta.note, ta.assigned_at
		FROM task_assignments ta
		JOIN tasks t ON ta.task_id = t.id
		JOIN projects p ON t.project_id = p.id
		WHERE ta.user_id = $1
		ORDER BY t.due_date NULLS LAST, t.created_at`

	rows, err := conn(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.UserTask
	for rows.Next() {
		var t domain.UserTask
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.DueDate, &t.CreatedAt, &t.UpdatedAt,
			&t.Project.ID, &t.Project.Name, &t.Note, &t.AssignedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
