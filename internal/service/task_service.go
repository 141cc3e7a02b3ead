package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

var (
	ErrTaskNotFound       = domain.NewError(domain.ErrNotFound, "task not found")
	ErrTitleRequired      = domain.NewError(domain.ErrBadRequest, "title is required")
	ErrInvalidTaskStatus  = domain.NewError(domain.ErrBadRequest, "status must be one of TODO, IN_PROGRESS, DONE")
	ErrAssigneeNotMember  = domain.NewError(domain.ErrBadRequest, "every assignee must be a member of the project")
	ErrNoAssignments      = domain.NewError(domain.ErrBadRequest, "at least one assignment is required")
	ErrAssignmentNotFound = domain.NewError(domain.ErrNotFound, "task assignment not found")
)

type TaskService struct {
	tx       repository.Transactor
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	access   *Access
	outbox   Outbox
}

func NewTaskService(
	tx repository.Transactor,
	tasks repository.TaskRepository,
	projects repository.ProjectRepository,
	access *Access,
	outbox Outbox,
) *TaskService {
	return &TaskService{
		tx:       tx,
		tasks:    tasks,
		projects: projects,
		access:   access,
		outbox:   outboxOrDiscard(outbox),
	}
}

type AssignmentInput struct {
	UserID uuid.UUID `json:"user_id"`
	Note   *string   `json:"note,omitempty"`
}

type CreateTaskInput struct {
	Title       string             `json:"title"`
	Description *string            `json:"description,omitempty"`
	Status      *domain.TaskStatus `json:"status,omitempty"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Assignments []AssignmentInput  `json:"assignments,omitempty"`
}

type UpdateTaskInput struct {
	Title        *string            `json:"title"`
	Description  *string            `json:"description"`
	Status       *domain.TaskStatus `json:"status"`
	DueDate      *time.Time         `json:"due_date"`
	ClearDueDate bool               `json:"clear_due_date"`
}

// Create stores a task and its initial assignments atomically. Any member may
// create a task; only an OWNER may create one with assignments.
func (s *TaskService) Create(ctx context.Context, userID, projectID uuid.UUID, input CreateTaskInput) (*domain.Task, error) {
	role, err := s.access.RequireProjectMember(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if len(input.Assignments) > 0 && role != domain.ProjectRoleOwner {
		return nil, ErrNotProjectOwner
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	status := domain.TaskStatusTodo
	if input.Status != nil {
		status = *input.Status
	}
	if !status.IsValid() {
		return nil, ErrInvalidTaskStatus
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       title,
		Description: input.Description,
		Status:      status,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	assignments := dedupeAssignments(input.Assignments)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireAssigneesInProject(ctx, projectID, assignments); err != nil {
			return err
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		return s.upsertAssignments(ctx, task.ID, assignments, now)
	})
	if err != nil {
		return nil, err
	}

	task.Assignments, err = s.tasks.ListAssignments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	s.notifyAssignees(task, assignments)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireProjectMember(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}

	task.Assignments, err = s.tasks.ListAssignments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) ListByProject(ctx context.Context, userID, projectID uuid.UUID, status *domain.TaskStatus) ([]domain.Task, error) {
	if status != nil && !status.IsValid() {
		return nil, ErrInvalidTaskStatus
	}
	if _, err := s.access.RequireProjectMember(ctx, userID, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByProject(ctx, projectID, status)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Assignments, err = s.tasks.ListAssignments(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (s *TaskService) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.UserTask, error) {
	tasks, err := s.tasks.ListAssignedTo(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.UserTask{}
	}
	return tasks, nil
}

func (s *TaskService) Update(ctx context.Context, userID, taskID uuid.UUID, input UpdateTaskInput) (*domain.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireProjectMember(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = input.Description
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, ErrInvalidTaskStatus
		}
		task.Status = *input.Status
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}

	task.Assignments, err = s.tasks.ListAssignments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID uuid.UUID) error {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.access.RequireProjectOwner(ctx, userID, task.ProjectID); err != nil {
		return err
	}
	return s.tasks.Delete(ctx, taskID)
}

// Assign adds or updates assignments. Re-assigning an existing assignee
// replaces the note and keeps a single row.
func (s *TaskService) Assign(ctx context.Context, userID, taskID uuid.UUID, input []AssignmentInput) (*domain.Task, error) {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireProjectOwner(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}
	assignments := dedupeAssignments(input)
	if len(assignments) == 0 {
		return nil, ErrNoAssignments
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requireAssigneesInProject(ctx, task.ProjectID, assignments); err != nil {
			return err
		}
		return s.upsertAssignments(ctx, task.ID, assignments, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	task.Assignments, err = s.tasks.ListAssignments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	s.notifyAssignees(task, assignments)
	return task, nil
}

func (s *TaskService) Unassign(ctx context.Context, userID, taskID, assigneeID uuid.UUID) error {
	task, err := s.load(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.access.RequireProjectOwner(ctx, userID, task.ProjectID); err != nil {
		return err
	}

	removed, err := s.tasks.DeleteAssignment(ctx, taskID, assigneeID)
	if err != nil {
		return fmt.Errorf("removing assignment: %w", err)
	}
	if !removed {
		return ErrAssignmentNotFound
	}
	return nil
}

func (s *TaskService) load(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) requireAssigneesInProject(ctx context.Context, projectID uuid.UUID, assignments []AssignmentInput) error {
	for _, a := range assignments {
		member, err := s.projects.GetMember(ctx, projectID, a.UserID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrAssigneeNotMember
		}
	}
	return nil
}

func (s *TaskService) upsertAssignments(ctx context.Context, taskID uuid.UUID, assignments []AssignmentInput, at time.Time) error {
	for _, a := range assignments {
		err := s.tasks.UpsertAssignment(ctx, &domain.TaskAssignment{
			TaskID:     taskID,
			UserID:     a.UserID,
			Note:       a.Note,
			AssignedAt: at,
		})
		if err != nil {
			return fmt.Errorf("assigning %s: %w", a.UserID, err)
		}
	}
	return nil
}

func (s *TaskService) notifyAssignees(task *domain.Task, assignments []AssignmentInput) {
	link := fmt.Sprintf("/projects/%s/tasks/%s", task.ProjectID, task.ID)
	for _, a := range assignments {
		recipient := a.UserID
		body := fmt.Sprintf("You were assigned to **%s**.", task.Title)
		if a.Note != nil && *a.Note != "" {
			body += "\n\n> " + *a.Note
		}
		s.outbox.Publish(domain.NotificationIntent{
			RecipientID: &recipient,
			SendEmail:   true,
			Type:        domain.NotificationTaskAssigned,
			Title:       "New task assignment: " + task.Title,
			Body:        body,
			Link:        &link,
		})
	}
}

// dedupeAssignments keeps one entry per user; the last note wins.
func dedupeAssignments(in []AssignmentInput) []AssignmentInput {
	index := make(map[uuid.UUID]int, len(in))
	out := make([]AssignmentInput, 0, len(in))
	for _, a := range in {
		if i, ok := index[a.UserID]; ok {
			out[i].Note = a.Note
			continue
		}
		index[a.UserID] = len(out)
		out = append(out, a)
	}
	return out
}
