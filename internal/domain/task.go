package domain

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type Task struct {
	ID          uuid.UUID        `json:"id"`
	ProjectID   uuid.UUID        `json:"project_id"`
	Title       string           `json:"title"`
	Description *string          `json:"description,omitempty"`
	Status      TaskStatus       `json:"status"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Assignments []TaskAssignment `json:"assignments"`
}

type TaskAssignment struct {
	TaskID     uuid.UUID `json:"task_id"`
	UserID     uuid.UUID `json:"user_id"`
	Note       *string   `json:"note,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
	// Joined fields
	User *UserSummary `json:"user,omitempty"`
}

type ProjectRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// UserTask is a task as seen from one assignee's task list.
type UserTask struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Project     ProjectRef `json:"project"`
	Note        *string    `json:"note,omitempty"`
	AssignedAt  time.Time  `json:"assigned_at"`
}
