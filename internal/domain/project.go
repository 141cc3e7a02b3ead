package domain

import (
	"time"

	"github.com/google/uuid"
)

type ProjectRole string

const (
	ProjectRoleOwner   ProjectRole = "OWNER"
	ProjectRoleManager ProjectRole = "MANAGER"
	ProjectRoleMember  ProjectRole = "MEMBER"
)

func (r ProjectRole) IsValid() bool {
	switch r {
	case ProjectRoleOwner, ProjectRoleManager, ProjectRoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role may create channels and administer them implicitly.
func (r ProjectRole) CanManage() bool {
	return r == ProjectRoleOwner || r == ProjectRoleManager
}

type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// Joined field: the requesting user's role
	Role ProjectRole `json:"role,omitempty"`
}

type ProjectMember struct {
	ProjectID uuid.UUID   `json:"project_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      ProjectRole `json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`
	// Joined fields
	User *UserSummary `json:"user,omitempty"`
}
