package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChannelType string

const (
	ChannelTypeProjectGeneral ChannelType = "PROJECT_GENERAL"
	ChannelTypeTaskSpecific   ChannelType = "TASK_SPECIFIC"
	ChannelTypeAnnouncements  ChannelType = "ANNOUNCEMENTS"
	ChannelTypePrivateDM      ChannelType = "PRIVATE_DM"
)

func (t ChannelType) IsValid() bool {
	switch t {
	case ChannelTypeProjectGeneral, ChannelTypeTaskSpecific, ChannelTypeAnnouncements, ChannelTypePrivateDM:
		return true
	}
	return false
}

// IsProjectDefault reports whether new project members are enrolled in channels of this type.
func (t ChannelType) IsProjectDefault() bool {
	return t == ChannelTypeProjectGeneral || t == ChannelTypeAnnouncements
}

// CheckShape validates the project/task references a channel of this type must carry.
func (t ChannelType) CheckShape(projectID, taskID *uuid.UUID) error {
	switch t {
	case ChannelTypeTaskSpecific:
		if projectID == nil || taskID == nil {
			return NewError(ErrBadRequest, "TASK_SPECIFIC channels require project_id and task_id")
		}
	case ChannelTypeProjectGeneral, ChannelTypeAnnouncements:
		if projectID == nil {
			return NewError(ErrBadRequest, string(t)+" channels require project_id")
		}
		if taskID != nil {
			return NewError(ErrBadRequest, string(t)+" channels cannot reference a task")
		}
	case ChannelTypePrivateDM:
		if taskID != nil {
			return NewError(ErrBadRequest, "PRIVATE_DM channels cannot reference a task")
		}
	default:
		return NewError(ErrBadRequest, "invalid channel type")
	}
	return nil
}

type ChannelRole string

const (
	ChannelRoleAdmin  ChannelRole = "ADMIN"
	ChannelRoleMember ChannelRole = "MEMBER"
)

func (r ChannelRole) IsValid() bool {
	return r == ChannelRoleAdmin || r == ChannelRoleMember
}

type Channel struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	Type        ChannelType `json:"type"`
	ProjectID   *uuid.UUID  `json:"project_id,omitempty"`
	TaskID      *uuid.UUID  `json:"task_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type ChannelMember struct {
	ChannelID uuid.UUID   `json:"channel_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      ChannelRole `json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`
	// Joined fields
	User *UserSummary `json:"user,omitempty"`
}
