package domain

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
)

func (s InvitationStatus) IsValid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined:
		return true
	}
	return false
}

type Invitation struct {
	ID               uuid.UUID        `json:"id"`
	ProjectID        uuid.UUID        `json:"project_id"`
	InvitedByID      uuid.UUID        `json:"invited_by_id"`
	InvitedUserEmail string           `json:"invited_user_email"`
	Status           InvitationStatus `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Joined field for the invitee's inbox
	ProjectName string `json:"project_name,omitempty"`
}
