package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTaskAssigned       NotificationType = "TASK_ASSIGNED"
	NotificationInvitationSent     NotificationType = "INVITATION_SENT"
	NotificationInvitationAccepted NotificationType = "INVITATION_ACCEPTED"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Link      *string          `json:"link,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}

// NotificationIntent is what services hand to the outbox after a commit.
// RecipientID produces an in-app notification; SendEmail additionally mails
// Email, or the recipient's account address when Email is empty.
type NotificationIntent struct {
	RecipientID *uuid.UUID
	Email       string
	SendEmail   bool
	Type        NotificationType
	Title       string
	// Body is Markdown; the mailer renders it to HTML.
	Body string
	Link *string
}
