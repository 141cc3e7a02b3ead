package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         *string   `json:"name,omitempty"`
	PasswordHash string    `json:"-"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName falls back to the email address for users without a name.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.AvatarURL}
}

// UserSummary is the public projection joined onto members, assignments and messages.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}

type RefreshToken struct {
	Token     string    `json:"-"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail trims and case-folds an address so invitations and
// accounts compare equal regardless of how the address was typed.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
