package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate key")

// Transactor runs fn in a transaction. Repository calls made with the ctx
// passed to fn join it; nested calls reuse the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	Get(ctx context.Context, token string) (*domain.RefreshToken, error)
	// Delete reports whether the token existed; concurrent rotations of one token see true once.
	Delete(ctx context.Context, token string) (bool, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, member *domain.ProjectMember) error
	// EnsureMember inserts the membership unless one exists and reports whether it inserted.
	EnsureMember(ctx context.Context, member *domain.ProjectMember) (bool, error)
	GetMember(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error)
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, userID uuid.UUID, role domain.ProjectRole) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	// LockOwners locks the project's OWNER rows until the transaction ends
	// and returns their user ids.
	LockOwners(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
	// ListManagerIDs returns the OWNER and MANAGER members of a project.
	ListManagerIDs(ctx context.Context, projectID uuid.UUID) ([]uuid.UUID, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, status *domain.TaskStatus) ([]domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpsertAssignment(ctx context.Context, assignment *domain.TaskAssignment) error
	DeleteAssignment(ctx context.Context, taskID, userID uuid.UUID) (bool, error)
	ListAssignments(ctx context.Context, taskID uuid.UUID) ([]domain.TaskAssignment, error)
	ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]domain.UserTask, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, invitation *domain.Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invitation, error)
	GetPending(ctx context.Context, projectID uuid.UUID, email string) (*domain.Invitation, error)
	ListPendingByEmail(ctx context.Context, email string) ([]domain.Invitation, error)
	ListPendingByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Invitation, error)
	// Resolve moves a PENDING invitation to status and reports whether it did.
	Resolve(ctx context.Context, id uuid.UUID, status domain.InvitationStatus, at time.Time) (bool, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, channel *domain.Channel) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.Channel, error)
	ListByProjectForMember(ctx context.Context, projectID, userID uuid.UUID) ([]domain.Channel, error)
	ListProjectDefaults(ctx context.Context, projectID uuid.UUID) ([]domain.Channel, error)
	ListDirect(ctx context.Context, userID uuid.UUID) ([]domain.Channel, error)
	FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Channel, error)
	AddMember(ctx context.Context, member *domain.ChannelMember) error
	// EnsureMember inserts the membership unless one exists and reports whether it inserted.
	EnsureMember(ctx context.Context, member *domain.ChannelMember) (bool, error)
	GetMember(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error)
	ListMembers(ctx context.Context, channelID uuid.UUID) ([]domain.ChannelMember, error)
	RemoveMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
	// RemoveFromProject drops userID from every channel of the project and
	// returns the channels it left.
	RemoveFromProject(ctx context.Context, projectID, userID uuid.UUID) ([]uuid.UUID, error)
	// LockDirectPair serializes direct-channel creation for a pair of users
	// until the transaction ends.
	LockDirectPair(ctx context.Context, userA, userB uuid.UUID) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// GetByID returns live messages only.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID, limit, offset int) ([]domain.Message, error)
	CountByChannel(ctx context.Context, channelID uuid.UUID) (int, error)
	Update(ctx context.Context, msg *domain.Message) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// Repositories groups every store the services depend on.
type Repositories struct {
	Tx            Transactor
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	Projects      ProjectRepository
	Tasks         TaskRepository
	Invitations   InvitationRepository
	Channels      ChannelRepository
	Messages      MessageRepository
	Notifications NotificationRepository
}
