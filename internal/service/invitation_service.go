package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

var (
	ErrInvitationNotFound   = domain.NewError(domain.ErrNotFound, "invitation not found")
	ErrInvitationConflict   = domain.NewError(domain.ErrConflict, "a pending invitation already exists for this email")
	ErrInvitationNotPending = domain.NewError(domain.ErrConflict, "invitation has already been answered")
	ErrInvitationNotForUser = domain.NewError(domain.ErrForbidden, "this invitation was sent to a different email address")
	ErrInvalidEmail         = domain.NewError(domain.ErrBadRequest, "a valid email address is required")
)

type InvitationService struct {
	tx          repository.Transactor
	invitations repository.InvitationRepository
	projects    repository.ProjectRepository
	users       repository.UserRepository
	channels    *ChannelService
	access      *Access
	outbox      Outbox
	appBaseURL  string
}

func NewInvitationService(
	tx repository.Transactor,
	invitations repository.InvitationRepository,
	projects repository.ProjectRepository,
	users repository.UserRepository,
	channels *ChannelService,
	access *Access,
	outbox Outbox,
	appBaseURL string,
) *InvitationService {
	return &InvitationService{
		tx:          tx,
		invitations: invitations,
		projects:    projects,
		users:       users,
		channels:    channels,
		access:      access,
		outbox:      outboxOrDiscard(outbox),
		appBaseURL:  appBaseURL,
	}
}

type SendInvitationInput struct {
	Email string `json:"email"`
}

// Send invites an email address to a project. Only the OWNER may invite; at
// most one PENDING invitation exists per (project, email).
func (s *InvitationService) Send(ctx context.Context, userID, projectID uuid.UUID, input SendInvitationInput) (*domain.Invitation, error) {
	email := domain.NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := s.access.RequireProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	pending, err := s.invitations.GetPending(ctx, projectID, email)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrInvitationConflict
	}

	invitee, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if invitee != nil {
		member, err := s.projects.GetMember(ctx, projectID, invitee.ID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return nil, ErrAlreadyMember
		}
	}

	now := time.Now().UTC()
	inv := &domain.Invitation{
		ID:               uuid.New(),
		ProjectID:        projectID,
		InvitedByID:      userID,
		InvitedUserEmail: email,
		Status:           domain.InvitationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		ProjectName:      project.Name,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrInvitationConflict
		}
		return nil, fmt.Errorf("creating invitation: %w", err)
	}

	link := "/invitations"
	intent := domain.NotificationIntent{
		Email:     email,
		SendEmail: true,
		Type:      domain.NotificationInvitationSent,
		Title:     fmt.Sprintf("You're invited to join %s", project.Name),
		Body: fmt.Sprintf("You have been invited to join the project **%s**.\n\n[Open your invitations](%s%s)",
			project.Name, s.appBaseURL, link),
		Link: &link,
	}
	if invitee != nil {
		intent.RecipientID = &invitee.ID
	}
	s.outbox.Publish(intent)

	return inv, nil
}

// Accept resolves the invitation, adds the MEMBER row and enrolls the user in
// the project's default channels in one transaction.
func (s *InvitationService) Accept(ctx context.Context, userID, invitationID uuid.UUID) (*domain.Invitation, error) {
	inv, user, err := s.loadForInvitee(ctx, userID, invitationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		resolved, err := s.invitations.Resolve(ctx, inv.ID, domain.InvitationAccepted, now)
		if err != nil {
			return fmt.Errorf("accepting invitation: %w", err)
		}
		if !resolved {
			return ErrInvitationNotPending
		}

		member := &domain.ProjectMember{
			ProjectID: inv.ProjectID,
			UserID:    userID,
			Role:      domain.ProjectRoleMember,
			JoinedAt:  now,
		}
		if _, err := s.projects.EnsureMember(ctx, member); err != nil {
			return fmt.Errorf("adding project member: %w", err)
		}
		return s.channels.EnrollInDefaultChannels(ctx, inv.ProjectID, userID)
	})
	if err != nil {
		return nil, err
	}

	inv.Status = domain.InvitationAccepted
	inv.UpdatedAt = now

	link := fmt.Sprintf("/projects/%s", inv.ProjectID)
	inviter := inv.InvitedByID
	s.outbox.Publish(domain.NotificationIntent{
		RecipientID: &inviter,
		SendEmail:   true,
		Type:        domain.NotificationInvitationAccepted,
		Title:       fmt.Sprintf("%s joined %s", user.DisplayName(), inv.ProjectName),
		Body:        fmt.Sprintf("**%s** accepted your invitation to **%s**.", user.DisplayName(), inv.ProjectName),
		Link:        &link,
	})

	return inv, nil
}

func (s *InvitationService) Decline(ctx context.Context, userID, invitationID uuid.UUID) (*domain.Invitation, error) {
	inv, _, err := s.loadForInvitee(ctx, userID, invitationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	resolved, err := s.invitations.Resolve(ctx, inv.ID, domain.InvitationDeclined, now)
	if err != nil {
		return nil, fmt.Errorf("declining invitation: %w", err)
	}
	if !resolved {
		return nil, ErrInvitationNotPending
	}

	inv.Status = domain.InvitationDeclined
	inv.UpdatedAt = now
	return inv, nil
}

func (s *InvitationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Invitation, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	invitations, err := s.invitations.ListPendingByEmail(ctx, domain.NormalizeEmail(user.Email))
	if err != nil {
		return nil, err
	}
	if invitations == nil {
		invitations = []domain.Invitation{}
	}
	return invitations, nil
}

func (s *InvitationService) ListForProject(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Invitation, error) {
	if err := s.access.RequireProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}

	invitations, err := s.invitations.ListPendingByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if invitations == nil {
		invitations = []domain.Invitation{}
	}
	return invitations, nil
}

// loadForInvitee checks the email match before the status so a stranger
// cannot learn whether an invitation was answered.
func (s *InvitationService) loadForInvitee(ctx context.Context, userID, invitationID uuid.UUID) (*domain.Invitation, *domain.User, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, ErrInvitationNotFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrUserNotFound
	}

	if domain.NormalizeEmail(user.Email) != inv.InvitedUserEmail {
		slog.DebugContext(ctx, "invitation email mismatch", "invitation_id", inv.ID, "user_id", userID)
		return nil, nil, ErrInvitationNotForUser
	}
	if inv.Status != domain.InvitationPending {
		return nil, nil, ErrInvitationNotPending
	}
	return inv, user, nil
}
