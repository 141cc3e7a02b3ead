package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

var (
	ErrChannelNameRequired     = domain.NewError(domain.ErrBadRequest, "channel name is required")
	ErrChannelMemberNotProject = domain.NewError(domain.ErrBadRequest, "every channel member must belong to the channel's project")
	ErrChannelMemberUnknown    = domain.NewError(domain.ErrBadRequest, "every channel member must be an existing user")
	ErrNotChannelAdmin         = domain.NewError(domain.ErrForbidden, "only a channel admin can perform this action")
	ErrAlreadyChannelMember    = domain.NewError(domain.ErrConflict, "user is already a member of this channel")
	ErrChannelMemberNotFound   = domain.NewError(domain.ErrNotFound, "channel member not found")
	ErrCannotDMSelf            = domain.NewError(domain.ErrBadRequest, "cannot start a conversation with yourself")
	ErrInvalidChannelRole      = domain.NewError(domain.ErrBadRequest, "role must be ADMIN or MEMBER")
)

const (
	generalChannelName       = "General"
	announcementsChannelName = "Announcements"
	directChannelName        = "Direct message"
)

type ChannelService struct {
	tx       repository.Transactor
	channels repository.ChannelRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	users    repository.UserRepository
	access   *Access
	fanout   Fanout
}

func NewChannelService(
	tx repository.Transactor,
	channels repository.ChannelRepository,
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	users repository.UserRepository,
	access *Access,
	fanout Fanout,
) *ChannelService {
	return &ChannelService{
		tx:       tx,
		channels: channels,
		projects: projects,
		tasks:    tasks,
		users:    users,
		access:   access,
		fanout:   fanoutOrDiscard(fanout),
	}
}

type CreateChannelInput struct {
	Name        string             `json:"name"`
	Description *string            `json:"description,omitempty"`
	Type        domain.ChannelType `json:"type"`
	ProjectID   *uuid.UUID         `json:"project_id,omitempty"`
	TaskID      *uuid.UUID         `json:"task_id,omitempty"`
	MemberIDs   []uuid.UUID        `json:"member_ids,omitempty"`
}

// Create validates the channel shape and the creator's authority, then stores
// the channel and its memberships in one transaction. On project channels the
// project's OWNER/MANAGER users become ADMIN; listed members become MEMBER
// unless they are already admins.
func (s *ChannelService) Create(ctx context.Context, userID uuid.UUID, input CreateChannelInput) (*domain.Channel, error) {
	if err := input.Type.CheckShape(input.ProjectID, input.TaskID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrChannelNameRequired
	}

	var admins []uuid.UUID
	if input.ProjectID != nil {
		projectID := *input.ProjectID
		if _, err := s.access.RequireProjectManager(ctx, userID, projectID); err != nil {
			return nil, err
		}
		if input.TaskID != nil {
			task, err := s.tasks.GetByID(ctx, *input.TaskID)
			if err != nil {
				return nil, err
			}
			if task == nil || task.ProjectID != projectID {
				return nil, ErrTaskNotFound
			}
		}
		for _, memberID := range input.MemberIDs {
			m, err := s.projects.GetMember(ctx, projectID, memberID)
			if err != nil {
				return nil, err
			}
			if m == nil {
				return nil, ErrChannelMemberNotProject
			}
		}
		managers, err := s.projects.ListManagerIDs(ctx, projectID)
		if err != nil {
			return nil, err
		}
		admins = managers
	} else {
		for _, memberID := range input.MemberIDs {
			u, err := s.users.GetByID(ctx, memberID)
			if err != nil {
				return nil, err
			}
			if u == nil {
				return nil, ErrChannelMemberUnknown
			}
		}
		admins = []uuid.UUID{userID}
	}

	now := time.Now().UTC()
	ch := &domain.Channel{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		Type:        input.Type,
		ProjectID:   input.ProjectID,
		TaskID:      input.TaskID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.channels.Create(ctx, ch); err != nil {
			return fmt.Errorf("creating channel: %w", err)
		}
		return s.addMembers(ctx, ch.ID, admins, input.MemberIDs, now)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// CreateDefaultChannels creates the General and Announcements channels of a
// project with ownerID as ADMIN. It joins the caller's transaction if any.
func (s *ChannelService) CreateDefaultChannels(ctx context.Context, projectID, ownerID uuid.UUID) ([]domain.Channel, error) {
	now := time.Now().UTC()
	defaults := []domain.Channel{
		{Name: generalChannelName, Type: domain.ChannelTypeProjectGeneral},
		{Name: announcementsChannelName, Type: domain.ChannelTypeAnnouncements},
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i := range defaults {
			ch := &defaults[i]
			ch.ID = uuid.New()
			ch.ProjectID = &projectID
			ch.CreatedAt = now
			ch.UpdatedAt = now
			if err := s.channels.Create(ctx, ch); err != nil {
				return fmt.Errorf("creating %s channel: %w", ch.Name, err)
			}
			if err := s.addMembers(ctx, ch.ID, []uuid.UUID{ownerID}, nil, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return defaults, nil
}

// EnrollInDefaultChannels gives userID a MEMBER row in every default channel
// of the project it does not already belong to.
func (s *ChannelService) EnrollInDefaultChannels(ctx context.Context, projectID, userID uuid.UUID) error {
	channels, err := s.channels.ListProjectDefaults(ctx, projectID)
	if err != nil {
		return fmt.Errorf("listing default channels: %w", err)
	}
	now := time.Now().UTC()
	for _, ch := range channels {
		member := &domain.ChannelMember{ChannelID: ch.ID, UserID: userID, Role: domain.ChannelRoleMember, JoinedAt: now}
		if _, err := s.channels.EnsureMember(ctx, member); err != nil {
			return fmt.Errorf("enrolling in %s: %w", ch.Name, err)
		}
	}
	return nil
}

func (s *ChannelService) Get(ctx context.Context, userID, channelID uuid.UUID) (*domain.Channel, error) {
	ch, _, err := s.access.RequireChannelAccess(ctx, userID, channelID)
	return ch, err
}

// ListByProject returns every project channel to owners and managers and only
// explicit memberships to everyone else.
func (s *ChannelService) ListByProject(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Channel, error) {
	role, err := s.access.RequireProjectMember(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	var channels []domain.Channel
	if role.CanManage() {
		channels, err = s.channels.ListByProject(ctx, projectID)
	} else {
		channels, err = s.channels.ListByProjectForMember(ctx, projectID, userID)
	}
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	return channels, nil
}

func (s *ChannelService) ListDirect(ctx context.Context, userID uuid.UUID) ([]domain.Channel, error) {
	channels, err := s.channels.ListDirect(ctx, userID)
	if err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	return channels, nil
}

func (s *ChannelService) ListMembers(ctx context.Context, userID, channelID uuid.UUID) ([]domain.ChannelMember, error) {
	if _, _, err := s.access.RequireChannelAccess(ctx, userID, channelID); err != nil {
		return nil, err
	}

	members, err := s.channels.ListMembers(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.ChannelMember{}
	}
	return members, nil
}

func (s *ChannelService) AddMember(ctx context.Context, userID, channelID, targetID uuid.UUID, role domain.ChannelRole) (*domain.ChannelMember, error) {
	if role == "" {
		role = domain.ChannelRoleMember
	}
	if !role.IsValid() {
		return nil, ErrInvalidChannelRole
	}

	ch, eff, err := s.access.RequireChannelAccess(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	if !eff.IsAdmin() {
		return nil, ErrNotChannelAdmin
	}

	if ch.ProjectID != nil {
		m, err := s.projects.GetMember(ctx, *ch.ProjectID, targetID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, ErrChannelMemberNotProject
		}
	} else {
		u, err := s.users.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, ErrUserNotFound
		}
	}

	member := &domain.ChannelMember{ChannelID: ch.ID, UserID: targetID, Role: role, JoinedAt: time.Now().UTC()}
	if err := s.channels.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyChannelMember
		}
		return nil, fmt.Errorf("adding channel member: %w", err)
	}
	return member, nil
}

// RemoveMember lets admins remove anyone and members remove themselves.
func (s *ChannelService) RemoveMember(ctx context.Context, userID, channelID, targetID uuid.UUID) error {
	_, eff, err := s.access.RequireChannelAccess(ctx, userID, channelID)
	if err != nil {
		return err
	}
	if userID != targetID && !eff.IsAdmin() {
		return ErrNotChannelAdmin
	}

	removed, err := s.channels.RemoveMember(ctx, channelID, targetID)
	if err != nil {
		return fmt.Errorf("removing channel member: %w", err)
	}
	if !removed {
		return ErrChannelMemberNotFound
	}

	s.evict([]uuid.UUID{channelID}, targetID)
	return nil
}

// leaveProject drops userID from every channel of the project. It runs
// inside the caller's transaction and returns the channels left.
func (s *ChannelService) leaveProject(ctx context.Context, projectID, userID uuid.UUID) ([]uuid.UUID, error) {
	left, err := s.channels.RemoveFromProject(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("removing channel memberships: %w", err)
	}
	return left, nil
}

// evict unsubscribes userID's sockets from the rooms of channels they no
// longer belong to.
func (s *ChannelService) evict(channelIDs []uuid.UUID, userID uuid.UUID) {
	for _, id := range channelIDs {
		s.fanout.Evict(ChannelRoom(id), userID)
	}
}

// OpenDirect returns the two-person PRIVATE_DM channel between userID and
// otherID, creating it on first use.
func (s *ChannelService) OpenDirect(ctx context.Context, userID, otherID uuid.UUID) (*domain.Channel, error) {
	if userID == otherID {
		return nil, ErrCannotDMSelf
	}

	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, ErrUserNotFound
	}

	var ch *domain.Channel
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Serializes concurrent first opens of the same pair.
		if err := s.channels.LockDirectPair(ctx, userID, otherID); err != nil {
			return fmt.Errorf("locking direct pair: %w", err)
		}
		existing, err := s.channels.FindDirect(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if existing != nil {
			ch = existing
			return nil
		}

		now := time.Now().UTC()
		ch = &domain.Channel{
			ID:        uuid.New(),
			Name:      directChannelName,
			Type:      domain.ChannelTypePrivateDM,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.channels.Create(ctx, ch); err != nil {
			return fmt.Errorf("creating direct channel: %w", err)
		}
		return s.addMembers(ctx, ch.ID, nil, []uuid.UUID{userID, otherID}, now)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// AuthorizeJoin checks that userID may subscribe to a channel's realtime
// room, materializing an implicit admin membership on the way.
func (s *ChannelService) AuthorizeJoin(ctx context.Context, userID, channelID uuid.UUID) error {
	ch, eff, err := s.access.RequireChannelAccess(ctx, userID, channelID)
	if err != nil {
		return err
	}
	_, err = s.access.MaterializeMembership(ctx, ch, userID, eff)
	return err
}

// AuthorizeTyping requires an explicit membership row.
func (s *ChannelService) AuthorizeTyping(ctx context.Context, userID, channelID uuid.UUID) error {
	m, err := s.channels.GetMember(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrChannelNotFound
	}
	return nil
}

func (s *ChannelService) addMembers(ctx context.Context, channelID uuid.UUID, admins, members []uuid.UUID, at time.Time) error {
	seen := make(map[uuid.UUID]struct{}, len(admins)+len(members))
	add := func(userID uuid.UUID, role domain.ChannelRole) error {
		if _, ok := seen[userID]; ok {
			return nil
		}
		seen[userID] = struct{}{}
		_, err := s.channels.EnsureMember(ctx, &domain.ChannelMember{
			ChannelID: channelID,
			UserID:    userID,
			Role:      role,
			JoinedAt:  at,
		})
		if err != nil {
			return fmt.Errorf("adding channel member %s: %w", userID, err)
		}
		return nil
	}

	for _, id := range admins {
		if err := add(id, domain.ChannelRoleAdmin); err != nil {
			return err
		}
	}
	for _, id := range members {
		if err := add(id, domain.ChannelRoleMember); err != nil {
			return err
		}
	}
	return nil
}
