package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

var (
	ErrNotProjectMember  = domain.NewError(domain.ErrForbidden, "you are not a member of this project")
	ErrNotProjectOwner   = domain.NewError(domain.ErrForbidden, "only the project owner can perform this action")
	ErrNotProjectManager = domain.NewError(domain.ErrForbidden, "only a project owner or manager can perform this action")
	ErrChannelNotFound   = domain.NewError(domain.ErrNotFound, "channel not found")
)

// EffectiveRole is a user's role in a channel after the project fallback.
// Implicit is set when the role comes from OWNER/MANAGER status in the
// channel's project and no channel_members row exists yet.
type EffectiveRole struct {
	Role     domain.ChannelRole
	Implicit bool
}

func (e EffectiveRole) None() bool    { return e.Role == "" }
func (e EffectiveRole) IsAdmin() bool { return e.Role == domain.ChannelRoleAdmin }

// Access answers every authorization question in one place.
type Access struct {
	projects repository.ProjectRepository
	channels repository.ChannelRepository
}

func NewAccess(projects repository.ProjectRepository, channels repository.ChannelRepository) *Access {
	return &Access{projects: projects, channels: channels}
}

// ProjectRole returns the user's role, or "" for non-members.
func (a *Access) ProjectRole(ctx context.Context, userID, projectID uuid.UUID) (domain.ProjectRole, error) {
	m, err := a.projects.GetMember(ctx, projectID, userID)
	if err != nil {
		return "", fmt.Errorf("loading project membership: %w", err)
	}
	if m == nil {
		return "", nil
	}
	return m.Role, nil
}

func (a *Access) RequireProjectMember(ctx context.Context, userID, projectID uuid.UUID) (domain.ProjectRole, error) {
	role, err := a.ProjectRole(ctx, userID, projectID)
	if err != nil {
		return "", err
	}
	if role == "" {
		return "", ErrNotProjectMember
	}
	return role, nil
}

func (a *Access) RequireProjectOwner(ctx context.Context, userID, projectID uuid.UUID) error {
	role, err := a.RequireProjectMember(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if role != domain.ProjectRoleOwner {
		return ErrNotProjectOwner
	}
	return nil
}

func (a *Access) RequireProjectManager(ctx context.Context, userID, projectID uuid.UUID) (domain.ProjectRole, error) {
	role, err := a.RequireProjectMember(ctx, userID, projectID)
	if err != nil {
		return "", err
	}
	if !role.CanManage() {
		return "", ErrNotProjectManager
	}
	return role, nil
}

func (a *Access) IsProjectManagerOrOwner(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	role, err := a.ProjectRole(ctx, userID, projectID)
	if err != nil {
		return false, err
	}
	return role.CanManage(), nil
}

// ResolveChannelRole has no side effects. An explicit row always wins, even a
// MEMBER row held by a project owner; otherwise project OWNER/MANAGER status
// grants an implicit ADMIN role on project channels.
func (a *Access) ResolveChannelRole(ctx context.Context, userID uuid.UUID, ch *domain.Channel) (EffectiveRole, error) {
	cm, err := a.channels.GetMember(ctx, ch.ID, userID)
	if err != nil {
		return EffectiveRole{}, fmt.Errorf("loading channel membership: %w", err)
	}
	if cm != nil {
		return EffectiveRole{Role: cm.Role}, nil
	}
	if ch.ProjectID == nil {
		return EffectiveRole{}, nil
	}

	manager, err := a.IsProjectManagerOrOwner(ctx, userID, *ch.ProjectID)
	if err != nil {
		return EffectiveRole{}, err
	}
	if manager {
		return EffectiveRole{Role: domain.ChannelRoleAdmin, Implicit: true}, nil
	}
	return EffectiveRole{}, nil
}

// MaterializeMembership turns an implicit role into a stored ADMIN row.
// Concurrent callers race on an idempotent upsert and all re-read the winner.
func (a *Access) MaterializeMembership(ctx context.Context, ch *domain.Channel, userID uuid.UUID, eff EffectiveRole) (EffectiveRole, error) {
	if !eff.Implicit {
		return eff, nil
	}

	member := &domain.ChannelMember{
		ChannelID: ch.ID,
		UserID:    userID,
		Role:      eff.Role,
		JoinedAt:  time.Now().UTC(),
	}
	if _, err := a.channels.EnsureMember(ctx, member); err != nil {
		return EffectiveRole{}, fmt.Errorf("materializing channel membership: %w", err)
	}

	stored, err := a.channels.GetMember(ctx, ch.ID, userID)
	if err != nil {
		return EffectiveRole{}, fmt.Errorf("loading channel membership: %w", err)
	}
	if stored == nil {
		return EffectiveRole{}, fmt.Errorf("channel membership for %s missing after upsert", userID)
	}
	return EffectiveRole{Role: stored.Role}, nil
}

// RequireChannelAccess reports a missing channel and a channel the user cannot
// see the same way, so channel ids do not leak.
func (a *Access) RequireChannelAccess(ctx context.Context, userID, channelID uuid.UUID) (*domain.Channel, EffectiveRole, error) {
	ch, err := a.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, EffectiveRole{}, fmt.Errorf("loading channel: %w", err)
	}
	if ch == nil {
		return nil, EffectiveRole{}, ErrChannelNotFound
	}

	eff, err := a.ResolveChannelRole(ctx, userID, ch)
	if err != nil {
		return nil, EffectiveRole{}, err
	}
	if eff.None() {
		return nil, EffectiveRole{}, ErrChannelNotFound
	}
	return ch, eff, nil
}
