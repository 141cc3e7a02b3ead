package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

var (
	ErrProjectNotFound = domain.NewError(domain.ErrNotFound, "project not found")
	ErrAlreadyMember   = domain.NewError(domain.ErrConflict, "user is already a member of this project")
	ErrMemberNotFound  = domain.NewError(domain.ErrNotFound, "project member not found")
	ErrLastOwner       = domain.NewError(domain.ErrConflict, "a project must keep at least one owner")
	ErrInvalidRole     = domain.NewError(domain.ErrBadRequest, "role must be one of OWNER, MANAGER, MEMBER")
	ErrNameRequired    = domain.NewError(domain.ErrBadRequest, "name is required")
)

type ProjectService struct {
	tx       repository.Transactor
	projects repository.ProjectRepository
	access   *Access
	channels *ChannelService
}

func NewProjectService(tx repository.Transactor, projects repository.ProjectRepository, access *Access, channels *ChannelService) *ProjectService {
	return &ProjectService{
		tx:       tx,
		projects: projects,
		access:   access,
		channels: channels,
	}
}

type CreateProjectInput struct {
	Name                string  `json:"name"`
	Description         *string `json:"description,omitempty"`
	WithDefaultChannels bool    `json:"with_default_channels"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Create stores the project and makes the creator its OWNER in one transaction.
func (s *ProjectService) Create(ctx context.Context, userID uuid.UUID, input CreateProjectInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now().UTC()
	project := &domain.Project{
		ID:          uuid.New(),
		Name:        name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.projects.Create(ctx, project); err != nil {
			return fmt.Errorf("creating project: %w", err)
		}

		owner := &domain.ProjectMember{
			ProjectID: project.ID,
			UserID:    userID,
			Role:      domain.ProjectRoleOwner,
			JoinedAt:  now,
		}
		if err := s.projects.AddMember(ctx, owner); err != nil {
			return fmt.Errorf("adding owner as member: %w", err)
		}

		if input.WithDefaultChannels {
			if _, err := s.channels.CreateDefaultChannels(ctx, project.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	project.Role = domain.ProjectRoleOwner
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error) {
	role, err := s.access.RequireProjectMember(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	project.Role = role
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, userID uuid.UUID) ([]domain.Project, error) {
	projects, err := s.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (s *ProjectService) Update(ctx context.Context, userID, projectID uuid.UUID, input UpdateProjectInput) (*domain.Project, error) {
	role, err := s.access.RequireProjectManager(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = input.Description
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	project.Role = role
	return project, nil
}

// Delete removes the project; memberships, tasks, channels and invitations cascade.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	if err := s.access.RequireProjectOwner(ctx, userID, projectID); err != nil {
		return err
	}
	return s.projects.Delete(ctx, projectID)
}

func (s *ProjectService) ListMembers(ctx context.Context, userID, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	if _, err := s.access.RequireProjectMember(ctx, userID, projectID); err != nil {
		return nil, err
	}

	members, err := s.projects.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.ProjectMember{}
	}
	return members, nil
}

func (s *ProjectService) UpdateMemberRole(ctx context.Context, userID, projectID, targetID uuid.UUID, role domain.ProjectRole) (*domain.ProjectMember, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	if err := s.access.RequireProjectOwner(ctx, userID, projectID); err != nil {
		return nil, err
	}

	var updated *domain.ProjectMember
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		owners, err := s.projects.LockOwners(ctx, projectID)
		if err != nil {
			return fmt.Errorf("locking owners: %w", err)
		}
		if !slices.Contains(owners, userID) {
			return ErrNotProjectOwner
		}

		member, err := s.projects.GetMember(ctx, projectID, targetID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		if member.Role == domain.ProjectRoleOwner && role != domain.ProjectRoleOwner && len(owners) <= 1 {
			return ErrLastOwner
		}

		if err := s.projects.UpdateMemberRole(ctx, projectID, targetID, role); err != nil {
			return fmt.Errorf("updating member role: %w", err)
		}
		member.Role = role
		updated = member
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveMember lets an owner remove anyone and any member remove themselves.
// The user also leaves every channel of the project.
func (s *ProjectService) RemoveMember(ctx context.Context, userID, projectID, targetID uuid.UUID) error {
	self := userID == targetID
	if self {
		if _, err := s.access.RequireProjectMember(ctx, userID, projectID); err != nil {
			return err
		}
	} else if err := s.access.RequireProjectOwner(ctx, userID, projectID); err != nil {
		return err
	}

	var left []uuid.UUID
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Owner rows are locked first so two owners cannot remove each other concurrently.
		owners, err := s.projects.LockOwners(ctx, projectID)
		if err != nil {
			return fmt.Errorf("locking owners: %w", err)
		}
		if !self && !slices.Contains(owners, userID) {
			return ErrNotProjectOwner
		}

		member, err := s.projects.GetMember(ctx, projectID, targetID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		if member.Role == domain.ProjectRoleOwner && len(owners) <= 1 {
			return ErrLastOwner
		}

		if _, err := s.projects.RemoveMember(ctx, projectID, targetID); err != nil {
			return fmt.Errorf("removing member: %w", err)
		}
		left, err = s.channels.leaveProject(ctx, projectID, targetID)
		return err
	})
	if err != nil {
		return err
	}

	s.channels.evict(left, targetID)
	return nil
}
