package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	r.s.data.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

type RefreshTokenRepo struct{ s *Store }

func (r *RefreshTokenRepo) Create(_ context.Context, t *domain.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.refreshTokens[t.Token]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.refreshTokens[t.Token] = *t
	return nil
}

func (r *RefreshTokenRepo) Get(_ context.Context, token string) (*domain.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.refreshTokens[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Delete(_ context.Context, token string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.refreshTokens[token]; !ok {
		return false, nil
	}
	delete(r.s.data.refreshTokens, token)
	return true, nil
}

type ProjectRepo struct{ s *Store }

func (r *ProjectRepo) Create(_ context.Context, p *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.projects[p.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := *p
	stored.Role = ""
	r.s.data.projects[p.ID] = stored
	return nil
}

func (r *ProjectRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProjectRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var projects []domain.Project
	for key, m := range r.s.data.projectMembers {
		if key.b != userID {
			continue
		}
		p := r.s.data.projects[key.a]
		p.Role = m.Role
		projects = append(projects, p)
	}
	slices.SortFunc(projects, func(a, b domain.Project) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return projects, nil
}

func (r *ProjectRepo) Update(_ context.Context, p *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.projects[p.ID]; ok {
		stored := *p
		stored.Role = ""
		r.s.data.projects[p.ID] = stored
	}
	return nil
}

// Delete cascades the way the postgres foreign keys do.
func (r *ProjectRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := &r.s.data
	delete(d.projects, id)
	for key := range d.projectMembers {
		if key.a == id {
			delete(d.projectMembers, key)
		}
	}
	for tid, t := range d.tasks {
		if t.ProjectID == id {
			r.s.deleteTaskLocked(tid)
		}
	}
	for cid, ch := range d.channels {
		if ch.ProjectID != nil && *ch.ProjectID == id {
			r.s.deleteChannelLocked(cid)
		}
	}
	for iid, inv := range d.invitations {
		if inv.ProjectID == id {
			delete(d.invitations, iid)
		}
	}
	return nil
}

func (r *ProjectRepo) AddMember(_ context.Context, m *domain.ProjectMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{m.ProjectID, m.UserID}
	if _, ok := r.s.data.projectMembers[key]; ok {
		return repository.ErrDuplicate
	}
	stored := *m
	stored.User = nil
	r.s.data.projectMembers[key] = stored
	return nil
}

func (r *ProjectRepo) EnsureMember(_ context.Context, m *domain.ProjectMember) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{m.ProjectID, m.UserID}
	if _, ok := r.s.data.projectMembers[key]; ok {
		return false, nil
	}
	stored := *m
	stored.User = nil
	r.s.data.projectMembers[key] = stored
	return true, nil
}

func (r *ProjectRepo) GetMember(_ context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.projectMembers[pair{projectID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *ProjectRepo) ListMembers(_ context.Context, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var members []domain.ProjectMember
	for key, m := range r.s.data.projectMembers {
		if key.a == projectID {
			m.User = r.s.summary(m.UserID)
			members = append(members, m)
		}
	}
	slices.SortFunc(members, func(a, b domain.ProjectMember) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return members, nil
}

func (r *ProjectRepo) UpdateMemberRole(_ context.Context, projectID, userID uuid.UUID, role domain.ProjectRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{projectID, userID}
	if m, ok := r.s.data.projectMembers[key]; ok {
		m.Role = role
		r.s.data.projectMembers[key] = m
	}
	return nil
}

func (r *ProjectRepo) RemoveMember(_ context.Context, projectID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{projectID, userID}
	if _, ok := r.s.data.projectMembers[key]; !ok {
		return false, nil
	}
	delete(r.s.data.projectMembers, key)
	return true, nil
}

// LockOwners needs no row locks here: transactions already serialize on txMu.
func (r *ProjectRepo) LockOwners(_ context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var owners []uuid.UUID
	for key, m := range r.s.data.projectMembers {
		if key.a == projectID && m.Role == domain.ProjectRoleOwner {
			owners = append(owners, key.b)
		}
	}
	slices.SortFunc(owners, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return owners, nil
}

func (r *ProjectRepo) ListManagerIDs(_ context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var managers []domain.ProjectMember
	for key, m := range r.s.data.projectMembers {
		if key.a == projectID && m.Role.CanManage() {
			managers = append(managers, m)
		}
	}
	slices.SortFunc(managers, func(a, b domain.ProjectMember) int { return a.JoinedAt.Compare(b.JoinedAt) })
	ids := make([]uuid.UUID, 0, len(managers))
	for _, m := range managers {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

type TaskRepo struct{ s *Store }

func (r *TaskRepo) Create(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tasks[t.ID]; ok {
		return repository.ErrDuplicate
	}
	stored := *t
	stored.Assignments = nil
	r.s.data.tasks[t.ID] = stored
	return nil
}

func (r *TaskRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *TaskRepo) ListByProject(_ context.Context, projectID uuid.UUID, status *domain.TaskStatus) ([]domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var tasks []domain.Task
	for _, t := range r.s.data.tasks {
		if t.ProjectID != projectID || (status != nil && t.Status != *status) {
			continue
		}
		tasks = append(tasks, t)
	}
	slices.SortFunc(tasks, func(a, b domain.Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return tasks, nil
}

func (r *TaskRepo) Update(_ context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.tasks[t.ID]; ok {
		stored := *t
		stored.Assignments = nil
		r.s.data.tasks[t.ID] = stored
	}
	return nil
}

func (r *TaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.deleteTaskLocked(id)
	return nil
}

func (r *TaskRepo) UpsertAssignment(_ context.Context, a *domain.TaskAssignment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{a.TaskID, a.UserID}
	stored := *a
	stored.User = nil
	if existing, ok := r.s.data.assignments[key]; ok {
		stored.AssignedAt = existing.AssignedAt
	}
	r.s.data.assignments[key] = stored
	return nil
}

func (r *TaskRepo) DeleteAssignment(_ context.Context, taskID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{taskID, userID}
	if _, ok := r.s.data.assignments[key]; !ok {
		return false, nil
	}
	delete(r.s.data.assignments, key)
	return true, nil
}

func (r *TaskRepo) ListAssignments(_ context.Context, taskID uuid.UUID) ([]domain.TaskAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	assignments := []domain.TaskAssignment{}
	for key, a := range r.s.data.assignments {
		if key.a == taskID {
			a.User = r.s.summary(a.UserID)
			assignments = append(assignments, a)
		}
	}
	slices.SortFunc(assignments, func(a, b domain.TaskAssignment) int { return a.AssignedAt.Compare(b.AssignedAt) })
	return assignments, nil
}

func (r *TaskRepo) ListAssignedTo(_ context.Context, userID uuid.UUID) ([]domain.UserTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var tasks []domain.UserTask
	for key, a := range r.s.data.assignments {
		if key.b != userID {
			continue
		}
		t := r.s.data.tasks[key.a]
		p := r.s.data.projects[t.ProjectID]
		tasks = append(tasks, domain.UserTask{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			DueDate:     t.DueDate,
			CreatedAt:   t.CreatedAt,
			UpdatedAt:   t.UpdatedAt,
			Project:     domain.ProjectRef{ID: p.ID, Name: p.Name},
			Note:        a.Note,
			AssignedAt:  a.AssignedAt,
		})
	}
	slices.SortFunc(tasks, func(a, b domain.UserTask) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return tasks, nil
}

type InvitationRepo struct{ s *Store }

func (r *InvitationRepo) Create(_ context.Context, inv *domain.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.invitations {
		if existing.Status == domain.InvitationPending && inv.Status == domain.InvitationPending &&
			existing.ProjectID == inv.ProjectID && existing.InvitedUserEmail == inv.InvitedUserEmail {
			return repository.ErrDuplicate
		}
	}
	stored := *inv
	stored.ProjectName = ""
	r.s.data.invitations[inv.ID] = stored
	return nil
}

func (r *InvitationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invitations[id]
	if !ok {
		return nil, nil
	}
	inv.ProjectName = r.s.data.projects[inv.ProjectID].Name
	return &inv, nil
}

func (r *InvitationRepo) GetPending(_ context.Context, projectID uuid.UUID, email string) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, inv := range r.s.data.invitations {
		if inv.ProjectID == projectID && inv.InvitedUserEmail == email && inv.Status == domain.InvitationPending {
			inv.ProjectName = r.s.data.projects[inv.ProjectID].Name
			return &inv, nil
		}
	}
	return nil, nil
}

func (r *InvitationRepo) ListPendingByEmail(_ context.Context, email string) ([]domain.Invitation, error) {
	return r.listPending(func(inv domain.Invitation) bool { return inv.InvitedUserEmail == email }), nil
}

func (r *InvitationRepo) ListPendingByProject(_ context.Context, projectID uuid.UUID) ([]domain.Invitation, error) {
	return r.listPending(func(inv domain.Invitation) bool { return inv.ProjectID == projectID }), nil
}

func (r *InvitationRepo) listPending(match func(domain.Invitation) bool) []domain.Invitation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var invitations []domain.Invitation
	for _, inv := range r.s.data.invitations {
		if inv.Status == domain.InvitationPending && match(inv) {
			inv.ProjectName = r.s.data.projects[inv.ProjectID].Name
			invitations = append(invitations, inv)
		}
	}
	slices.SortFunc(invitations, func(a, b domain.Invitation) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return invitations
}

func (r *InvitationRepo) Resolve(_ context.Context, id uuid.UUID, status domain.InvitationStatus, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.data.invitations[id]
	if !ok || inv.Status != domain.InvitationPending {
		return false, nil
	}
	inv.Status = status
	inv.UpdatedAt = at
	r.s.data.invitations[id] = inv
	return true, nil
}

func (s *Store) deleteTaskLocked(id uuid.UUID) {
	delete(s.data.tasks, id)
	for key := range s.data.assignments {
		if key.a == id {
			delete(s.data.assignments, key)
		}
	}
	for cid, ch := range s.data.channels {
		if ch.TaskID != nil && *ch.TaskID == id {
			s.deleteChannelLocked(cid)
		}
	}
}

func (s *Store) deleteChannelLocked(id uuid.UUID) {
	delete(s.data.channels, id)
	for key := range s.data.channelMembers {
		if key.a == id {
			delete(s.data.channelMembers, key)
		}
	}
	for mid, m := range s.data.messages {
		if m.ChannelID == id {
			delete(s.data.messages, mid)
			delete(s.data.messageSeq, mid)
		}
	}
}
