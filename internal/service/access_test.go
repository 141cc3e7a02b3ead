package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/domain"
)

func TestResolveChannelRole(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	manager := h.user("manager@example.com")
	member := h.user("member@example.com")
	outsider := h.user("outsider@example.com")

	p := h.project(owner.ID, false)
	h.join(p.ID, manager.ID, domain.ProjectRoleManager)
	h.join(p.ID, member.ID, domain.ProjectRoleMember)

	// Dropping the manager's row models a promotion after the channel was created.
	ch, err := h.svc.Channels.Create(h.ctx, owner.ID, CreateChannelInput{
		Name:      "design",
		Type:      domain.ChannelTypeProjectGeneral,
		ProjectID: &p.ID,
	})
	require.NoError(t, err)
	_, err = h.repos.Channels.RemoveMember(h.ctx, ch.ID, manager.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		user uuid.UUID
		want EffectiveRole
	}{
		{"owner has explicit admin row", owner.ID, EffectiveRole{Role: domain.ChannelRoleAdmin}},
		{"manager without row is implicit admin", manager.ID, EffectiveRole{Role: domain.ChannelRoleAdmin, Implicit: true}},
		{"project member without row has no access", member.ID, EffectiveRole{}},
		{"outsider has no access", outsider.ID, EffectiveRole{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.svc.Access.ResolveChannelRole(h.ctx, tt.user, ch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	// Resolving never writes.
	assert.Nil(t, h.channelMember(ch.ID, manager.ID))
}

func TestResolveChannelRoleExplicitRowWins(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	p := h.project(owner.ID, true)
	announcements := h.defaultChannel(p.ID, domain.ChannelTypeAnnouncements)

	_, err := h.repos.Channels.RemoveMember(h.ctx, announcements.ID, owner.ID)
	require.NoError(t, err)
	require.NoError(t, h.repos.Channels.AddMember(h.ctx, &domain.ChannelMember{
		ChannelID: announcements.ID,
		UserID:    owner.ID,
		Role:      domain.ChannelRoleMember,
		JoinedAt:  time.Now(),
	}))

	got, err := h.svc.Access.ResolveChannelRole(h.ctx, owner.ID, announcements)
	require.NoError(t, err)
	assert.Equal(t, EffectiveRole{Role: domain.ChannelRoleMember}, got)
}

func TestMaterializeMembershipConcurrent(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	manager := h.user("manager@example.com")
	p := h.project(owner.ID, true)
	general := h.defaultChannel(p.ID, domain.ChannelTypeProjectGeneral)
	h.join(p.ID, manager.ID, domain.ProjectRoleManager)

	eff, err := h.svc.Access.ResolveChannelRole(h.ctx, manager.ID, general)
	require.NoError(t, err)
	require.True(t, eff.Implicit)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]EffectiveRole, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.svc.Access.MaterializeMembership(h.ctx, general, manager.ID, eff)
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, EffectiveRole{Role: domain.ChannelRoleAdmin}, results[i])
	}

	members, err := h.repos.Channels.ListMembers(h.ctx, general.ID)
	require.NoError(t, err)
	count := 0
	for _, m := range members {
		if m.UserID == manager.ID {
			count++
			assert.Equal(t, domain.ChannelRoleAdmin, m.Role)
		}
	}
	assert.Equal(t, 1, count)
}

func TestRequireChannelAccessHidesChannels(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	outsider := h.user("outsider@example.com")
	p := h.project(owner.ID, true)
	general := h.defaultChannel(p.ID, domain.ChannelTypeProjectGeneral)

	_, _, errMissing := h.svc.Access.RequireChannelAccess(h.ctx, owner.ID, uuid.New())
	_, _, errHidden := h.svc.Access.RequireChannelAccess(h.ctx, outsider.ID, general.ID)

	assert.ErrorIs(t, errMissing, ErrChannelNotFound)
	assert.ErrorIs(t, errHidden, ErrChannelNotFound)
	assert.Equal(t, errMissing.Error(), errHidden.Error())
	assert.ErrorIs(t, errHidden, domain.ErrNotFound)
}

func TestProjectRoleChecks(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	manager := h.user("manager@example.com")
	member := h.user("member@example.com")
	outsider := h.user("outsider@example.com")
	p := h.project(owner.ID, false)
	h.join(p.ID, manager.ID, domain.ProjectRoleManager)
	h.join(p.ID, member.ID, domain.ProjectRoleMember)

	assert.NoError(t, h.svc.Access.RequireProjectOwner(h.ctx, owner.ID, p.ID))
	assert.ErrorIs(t, h.svc.Access.RequireProjectOwner(h.ctx, manager.ID, p.ID), ErrNotProjectOwner)
	assert.ErrorIs(t, h.svc.Access.RequireProjectOwner(h.ctx, outsider.ID, p.ID), ErrNotProjectMember)

	_, err := h.svc.Access.RequireProjectManager(h.ctx, manager.ID, p.ID)
	assert.NoError(t, err)
	_, err = h.svc.Access.RequireProjectManager(h.ctx, member.ID, p.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
