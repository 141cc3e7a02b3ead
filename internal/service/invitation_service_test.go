package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/domain"
)

func TestSendInvitation(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	manager := h.user("manager@example.com")
	member := h.user("member@example.com")
	p := h.project(owner.ID, true)
	h.join(p.ID, manager.ID, domain.ProjectRoleManager)
	h.join(p.ID, member.ID, domain.ProjectRoleMember)

	_, err := h.svc.Invitations.Send(h.ctx, manager.ID, p.ID, SendInvitationInput{Email: "new@example.com"})
	assert.ErrorIs(t, err, ErrNotProjectOwner)

	_, err = h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "Member@Example.com"})
	assert.ErrorIs(t, err, ErrAlreadyMember)

	inv, err := h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "  New@Example.COM "})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", inv.InvitedUserEmail)
	assert.Equal(t, domain.InvitationPending, inv.Status)
	assert.Equal(t, owner.ID, inv.InvitedByID)

	_, err = h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "new@example.com"})
	assert.ErrorIs(t, err, ErrInvitationConflict)
	assert.ErrorIs(t, err, domain.ErrConflict)

	sent := h.outbox.ofType(domain.NotificationInvitationSent)
	require.Len(t, sent, 1)
	assert.Equal(t, "new@example.com", sent[0].Email)
	assert.True(t, sent[0].SendEmail)
	assert.Nil(t, sent[0].RecipientID, "invitee has no account yet")
	assert.Contains(t, sent[0].Body, "http://app.test/invitations")

	pending, err := h.svc.Invitations.ListForProject(h.ctx, owner.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, inv.ID, pending[0].ID)

	_, err = h.svc.Invitations.ListForProject(h.ctx, member.ID, p.ID)
	assert.ErrorIs(t, err, ErrNotProjectOwner)
}

func TestSendInvitationToExistingUser(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	carol := h.user("carol@example.com")
	p := h.project(owner.ID, false)

	_, err := h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "CAROL@example.com"})
	require.NoError(t, err)

	sent := h.outbox.ofType(domain.NotificationInvitationSent)
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].RecipientID)
	assert.Equal(t, carol.ID, *sent[0].RecipientID)

	mine, err := h.svc.Invitations.ListForUser(h.ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Apollo", mine[0].ProjectName)
}

func TestAcceptInvitation(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	carol := h.user("Carol@Example.com")
	mallory := h.user("mallory@example.com")
	p := h.project(owner.ID, true)

	inv, err := h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "carol@example.com"})
	require.NoError(t, err)

	_, err = h.svc.Invitations.Accept(h.ctx, mallory.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvitationNotForUser)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	accepted, err := h.svc.Invitations.Accept(h.ctx, carol.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationAccepted, accepted.Status)

	member, err := h.repos.Projects.GetMember(h.ctx, p.ID, carol.ID)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, domain.ProjectRoleMember, member.Role)

	for _, typ := range []domain.ChannelType{domain.ChannelTypeProjectGeneral, domain.ChannelTypeAnnouncements} {
		cm := h.channelMember(h.defaultChannel(p.ID, typ).ID, carol.ID)
		require.NotNil(t, cm, typ)
		assert.Equal(t, domain.ChannelRoleMember, cm.Role)
	}

	notified := h.outbox.ofType(domain.NotificationInvitationAccepted)
	require.Len(t, notified, 1)
	require.NotNil(t, notified[0].RecipientID)
	assert.Equal(t, owner.ID, *notified[0].RecipientID)

	_, err = h.svc.Invitations.Accept(h.ctx, carol.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvitationNotPending)
	_, err = h.svc.Invitations.Decline(h.ctx, carol.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvitationNotPending)

	mine, err := h.svc.Invitations.ListForUser(h.ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// A resolved invitation no longer blocks a new one, but membership does.
	_, err = h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "carol@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestDeclineInvitation(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	dave := h.user("dave@example.com")
	p := h.project(owner.ID, true)

	inv, err := h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "dave@example.com"})
	require.NoError(t, err)

	declined, err := h.svc.Invitations.Decline(h.ctx, dave.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationDeclined, declined.Status)

	member, err := h.repos.Projects.GetMember(h.ctx, p.ID, dave.ID)
	require.NoError(t, err)
	assert.Nil(t, member)
	assert.Empty(t, h.outbox.ofType(domain.NotificationInvitationAccepted))

	_, err = h.svc.Invitations.Send(h.ctx, owner.ID, p.ID, SendInvitationInput{Email: "dave@example.com"})
	require.NoError(t, err)
}
