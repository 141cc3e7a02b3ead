package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/domain"
)

func TestSendMaterializesImplicitAdmin(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	manager := h.user("manager@example.com")
	p := h.project(owner.ID, true)
	general := h.defaultChannel(p.ID, domain.ChannelTypeProjectGeneral)
	h.join(p.ID, manager.ID, domain.ProjectRoleManager)
	require.Nil(t, h.channelMember(general.ID, manager.ID))

	msg, err := h.svc.Messages.Send(h.ctx, manager.ID, general.ID, SendMessageInput{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	require.NotNil(t, msg.Author)
	assert.Equal(t, "manager@example.com", msg.Author.Email)

	cm := h.channelMember(general.ID, manager.ID)
	require.NotNil(t, cm)
	assert.Equal(t, domain.ChannelRoleAdmin, cm.Role)

	created := h.fanout.ofEvent(EventMessageCreated)
	require.Len(t, created, 1)
	assert.Equal(t, ChannelRoom(general.ID), created[0].room)
	assert.Equal(t, msg, created[0].payload)
}

func TestSendAnnouncements(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	member := h.user("member@example.com")
	p := h.project(owner.ID, true)
	announcements := h.defaultChannel(p.ID, domain.ChannelTypeAnnouncements)
	h.join(p.ID, member.ID, domain.ProjectRoleMember)
	require.NoError(t, h.svc.Channels.EnrollInDefaultChannels(h.ctx, p.ID, member.ID))

	_, err := h.svc.Messages.Send(h.ctx, member.ID, announcements.ID, SendMessageInput{Content: "hi all"})
	assert.ErrorIs(t, err, ErrAnnouncementsAdminOnly)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.Messages.Send(h.ctx, owner.ID, announcements.ID, SendMessageInput{Content: "release today"})
	require.NoError(t, err)

	// An explicit MEMBER row beats the owner's project role.
	_, err = h.repos.Channels.RemoveMember(h.ctx, announcements.ID, owner.ID)
	require.NoError(t, err)
	require.NoError(t, h.repos.Channels.AddMember(h.ctx, &domain.ChannelMember{
		ChannelID: announcements.ID,
		UserID:    owner.ID,
		Role:      domain.ChannelRoleMember,
		JoinedAt:  time.Now(),
	}))
	_, err = h.svc.Messages.Send(h.ctx, owner.ID, announcements.ID, SendMessageInput{Content: "again"})
	assert.ErrorIs(t, err, ErrAnnouncementsAdminOnly)
}

func TestSendWithoutAccess(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	member := h.user("member@example.com")
	p := h.project(owner.ID, true)
	general := h.defaultChannel(p.ID, domain.ChannelTypeProjectGeneral)
	h.join(p.ID, member.ID, domain.ProjectRoleMember)

	_, err := h.svc.Messages.Send(h.ctx, member.ID, general.ID, SendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.Nil(t, h.channelMember(general.ID, member.ID))

	_, err = h.svc.Messages.Send(h.ctx, owner.ID, general.ID, SendMessageInput{Content: "   "})
	assert.ErrorIs(t, err, ErrContentRequired)
}

func TestListMessagesPagination(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	p := h.project(owner.ID, true)
	general := h.defaultChannel(p.ID, domain.ChannelTypeProjectGeneral)

	for i := 1; i <= 5; i++ {
		_, err := h.svc.Messages.Send(h.ctx, owner.ID, general.ID, SendMessageInput{Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	tests := []struct {
		name          string
		limit, offset int
		want          []string
		wantLimit     int
	}{
		{"window", 2, 1, []string{"m2", "m3"}, 2},
		{"default limit", 0, 0, []string{"m1", "m2", "m3", "m4", "m5"}, 50},
		{"past the end", 10, 5, []string{}, 10},
		{"negative offset", 1, -3, []string{"m1"}, 1},
		{"limit capped", 1000, 4, []string{"m5"}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := h.svc.Messages.List(h.ctx, owner.ID, general.ID, tt.limit, tt.offset)
			require.NoError(t, err)
			got := []string{}
			for _, m := range page.Messages {
				got = append(got, m.Content)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 5, page.Total)
			assert.Equal(t, tt.wantLimit, page.Limit)
		})
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	h := newHarness(t)
	owner := h.user("owner@example.com")
	alice := h.user("alice@example.com")
	bob := h.user("bob@example.com")
	outsider := h.user("outsider@example.com")
	p := h.project(owner.ID, true)
	general := h.defaultChannel(p.ID, domain.ChannelTypeProjectGeneral)
	for _, u := range []*domain.User{alice, bob} {
		h.join(p.ID, u.ID, domain.ProjectRoleMember)
		require.NoError(t, h.svc.Channels.EnrollInDefaultChannels(h.ctx, p.ID, u.ID))
	}

	msg, err := h.svc.Messages.Send(h.ctx, alice.ID, general.ID, SendMessageInput{Content: "draft"})
	require.NoError(t, err)

	_, err = h.svc.Messages.Edit(h.ctx, bob.ID, msg.ID, EditMessageInput{Content: "hijack"})
	assert.ErrorIs(t, err, ErrMessageNotFound)

	edited, err := h.svc.Messages.Edit(h.ctx, alice.ID, msg.ID, EditMessageInput{Content: "final"})
	require.NoError(t, err)
	assert.Equal(t, "final", edited.Content)
	assert.NotNil(t, edited.EditedAt)
	require.Len(t, h.fanout.ofEvent(EventMessageUpdated), 1)

	assert.ErrorIs(t, h.svc.Messages.Delete(h.ctx, bob.ID, msg.ID), ErrNotMessageAuthor)
	assert.ErrorIs(t, h.svc.Messages.Delete(h.ctx, outsider.ID, msg.ID), ErrMessageNotFound)
	require.NoError(t, h.svc.Messages.Delete(h.ctx, owner.ID, msg.ID))
	deleted := h.fanout.ofEvent(EventMessageDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, MessageDeleted{ID: msg.ID, ChannelID: general.ID}, deleted[0].payload)

	assert.ErrorIs(t, h.svc.Messages.Delete(h.ctx, alice.ID, msg.ID), ErrMessageNotFound)
	page, err := h.svc.Messages.List(h.ctx, alice.ID, general.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, 0, page.Total)
}
