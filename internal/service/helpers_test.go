package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/config"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
	"github.com/vedran77/taskflow/internal/repository/memory"
)

type recordingOutbox struct {
	mu      sync.Mutex
	intents []domain.NotificationIntent
}

func (o *recordingOutbox) Publish(intent domain.NotificationIntent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.intents = append(o.intents, intent)
}

func (o *recordingOutbox) ofType(t domain.NotificationType) []domain.NotificationIntent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.NotificationIntent
	for _, i := range o.intents {
		if i.Type == t {
			out = append(out, i)
		}
	}
	return out
}

type broadcast struct {
	room    string
	event   string
	payload any
}

type eviction struct {
	room   string
	userID uuid.UUID
}

type recordingFanout struct {
	mu        sync.Mutex
	events    []broadcast
	evictions []eviction
}

func (f *recordingFanout) Evict(room string, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evictions = append(f.evictions, eviction{room: room, userID: userID})
}

func (f *recordingFanout) evicted() []eviction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]eviction(nil), f.evictions...)
}

func (f *recordingFanout) Broadcast(room, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcast{room: room, event: event, payload: payload})
}

func (f *recordingFanout) ofEvent(event string) []broadcast {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcast
	for _, b := range f.events {
		if b.event == event {
			out = append(out, b)
		}
	}
	return out
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	repos  *repository.Repositories
	svc    *Services
	outbox *recordingOutbox
	fanout *recordingFanout
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repos := memory.NewStore().Repositories()
	cfg := &config.Config{
		JWTSecret:       "test-jwt-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		AppBaseURL:      "http://app.test",
	}
	outbox := &recordingOutbox{}
	fanout := &recordingFanout{}
	svc := NewServices(repos, cfg, outbox, fanout)

	return &harness{
		t:      t,
		ctx:    context.Background(),
		repos:  repos,
		svc:    svc,
		outbox: outbox,
		fanout: fanout,
	}
}

// user stores a user directly; password hashing is covered by the auth tests.
func (h *harness) user(email string) *domain.User {
	h.t.Helper()
	now := time.Now().UTC()
	u := &domain.User{
		ID:           uuid.New(),
		Email:        domain.NormalizeEmail(email),
		PasswordHash: "unused",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(h.t, h.repos.Users.Create(h.ctx, u))
	return u
}

func (h *harness) project(owner uuid.UUID, withDefaults bool) *domain.Project {
	h.t.Helper()
	p, err := h.svc.Projects.Create(h.ctx, owner, CreateProjectInput{Name: "Apollo", WithDefaultChannels: withDefaults})
	require.NoError(h.t, err)
	return p
}

func (h *harness) join(projectID, userID uuid.UUID, role domain.ProjectRole) {
	h.t.Helper()
	_, err := h.repos.Projects.EnsureMember(h.ctx, &domain.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	})
	require.NoError(h.t, err)
}

func (h *harness) channelMember(channelID, userID uuid.UUID) *domain.ChannelMember {
	h.t.Helper()
	m, err := h.repos.Channels.GetMember(h.ctx, channelID, userID)
	require.NoError(h.t, err)
	return m
}

func (h *harness) defaultChannel(projectID uuid.UUID, typ domain.ChannelType) *domain.Channel {
	h.t.Helper()
	channels, err := h.repos.Channels.ListProjectDefaults(h.ctx, projectID)
	require.NoError(h.t, err)
	for i := range channels {
		if channels[i].Type == typ {
			return &channels[i]
		}
	}
	h.t.Fatalf("project %s has no %s channel", projectID, typ)
	return nil
}

func ptr[T any](v T) *T { return &v }
