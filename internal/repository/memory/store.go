// Package memory is an in-process implementation of the repository
// interfaces. Transactions serialize on a single lock and roll back by
// restoring a snapshot, so it suits tests and single-node demos only.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

type pair struct {
	a, b uuid.UUID
}

type state struct {
	users          map[uuid.UUID]domain.User
	refreshTokens  map[string]domain.RefreshToken
	projects       map[uuid.UUID]domain.Project
	projectMembers map[pair]domain.ProjectMember // {project, user}
	tasks          map[uuid.UUID]domain.Task
	assignments    map[pair]domain.TaskAssignment // {task, user}
	invitations    map[uuid.UUID]domain.Invitation
	channels       map[uuid.UUID]domain.Channel
	channelMembers map[pair]domain.ChannelMember // {channel, user}
	messages       map[uuid.UUID]domain.Message
	messageSeq     map[uuid.UUID]int64
	notifications  map[uuid.UUID]domain.Notification
	seq            int64
}

func newState() state {
	return state{
		users:          map[uuid.UUID]domain.User{},
		refreshTokens:  map[string]domain.RefreshToken{},
		projects:       map[uuid.UUID]domain.Project{},
		projectMembers: map[pair]domain.ProjectMember{},
		tasks:          map[uuid.UUID]domain.Task{},
		assignments:    map[pair]domain.TaskAssignment{},
		invitations:    map[uuid.UUID]domain.Invitation{},
		channels:       map[uuid.UUID]domain.Channel{},
		channelMembers: map[pair]domain.ChannelMember{},
		messages:       map[uuid.UUID]domain.Message{},
		messageSeq:     map[uuid.UUID]int64{},
		notifications:  map[uuid.UUID]domain.Notification{},
	}
}

func (s state) clone() state {
	return state{
		users:          maps.Clone(s.users),
		refreshTokens:  maps.Clone(s.refreshTokens),
		projects:       maps.Clone(s.projects),
		projectMembers: maps.Clone(s.projectMembers),
		tasks:          maps.Clone(s.tasks),
		assignments:    maps.Clone(s.assignments),
		invitations:    maps.Clone(s.invitations),
		channels:       maps.Clone(s.channels),
		channelMembers: maps.Clone(s.channelMembers),
		messages:       maps.Clone(s.messages),
		messageSeq:     maps.Clone(s.messageSeq),
		notifications:  maps.Clone(s.notifications),
		seq:            s.seq,
	}
}

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Repositories returns every repository view over the store.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Tx:            s,
		Users:         &UserRepo{s},
		RefreshTokens: &RefreshTokenRepo{s},
		Projects:      &ProjectRepo{s},
		Tasks:         &TaskRepo{s},
		Invitations:   &InvitationRepo{s},
		Channels:      &ChannelRepo{s},
		Messages:      &MessageRepo{s},
		Notifications: &NotificationRepo{s},
	}
}

func (s *Store) summary(userID uuid.UUID) *domain.UserSummary {
	u, ok := s.data.users[userID]
	if !ok {
		return &domain.UserSummary{ID: userID}
	}
	sum := u.Summary()
	return &sum
}
