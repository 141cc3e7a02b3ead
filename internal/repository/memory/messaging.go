package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
)

type ChannelRepo struct{ s *Store }

func (r *ChannelRepo) Create(_ context.Context, ch *domain.Channel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.channels[ch.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.channels[ch.ID] = *ch
	return nil
}

func (r *ChannelRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ch, ok := r.s.data.channels[id]
	if !ok {
		return nil, nil
	}
	return &ch, nil
}

func (r *ChannelRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]domain.Channel, error) {
	return r.list(func(ch domain.Channel) bool {
		return ch.ProjectID != nil && *ch.ProjectID == projectID
	}), nil
}

func (r *ChannelRepo) ListByProjectForMember(_ context.Context, projectID, userID uuid.UUID) ([]domain.Channel, error) {
	return r.list(func(ch domain.Channel) bool {
		if ch.ProjectID == nil || *ch.ProjectID != projectID {
			return false
		}
		_, ok := r.s.data.channelMembers[pair{ch.ID, userID}]
		return ok
	}), nil
}

func (r *ChannelRepo) ListProjectDefaults(_ context.Context, projectID uuid.UUID) ([]domain.Channel, error) {
	return r.list(func(ch domain.Channel) bool {
		return ch.ProjectID != nil && *ch.ProjectID == projectID && ch.Type.IsProjectDefault()
	}), nil
}

func (r *ChannelRepo) ListDirect(_ context.Context, userID uuid.UUID) ([]domain.Channel, error) {
	return r.list(func(ch domain.Channel) bool {
		if ch.Type != domain.ChannelTypePrivateDM {
			return false
		}
		_, ok := r.s.data.channelMembers[pair{ch.ID, userID}]
		return ok
	}), nil
}

func (r *ChannelRepo) FindDirect(_ context.Context, userA, userB uuid.UUID) (*domain.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ch := range r.s.data.channels {
		if ch.Type != domain.ChannelTypePrivateDM || ch.ProjectID != nil {
			continue
		}
		_, hasA := r.s.data.channelMembers[pair{ch.ID, userA}]
		_, hasB := r.s.data.channelMembers[pair{ch.ID, userB}]
		if hasA && hasB && r.s.memberCountLocked(ch.ID) == 2 {
			return &ch, nil
		}
	}
	return nil, nil
}

func (r *ChannelRepo) AddMember(_ context.Context, m *domain.ChannelMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{m.ChannelID, m.UserID}
	if _, ok := r.s.data.channelMembers[key]; ok {
		return repository.ErrDuplicate
	}
	stored := *m
	stored.User = nil
	r.s.data.channelMembers[key] = stored
	return nil
}

func (r *ChannelRepo) EnsureMember(_ context.Context, m *domain.ChannelMember) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{m.ChannelID, m.UserID}
	if _, ok := r.s.data.channelMembers[key]; ok {
		return false, nil
	}
	stored := *m
	stored.User = nil
	r.s.data.channelMembers[key] = stored
	return true, nil
}

func (r *ChannelRepo) GetMember(_ context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.channelMembers[pair{channelID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *ChannelRepo) ListMembers(_ context.Context, channelID uuid.UUID) ([]domain.ChannelMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var members []domain.ChannelMember
	for key, m := range r.s.data.channelMembers {
		if key.a == channelID {
			m.User = r.s.summary(m.UserID)
			members = append(members, m)
		}
	}
	slices.SortFunc(members, func(a, b domain.ChannelMember) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return members, nil
}

func (r *ChannelRepo) RemoveMember(_ context.Context, channelID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{channelID, userID}
	if _, ok := r.s.data.channelMembers[key]; !ok {
		return false, nil
	}
	delete(r.s.data.channelMembers, key)
	return true, nil
}

func (r *ChannelRepo) RemoveFromProject(_ context.Context, projectID, userID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed []uuid.UUID
	for key := range r.s.data.channelMembers {
		if key.b != userID {
			continue
		}
		ch, ok := r.s.data.channels[key.a]
		if !ok || ch.ProjectID == nil || *ch.ProjectID != projectID {
			continue
		}
		delete(r.s.data.channelMembers, key)
		removed = append(removed, key.a)
	}
	return removed, nil
}

// LockDirectPair is a no-op: transactions already serialize on txMu.
func (r *ChannelRepo) LockDirectPair(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (r *ChannelRepo) list(match func(domain.Channel) bool) []domain.Channel {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var channels []domain.Channel
	for _, ch := range r.s.data.channels {
		if match(ch) {
			channels = append(channels, ch)
		}
	}
	slices.SortFunc(channels, func(a, b domain.Channel) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return channels
}

func (s *Store) memberCountLocked(channelID uuid.UUID) int {
	n := 0
	for key := range s.data.channelMembers {
		if key.a == channelID {
			n++
		}
	}
	return n
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.messages[msg.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.seq++
	stored := *msg
	stored.Author = nil
	r.s.data.messages[msg.ID] = stored
	r.s.data.messageSeq[msg.ID] = r.s.data.seq
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msg, ok := r.s.data.messages[id]
	if !ok || msg.DeletedAt != nil {
		return nil, nil
	}
	msg.Author = r.s.summary(msg.AuthorID)
	return &msg, nil
}

func (r *MessageRepo) ListByChannel(_ context.Context, channelID uuid.UUID, limit, offset int) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	live := r.s.liveMessagesLocked(channelID)
	messages := []domain.Message{}
	for i := offset; i < len(live) && len(messages) < limit; i++ {
		msg := live[i]
		msg.Author = r.s.summary(msg.AuthorID)
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *MessageRepo) CountByChannel(_ context.Context, channelID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.liveMessagesLocked(channelID)), nil
}

func (r *MessageRepo) Update(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.messages[msg.ID]
	if !ok {
		return nil
	}
	stored.Content = msg.Content
	stored.EditedAt = msg.EditedAt
	stored.UpdatedAt = msg.UpdatedAt
	r.s.data.messages[msg.ID] = stored
	return nil
}

func (r *MessageRepo) SoftDelete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg, ok := r.s.data.messages[id]; ok {
		msg.DeletedAt = &at
		r.s.data.messages[id] = msg
	}
	return nil
}

func (s *Store) liveMessagesLocked(channelID uuid.UUID) []domain.Message {
	var live []domain.Message
	for _, msg := range s.data.messages {
		if msg.ChannelID == channelID && msg.DeletedAt == nil {
			live = append(live, msg)
		}
	}
	slices.SortFunc(live, func(a, b domain.Message) int {
		return int(s.data.messageSeq[a.ID] - s.data.messageSeq[b.ID])
	})
	return live
}

type NotificationRepo struct{ s *Store }

func (r *NotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.notifications[n.ID]; ok {
		return repository.ErrDuplicate
	}
	r.s.data.notifications[n.ID] = *n
	return nil
}

func (r *NotificationRepo) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []domain.Notification
	for _, n := range r.s.data.notifications {
		if n.UserID == userID && (!unreadOnly || n.ReadAt == nil) {
			all = append(all, n)
		}
	}
	slices.SortFunc(all, func(a, b domain.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	page := []domain.Notification{}
	for i := offset; i < len(all) && len(page) < limit; i++ {
		page = append(page, all[i])
	}
	return page, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, userID, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.data.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
		r.s.data.notifications[id] = n
	}
	return true, nil
}

func (r *NotificationRepo) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, notification := range r.s.data.notifications {
		if notification.UserID == userID && notification.ReadAt == nil {
			notification.ReadAt = &at
			r.s.data.notifications[id] = notification
			n++
		}
	}
	return n, nil
}
