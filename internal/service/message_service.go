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
	ErrMessageNotFound        = domain.NewError(domain.ErrNotFound, "message not found")
	ErrContentRequired        = domain.NewError(domain.ErrBadRequest, "content is required")
	ErrAnnouncementsAdminOnly = domain.NewError(domain.ErrForbidden, "only channel admins can post in announcement channels")
	ErrNotMessageAuthor       = domain.NewError(domain.ErrForbidden, "only the author or a channel admin can delete this message")
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

type MessageService struct {
	messageRepo repository.MessageRepository
	access      *Access
	fanout      Fanout
}

func NewMessageService(messageRepo repository.MessageRepository, access *Access, fanout Fanout) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		access:      access,
		fanout:      fanoutOrDiscard(fanout),
	}
}

type SendMessageInput struct {
	Content string `json:"content"`
}

type EditMessageInput struct {
	Content string `json:"content"`
}

// Send posts a message. A project OWNER/MANAGER without a membership row gets
// an ADMIN row on first post; ANNOUNCEMENTS channels accept posts from ADMINs only.
func (s *MessageService) Send(ctx context.Context, userID, channelID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrContentRequired
	}

	ch, eff, err := s.access.RequireChannelAccess(ctx, userID, channelID)
	if err != nil {
		return nil, err
	}
	eff, err = s.access.MaterializeMembership(ctx, ch, userID, eff)
	if err != nil {
		return nil, err
	}
	if ch.Type == domain.ChannelTypeAnnouncements && !eff.IsAdmin() {
		return nil, ErrAnnouncementsAdminOnly
	}

	now := time.Now().UTC()
	msg := &domain.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		AuthorID:  userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if full == nil {
		full = msg
	}

	s.fanout.Broadcast(ChannelRoom(channelID), EventMessageCreated, full)

	return full, nil
}

// List pages a channel's live messages oldest-first.
func (s *MessageService) List(ctx context.Context, userID, channelID uuid.UUID, limit, offset int) (*domain.MessagePage, error) {
	if _, _, err := s.access.RequireChannelAccess(ctx, userID, channelID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := s.messageRepo.ListByChannel(ctx, channelID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.messageRepo.CountByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &domain.MessagePage{
		Messages: messages,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// Edit is author-only; anyone else gets NotFound.
func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrContentRequired
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.AuthorID != userID {
		return nil, ErrMessageNotFound
	}

	now := time.Now().UTC()
	msg.Content = content
	msg.EditedAt = &now
	msg.UpdatedAt = now
	if err := s.messageRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	s.fanout.Broadcast(ChannelRoom(msg.ChannelID), EventMessageUpdated, msg)

	return msg, nil
}

// Delete soft-deletes a message. The author and any channel ADMIN, implicit
// admins included, may delete; users without channel access get NotFound.
func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	if msg.AuthorID != userID {
		_, eff, err := s.access.RequireChannelAccess(ctx, userID, msg.ChannelID)
		if err != nil {
			if errors.Is(err, ErrChannelNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		if !eff.IsAdmin() {
			return ErrNotMessageAuthor
		}
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	s.fanout.Broadcast(ChannelRoom(msg.ChannelID), EventMessageDeleted, MessageDeleted{ID: messageID, ChannelID: msg.ChannelID})

	return nil
}
