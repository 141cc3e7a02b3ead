package service

import (
	"github.com/vedran77/taskflow/internal/config"
	"github.com/vedran77/taskflow/internal/repository"
)

// Services wires every service over one set of repositories.
type Services struct {
	Access        *Access
	Tokens        *TokenService
	Auth          *AuthService
	Projects      *ProjectService
	Tasks         *TaskService
	Channels      *ChannelService
	Messages      *MessageService
	Invitations   *InvitationService
	Notifications *NotificationService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, outbox Outbox, fanout Fanout) *Services {
	access := NewAccess(repos.Projects, repos.Channels)
	tokens := NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	channels := NewChannelService(repos.Tx, repos.Channels, repos.Projects, repos.Tasks, repos.Users, access, fanout)

	return &Services{
		Access:        access,
		Tokens:        tokens,
		Auth:          NewAuthService(repos.Tx, repos.Users, repos.RefreshTokens, tokens),
		Projects:      NewProjectService(repos.Tx, repos.Projects, access, channels),
		Tasks:         NewTaskService(repos.Tx, repos.Tasks, repos.Projects, access, outbox),
		Channels:      channels,
		Messages:      NewMessageService(repos.Messages, access, fanout),
		Invitations:   NewInvitationService(repos.Tx, repos.Invitations, repos.Projects, repos.Users, channels, access, outbox, cfg.AppBaseURL),
		Notifications: NewNotificationService(repos.Notifications),
	}
}
