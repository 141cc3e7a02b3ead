package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/repository"
	"golang.org/x/crypto/argon2"
)

var (
	ErrEmailTaken          = domain.NewError(domain.ErrConflict, "email already taken")
	ErrInvalidCreds        = domain.NewError(domain.ErrUnauthenticated, "invalid email or password")
	ErrInvalidRefreshToken = domain.NewError(domain.ErrUnauthenticated, "invalid or expired refresh token")
	ErrUserNotFound        = domain.NewError(domain.ErrNotFound, "user not found")
)

type AuthService struct {
	tx            repository.Transactor
	userRepo      repository.UserRepository
	refreshTokens repository.RefreshTokenRepository
	tokens        *TokenService
}

func NewAuthService(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	refreshTokens repository.RefreshTokenRepository,
	tokens *TokenService,
) *AuthService {
	return &AuthService{
		tx:            tx,
		userRepo:      userRepo,
		refreshTokens: refreshTokens,
		tokens:        tokens,
	}
}

type RegisterInput struct {
	Email    string  `json:"email"`
	Name     *string `json:"name,omitempty"`
	Password string  `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	email := domain.NormalizeEmail(input.Email)

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         input.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return s.issue(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCreds
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCreds
	}

	return s.issue(ctx, user)
}

// Refresh rotates a refresh token. The presented token must exist, be
// unexpired and still belong to an existing user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var resp *AuthResponse
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := s.refreshTokens.Get(ctx, refreshToken)
		if err != nil {
			return err
		}
		if stored == nil || s.tokens.Expired(stored) {
			return ErrInvalidRefreshToken
		}
		// A concurrent rotation of the same token may already have deleted it.
		deleted, err := s.refreshTokens.Delete(ctx, stored.Token)
		if err != nil {
			return fmt.Errorf("revoking refresh token: %w", err)
		}
		if !deleted {
			return ErrInvalidRefreshToken
		}

		user, err := s.userRepo.GetByID(ctx, stored.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrInvalidRefreshToken
		}

		resp, err = s.issue(ctx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout revokes the refresh token if it belongs to userID. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	stored, err := s.refreshTokens.Get(ctx, refreshToken)
	if err != nil {
		return err
	}
	if stored == nil || stored.UserID != userID {
		return nil
	}
	_, err = s.refreshTokens.Delete(ctx, refreshToken)
	return err
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	refresh, err := s.tokens.NewRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	if err := s.refreshTokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
