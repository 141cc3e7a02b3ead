package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
)

var ErrInvalidToken = domain.NewError(domain.ErrUnauthenticated, "invalid or expired token")

// TokenService issues and verifies HS256 access tokens and opaque refresh tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

func (s *TokenService) IssueAccessToken(userID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify returns the user id bound to a valid access token.
func (s *TokenService) Verify(tokenStr string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func (s *TokenService) NewRefreshToken(userID uuid.UUID) (*domain.RefreshToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	now := s.now()
	return &domain.RefreshToken{
		Token:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}, nil
}

// Expired reports whether a stored refresh token is past its expiry.
func (s *TokenService) Expired(t *domain.RefreshToken) bool {
	return !s.now().Before(t.ExpiresAt)
}
