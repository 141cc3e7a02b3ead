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

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Auth.Register(h.ctx, RegisterInput{
		Email:    " Ana@Example.com",
		Name:     ptr("Ana"),
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(60), resp.ExpiresIn)

	userID, err := h.svc.Tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)

	_, err = h.svc.Auth.Register(h.ctx, RegisterInput{Email: "ANA@example.com", Password: "other"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := h.svc.Auth.Login(h.ctx, LoginInput{Email: "ana@EXAMPLE.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = h.svc.Auth.Login(h.ctx, LoginInput{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
	_, err = h.svc.Auth.Login(h.ctx, LoginInput{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	me, err := h.svc.Auth.Me(h.ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", me.DisplayName())

	_, err = h.svc.Auth.Me(h.ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefreshRotation(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.Auth.Register(h.ctx, RegisterInput{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	rotated, err := h.svc.Auth.Refresh(h.ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)

	_, err = h.svc.Auth.Refresh(h.ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	require.NoError(t, h.svc.Auth.Logout(h.ctx, uuid.New(), rotated.RefreshToken))
	_, err = h.svc.Auth.Refresh(h.ctx, rotated.RefreshToken)
	require.NoError(t, err, "logout by another user must not revoke the token")
}

func TestConcurrentRefreshIsSingleUse(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.Auth.Register(h.ctx, RegisterInput{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Auth.Refresh(h.ctx, resp.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	}
	assert.Equal(t, 1, succeeded)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.Auth.Register(h.ctx, RegisterInput{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, h.svc.Auth.Logout(h.ctx, resp.User.ID, resp.RefreshToken))
	require.NoError(t, h.svc.Auth.Logout(h.ctx, resp.User.ID, "unknown"))

	_, err = h.svc.Auth.Refresh(h.ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestTokenExpiry(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.Auth.Register(h.ctx, RegisterInput{Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Hour)
	h.svc.Tokens.now = func() time.Time { return later }

	_, err = h.svc.Tokens.Verify(resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = h.svc.Auth.Refresh(h.ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	tokens := NewTokenService("secret-a", time.Minute, time.Hour)
	other := NewTokenService("secret-b", time.Minute, time.Hour)

	token, err := other.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, verifyPassword("s3cret", hash))
	assert.False(t, verifyPassword("S3cret", hash))
	assert.False(t, verifyPassword("s3cret", "garbage"))
}
