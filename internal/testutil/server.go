package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/config"
	"github.com/vedran77/taskflow/internal/mail"
	"github.com/vedran77/taskflow/internal/notify"
	"github.com/vedran77/taskflow/internal/repository"
	"github.com/vedran77/taskflow/internal/repository/memory"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/router"
	"github.com/vedran77/taskflow/internal/transport/ws"
)

// TestServer runs the full HTTP and WebSocket stack over the in-memory store.
type TestServer struct {
	Server   *httptest.Server
	Repos    *repository.Repositories
	Services *service.Services
	Hub      *ws.Hub
	Config   *config.Config
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	cfg := &config.Config{
		Environment:     "test",
		JWTSecret:       "test-jwt-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		AppBaseURL:      "http://app.test",
		AllowedOrigins:  []string{"*"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repos := memory.NewStore().Repositories()
	dispatcher := notify.NewDispatcher(notify.Config{QueueSize: 64, Workers: 1, MaxAttempts: 1},
		repos.Notifications, repos.Users, mail.NewLogMailer(logger), logger)
	hub := ws.NewHub(logger)
	services := service.NewServices(repos, cfg, dispatcher, hub)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	go func() { _ = dispatcher.Run(ctx) }()

	server := httptest.NewServer(router.New(services, hub, cfg))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &TestServer{
		Server:   server,
		Repos:    repos,
		Services: services,
		Hub:      hub,
		Config:   cfg,
	}
}

func (ts *TestServer) APIURL(path string) string {
	return ts.Server.URL + "/api/v1" + path
}

func (ts *TestServer) WebSocketURL(token string) string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/api/v1/ws?token=" + token
}

// Do sends a JSON request; token may be empty for public routes.
func (ts *TestServer) Do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.APIURL(path), reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// DecodeJSON asserts the status code and decodes the body into v.
func DecodeJSON(t *testing.T, resp *http.Response, status int, v any) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
}

// Register signs up a user over HTTP and returns its id and access token.
func (ts *TestServer) Register(t *testing.T, email, name string) (uuid.UUID, string) {
	t.Helper()

	resp := ts.Do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email":    email,
		"name":     name,
		"password": "Password123",
	})
	var auth service.AuthResponse
	DecodeJSON(t, resp, http.StatusCreated, &auth)
	require.NotNil(t, auth.User)
	return auth.User.ID, auth.AccessToken
}
