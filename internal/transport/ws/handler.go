package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"nhooyr.io/websocket"
)

type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type UserLookup interface {
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Handler authenticates and upgrades WebSocket connections. The access token
// comes from ?token= (browsers cannot set headers on upgrades) or a Bearer header.
type Handler struct {
	hub            *Hub
	tokens         TokenVerifier
	users          UserLookup
	channels       ChannelAuthorizer
	originPatterns []string
}

func NewHandler(hub *Hub, tokens TokenVerifier, users UserLookup, channels ChannelAuthorizer, allowedOrigins []string) *Handler {
	return &Handler{
		hub:            hub,
		tokens:         tokens,
		users:          users,
		channels:       channels,
		originPatterns: originPatterns(allowedOrigins),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		tokenStr, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := h.tokens.Verify(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// The display name is resolved once per connection.
	user, err := h.users.Me(r.Context(), userID)
	if err != nil || user == nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.hub.logger.Debug("accept failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, userID, user.DisplayName(), h.channels)
	h.hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns turns configured origins ("https://app.example.com") into
// the host patterns the websocket library matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
