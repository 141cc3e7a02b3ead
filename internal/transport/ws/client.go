package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/taskflow/internal/domain"
	"github.com/vedran77/taskflow/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// ChannelAuthorizer decides whether a user may join a channel's room or
// send typing indicators to it.
type ChannelAuthorizer interface {
	AuthorizeJoin(ctx context.Context, userID, channelID uuid.UUID) error
	AuthorizeTyping(ctx context.Context, userID, channelID uuid.UUID) error
}

// Client represents a single WebSocket connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   uuid.UUID
	userName string
	auth     ChannelAuthorizer
	logger   *slog.Logger

	// rooms is owned by the hub loop.
	rooms map[string]struct{}

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, userName string, auth ChannelAuthorizer) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		userName: userName,
		auth:     auth,
		logger:   hub.logger.With("user_id", userID),
		rooms:    make(map[string]struct{}),
		send:     make(chan []byte, sendBufSize),
	}
}

// enqueue reports false when the client is closed or its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads events from the socket until it fails or ctx ends.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var event Event
		if err := wsjson.Read(ctx, c.conn, &event); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.logger.Debug("client disconnected")
			} else {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued events to the socket until the hub closes the client.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug("ping error", "error", err)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeJoinChannel:
		channelID, ok := c.channelID(event)
		if !ok {
			return
		}
		if err := c.auth.AuthorizeJoin(ctx, c.userID, channelID); err != nil {
			c.sendServiceError(err)
			return
		}
		if !c.hub.joinRoom(c, service.ChannelRoom(channelID)) {
			return
		}
		c.sendEvent(EventTypeJoinedChannel, &channelID, ChannelPayload{ChannelID: channelID})

	case EventTypeLeaveChannel:
		channelID, ok := c.channelID(event)
		if !ok {
			return
		}
		c.hub.leaveRoomAsync(c, service.ChannelRoom(channelID))
		c.sendEvent(EventTypeLeftChannel, &channelID, ChannelPayload{ChannelID: channelID})

	case EventTypeTypingStart, EventTypeTypingStop:
		channelID, ok := c.channelID(event)
		if !ok {
			return
		}
		if err := c.auth.AuthorizeTyping(ctx, c.userID, channelID); err != nil {
			c.sendServiceError(err)
			return
		}
		evt, err := NewEvent(event.Type, &channelID, TypingPayload{
			ChannelID: channelID,
			UserID:    c.userID,
			UserName:  c.userName,
		})
		if err != nil {
			return
		}
		c.hub.publish(service.ChannelRoom(channelID), evt, &c.userID)

	case EventTypePing:
		c.sendEvent(EventTypePong, nil, struct{}{})

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// channelID reads the channel from the envelope, falling back to the payload.
func (c *Client) channelID(event *Event) (uuid.UUID, bool) {
	if event.ChannelID != nil {
		return *event.ChannelID, true
	}
	var p ChannelPayload
	if len(event.Payload) > 0 && json.Unmarshal(event.Payload, &p) == nil && p.ChannelID != uuid.Nil {
		return p.ChannelID, true
	}
	c.sendError("INVALID_PAYLOAD", "channel_id required for "+event.Type)
	return uuid.Nil, false
}

func (c *Client) sendEvent(eventType string, channelID *uuid.UUID, payload any) {
	evt, err := NewEvent(eventType, channelID, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) sendServiceError(err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.sendError("NOT_FOUND", domain.PublicMessage(err))
	case errors.Is(err, domain.ErrForbidden):
		c.sendError("FORBIDDEN", domain.PublicMessage(err))
	default:
		c.logger.Error("socket request failed", "error", err)
		c.sendError("INTERNAL", "Something went wrong")
	}
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, nil, ErrorPayload{Code: code, Message: message})
}
