package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// Hub tracks connected clients and the rooms they joined. All state is owned
// by the Run loop. A user may hold several sockets at once.
type Hub struct {
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	join       chan subscription
	leave      chan subscription
	broadcast  chan *broadcastMsg
	done       chan struct{}

	logger *slog.Logger
}

type subscription struct {
	client *Client
	room   string
}

type broadcastMsg struct {
	room      string
	data      []byte
	excludeID *uuid.UUID // optional: skip this user's sockets (e.g. sender)
	evictID   *uuid.UUID // optional: deliver only to this user's sockets, then drop them from room
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		broadcast:  make(chan *broadcastMsg, 256),
		done:       make(chan struct{}),
		logger:     logger.With("component", "ws_hub"),
	}
}

// Run owns the hub state until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("client connected", "user_id", client.userID, "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.removeClient(client)
				h.logger.Debug("client disconnected", "user_id", client.userID, "clients", len(h.clients))
			}

		case sub := <-h.join:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			members, ok := h.rooms[sub.room]
			if !ok {
				members = make(map[*Client]struct{})
				h.rooms[sub.room] = members
			}
			members[sub.client] = struct{}{}
			sub.client.rooms[sub.room] = struct{}{}

		case sub := <-h.leave:
			h.leaveRoom(sub.client, sub.room)

		case msg := <-h.broadcast:
			if msg.evictID != nil {
				h.evict(msg)
				continue
			}
			for client := range h.rooms[msg.room] {
				if msg.excludeID != nil && client.userID == *msg.excludeID {
					continue
				}
				if !client.enqueue(msg.data) {
					h.logger.Warn("dropping slow client", "user_id", client.userID)
					h.removeClient(client)
				}
			}
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends an event to every socket in room. It never blocks: when
// the hub is saturated the event is dropped, matching at-most-once delivery.
func (h *Hub) Broadcast(room, event string, payload any) {
	var channelID *uuid.UUID
	if id, err := uuid.Parse(room); err == nil {
		channelID = &id
	}
	evt, err := NewEvent(event, channelID, payload)
	if err != nil {
		h.logger.Error("marshal event", "event", event, "error", err)
		return
	}
	h.publish(room, evt, nil)
}

// Evict removes every socket of userID from room and tells each one with a
// left_channel event. Evictions share the broadcast queue, so events
// published before the eviction still reach the user. Unlike Broadcast it
// waits for queue space rather than drop.
func (h *Hub) Evict(room string, userID uuid.UUID) {
	var channelID *uuid.UUID
	if id, err := uuid.Parse(room); err == nil {
		channelID = &id
	}
	evt, err := NewEvent(EventTypeLeftChannel, channelID, ChannelPayload{ChannelID: derefID(channelID)})
	if err != nil {
		h.logger.Error("marshal event", "event", EventTypeLeftChannel, "error", err)
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal event", "event", EventTypeLeftChannel, "error", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{room: room, data: data, evictID: &userID}:
	case <-h.done:
	}
}

func (h *Hub) evict(msg *broadcastMsg) {
	for client := range h.rooms[msg.room] {
		if client.userID != *msg.evictID {
			continue
		}
		h.leaveRoom(client, msg.room)
		if !client.enqueue(msg.data) {
			h.logger.Warn("dropping slow client", "user_id", client.userID)
			h.removeClient(client)
		}
	}
	h.logger.Debug("user evicted from room", "user_id", *msg.evictID, "room", msg.room)
}

func derefID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func (h *Hub) publish(room string, evt *Event, excludeUserID *uuid.UUID) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("marshal event", "event", evt.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{room: room, data: data, excludeID: excludeUserID}:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "event", evt.Type, "room", room)
	}
}

func (h *Hub) joinRoom(c *Client, room string) bool {
	select {
	case h.join <- subscription{client: c, room: room}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leaveRoomAsync(c *Client, room string) {
	select {
	case h.leave <- subscription{client: c, room: room}:
	case <-h.done:
	}
}

func (h *Hub) leaveRoom(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	for room := range c.rooms {
		h.leaveRoom(c, room)
	}
	delete(h.clients, c)
	c.close()
}
