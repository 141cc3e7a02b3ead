package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeJoinChannel  = "join_channel"
	EventTypeLeaveChannel = "leave_channel"
	EventTypeTypingStart  = "typing_start"
	EventTypeTypingStop   = "typing_stop"
	EventTypePing         = "ping"
)

// Event types - Server → Client. Message events use the names in
// service (message_created, message_updated, message_deleted).
const (
	EventTypeJoinedChannel = "joined_channel"
	EventTypeLeftChannel   = "left_channel"
	EventTypePong          = "pong"
	EventTypeError         = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	ChannelID *uuid.UUID      `json:"channel_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type ChannelPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
}

type TypingPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, channelID *uuid.UUID, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		ChannelID: channelID,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
