package service

import "github.com/google/uuid"

// Realtime events pushed to a channel's room after a message write.
const (
	EventMessageCreated = "message_created"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
)

// Fanout pushes an event to every socket joined to a room. Delivery is
// at-most-once and Broadcast must not block the caller.
type Fanout interface {
	Broadcast(room, event string, payload any)
	// Evict unsubscribes every socket of userID from room.
	Evict(room string, userID uuid.UUID)
}

// MessageDeleted is the payload of EventMessageDeleted.
type MessageDeleted struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
}

// ChannelRoom names the realtime room of a channel.
func ChannelRoom(channelID uuid.UUID) string {
	return channelID.String()
}

type discardFanout struct{}

func (discardFanout) Broadcast(string, string, any) {}
func (discardFanout) Evict(string, uuid.UUID)       {}

func fanoutOrDiscard(f Fanout) Fanout {
	if f == nil {
		return discardFanout{}
	}
	return f
}
