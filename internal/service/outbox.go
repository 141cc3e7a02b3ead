package service

import "github.com/vedran77/taskflow/internal/domain"

// Outbox accepts notification intents after the triggering write has
// committed. Publish never blocks and never fails the caller.
type Outbox interface {
	Publish(intent domain.NotificationIntent)
}

type discardOutbox struct{}

func (discardOutbox) Publish(domain.NotificationIntent) {}

func outboxOrDiscard(o Outbox) Outbox {
	if o == nil {
		return discardOutbox{}
	}
	return o
}
