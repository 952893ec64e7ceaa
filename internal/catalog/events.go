package catalog

import (
	"context"
	"time"
)

type EventType string

const (
	EventCreated EventType = "product.created"
	EventUpdated EventType = "product.updated"
	EventDeleted EventType = "product.deleted"
)

// Event is published after a change has been persisted.
type Event struct {
	Type    EventType `json:"type"`
	Product Product   `json:"product"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
