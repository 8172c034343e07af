package notify

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCraftingCreated   Type = "crafting.created"
	TypeCraftingClaimed   Type = "crafting.claimed"
	TypeCraftingCompleted Type = "crafting.completed"
	TypeCraftingCancelled Type = "crafting.cancelled"
	TypeEventCreated      Type = "event.created"
	TypeEventJoined       Type = "event.joined"
	TypeEventLeft         Type = "event.left"
)

type Notification struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"`
}

// New stamps a notification with a fresh id and the current time.
func New(typ Type, actorID string, payload interface{}) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		ActorID:   actorID,
	}
}

// Publisher is the write side used by services.
type Publisher interface {
	Publish(n Notification)
}

type Bus interface {
	Publisher
	Subscribe() (<-chan Notification, func()) // channel and unsubscribe function
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(Notification) {}
