// Package queue defines message payloads exchanged over the message broker
// and the publisher that sends them.
package queue

import (
	"time"

	"github.com/iliyamo/auth-user-service/internal/model"
)

// Routing keys on the user events exchange.
const (
	UserCreated = "user.created"
	UserUpdated = "user.updated"
	UserDeleted = "user.deleted"
)

// UserEvent is published after a user row changes.  It carries enough of the
// record for downstream consumers to react without querying this service.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	Status     string    `json:"status,omitempty"`
	Source     string    `json:"source"` // "api" or "google"
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent builds an event of the given type from u.
func NewUserEvent(kind string, u *model.User, source string) UserEvent {
	ev := UserEvent{Type: kind, Source: source, OccurredAt: time.Now().UTC()}
	if u != nil {
		ev.UserID = u.ID
		ev.Email = u.Email
		ev.Role = string(u.Role)
		ev.Status = string(u.Status)
	}
	return ev
}
