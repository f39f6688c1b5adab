package db

import (
	"time"

	"github.com/google/uuid"
)

// User information
type User struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// Recipient is the gateway identifier notifications are pushed to
	// (pushover user key or telegram chat id). Empty when not registered.
	Recipient            string    `json:"recipient,omitempty"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
}

func (u *User) badgerKey() []byte {
	return badgerKeyForUserID(u.ID)
}

func badgerKeyForUserID(id uuid.UUID) []byte {
	return append([]byte("user:"), id[:]...)
}

func badgerKeyForUsername(username string) []byte {
	return append([]byte("username:"), []byte(username)...)
}
