package notif

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("notification not found")

// Type is the display flavor of a Notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Notification is one entry of the append-only notification log.
// Only the Read flag ever changes after creation.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	Recipient string    `json:"recipient"` // user ID
	Link      string    `json:"link,omitempty"`
	FicheID   string    `json:"fiche_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type Repository interface {
	CreateNotification(n Notification) (Notification, error)
	// QueryAllNotifications returns the whole log in event order.
	QueryAllNotifications() ([]Notification, error)
	QueryNotificationsByRecipient(userID string) ([]Notification, error)
	GetNotificationByID(id string) (Notification, error)
	// MarkNotificationRead flips the read flag; flipping an already-read
	// notification is a no-op, not an error.
	MarkNotificationRead(id string) (Notification, error)
	DeleteNotificationsByFicheID(ficheIDs ...string) error
}
