package domain

import (
	"time"

	"github.com/google/uuid"
)

// DestinationKind tags a Notification's delivery target.
type DestinationKind int

const (
	DestinationUser DestinationKind = iota
	DestinationEmail
	DestinationServerLog
)

// Destination is a sum type over the three delivery targets.
type Destination struct {
	Kind   DestinationKind
	UserID uuid.UUID // DestinationUser
	Email  string    // DestinationEmail
}

// ContentKind tags a Notification's content shape.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentEmail
	ContentTemplate
)

// Content is a sum type over the three content shapes C8 knows how to
// render.
type Content struct {
	Kind ContentKind

	// ContentText
	Text string

	// ContentEmail
	Subject string
	HTML    string

	// ContentTemplate
	TemplateID uuid.UUID
	Bindings   map[string]any
}

// Notification is removed from the store when, and only when, its delivery
// call returns success. Delivery is at-least-once: an interruption between a
// successful send and the removal sends it again on the next drain.
type Notification struct {
	ID          uint64      `json:"id"`
	Destination Destination `json:"destination"`
	Content     Content     `json:"content"`
	ScheduledAt time.Time   `json:"scheduled_at"`
}
