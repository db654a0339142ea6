package domain

import (
	"time"

	"github.com/google/uuid"
)

// ShareResourceKind tags which artifact a Share token exposes.
type ShareResourceKind int

const (
	ShareCertificateTemplate ShareResourceKind = iota
	ShareContentSecurityPolicy
	ShareTracker
)

// ShareResource identifies the shared artifact.
type ShareResource struct {
	Kind ShareResourceKind
	ID   uuid.UUID
}

// Share makes a resource readable by unauthenticated callers holding its
// ID. At most one Share exists per (UserID, Resource) pair.
type Share struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Resource  ShareResource `json:"resource"`
	CreatedAt time.Time     `json:"created_at"`
}
