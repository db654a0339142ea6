// Package domain holds the core data model shared by the store, scheduler,
// trackers, notifications and search subsystems.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier identifies the plan a user is on.
type SubscriptionTier int

const (
	TierBasic SubscriptionTier = iota
	TierStandard
	TierProfessional
	TierUltimate
)

// User is the authoritative identity record. Emails are always compared and
// stored lower-cased for uniqueness (see NormalizeEmail).
type User struct {
	ID               uuid.UUID        `json:"id"`
	Email            string           `json:"email"`
	Handle           string           `json:"handle"`
	CreatedAt        time.Time        `json:"created_at"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	IsActivated      bool             `json:"is_activated"`
	IsOperator       bool             `json:"is_operator"`
}

// NormalizeEmail lower-cases and trims an email for uniqueness comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeHandle lower-cases and trims a handle for uniqueness comparisons.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// UserData is a namespaced key/value row attached to a user (e.g. UI state,
// feature flags). Rows are cleaned up in bulk by namespace+key+age.
type UserData struct {
	UserID    uuid.UUID `json:"user_id"`
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
