package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchDocument is the u64+user-scoped document shape (spec.md §9: the
// authoritative variant — the historical string-id/handle variant is not
// reproduced). Documents without a UserID are public.
type SearchDocument struct {
	ID          uint64         `json:"id"`
	UserID      *uuid.UUID     `json:"user_id,omitempty"`
	Label       string         `json:"label"`
	Category    string         `json:"category"`
	SubCategory string         `json:"sub_category,omitempty"`
	Keywords    string         `json:"keywords,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// SearchFilter narrows a search query. An absent UserID restricts results
// to public documents only.
type SearchFilter struct {
	UserID   *uuid.UUID
	Query    string
	Category string
}
