package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/pkg/apperr"
	"github.com/secutils/core/internal/store"
)

// StoreUserResolver implements UserResolver against the main Store,
// satisfying C8's Destination(User(id)) -> email lookup (spec.md §4.8)
// without requiring a separate identity service for the common case where
// users live in the same table.
type StoreUserResolver struct {
	store *store.Store
}

// NewStoreUserResolver builds a UserResolver backed by st.
func NewStoreUserResolver(st *store.Store) *StoreUserResolver {
	return &StoreUserResolver{store: st}
}

// Email resolves userID to its email, failing with NotFound if no such
// user exists (spec.md §4.8: "fail if user missing").
func (r *StoreUserResolver) Email(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := r.store.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperr.NotFound("user not found")
	}
	return u.Email, nil
}
