package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/store"
	"github.com/secutils/core/internal/store/storetest"
)

func TestStoreUserResolverResolvesEmail(t *testing.T) {
	st := store.New(storetest.New(), "secutils-test")
	ctx := context.Background()

	u := domain.User{ID: uuid.New(), Email: "alice@example.com", Handle: "alice", CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertUser(ctx, u))

	resolver := NewStoreUserResolver(st)
	email, err := resolver.Email(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestStoreUserResolverFailsForUnknownUser(t *testing.T) {
	st := store.New(storetest.New(), "secutils-test")
	resolver := NewStoreUserResolver(st)

	_, err := resolver.Email(context.Background(), uuid.New())
	require.Error(t, err)
}
