package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/apperr"
	"github.com/secutils/core/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(storetest.New(), "secutils-test")
}

func testUser() domain.User {
	return domain.User{
		ID:        uuid.New(),
		Email:     "Alice@Example.com",
		Handle:    "Alice",
		CreatedAt: time.Now().UTC(),
	}
}

func TestInsertAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := testUser()

	require.NoError(t, s.InsertUser(ctx, u))

	got, err := s.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestInsertUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := testUser()

	require.NoError(t, s.InsertUser(ctx, u))
	err := s.InsertUser(ctx, u)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestGetByHandle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := testUser()
	require.NoError(t, s.InsertUser(ctx, u))

	got, err := s.GetByHandle(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
}

func TestGetByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := testUser()
	require.NoError(t, s.InsertUser(ctx, u))

	got, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestGetByIDUnknown(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveByEmailClearsPointers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := testUser()
	require.NoError(t, s.InsertUser(ctx, u))

	_, err := s.RemoveByEmail(ctx, u.Email)
	require.NoError(t, err)

	got, err := s.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Nil(t, got)

	byHandle, err := s.GetByHandle(ctx, u.Handle)
	require.NoError(t, err)
	assert.Nil(t, byHandle)

	byID, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestUpsertUserOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := testUser()
	require.NoError(t, s.InsertUser(ctx, u))

	u.IsActivated = true
	require.NoError(t, s.UpsertUser(ctx, u))

	got, err := s.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsActivated)
}
