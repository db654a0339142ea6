package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secutils/core/internal/domain"
)

func TestInsertNotificationAllocatesMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.InsertNotification(ctx, domain.Notification{
		Destination: domain.Destination{Kind: domain.DestinationServerLog},
		Content:     domain.Content{Kind: domain.ContentText, Text: "first"},
		ScheduledAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	second, err := s.InsertNotification(ctx, domain.Notification{
		Destination: domain.Destination{Kind: domain.DestinationServerLog},
		Content:     domain.Content{Kind: domain.ContentText, Text: "second"},
		ScheduledAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
}

func TestNotificationIDsOnlyReturnsDue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due, err := s.InsertNotification(ctx, domain.Notification{
		Destination: domain.Destination{Kind: domain.DestinationServerLog},
		Content:     domain.Content{Kind: domain.ContentText, Text: "due"},
		ScheduledAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = s.InsertNotification(ctx, domain.Notification{
		Destination: domain.Destination{Kind: domain.DestinationServerLog},
		Content:     domain.Content{Kind: domain.ContentText, Text: "future"},
		ScheduledAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	var got []uint64
	for id := range s.NotificationIDs(ctx, now, 10) {
		got = append(got, id)
	}
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0])
}

func TestNotificationIDsPaginatesAcrossPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const total = 7
	for i := 0; i < total; i++ {
		_, err := s.InsertNotification(ctx, domain.Notification{
			Destination: domain.Destination{Kind: domain.DestinationServerLog},
			Content:     domain.Content{Kind: domain.ContentText, Text: "n"},
			ScheduledAt: now.Add(-time.Minute),
		})
		require.NoError(t, err)
	}

	var got []uint64
	for id := range s.NotificationIDs(ctx, now, 2) {
		got = append(got, id)
	}
	assert.Len(t, got, total)
}

func TestRemoveNotification(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.InsertNotification(ctx, domain.Notification{
		Destination: domain.Destination{Kind: domain.DestinationUser, UserID: uuid.New()},
		Content:     domain.Content{Kind: domain.ContentText, Text: "hi"},
		ScheduledAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, s.RemoveNotification(ctx, n.ID))

	got, err := s.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
