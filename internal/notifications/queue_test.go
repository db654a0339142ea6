package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secutils/core/internal/config"
	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/store"
	"github.com/secutils/core/internal/store/storetest"
)

func newTestQueue(t *testing.T, transport Transport) (*Queue, *store.Store) {
	t.Helper()
	st := store.New(storetest.New(), "secutils-test")
	sender := NewSender(config.SMTPConfig{Username: "noreply@example.com"}, transport, nil, nil)
	return New(st, sender), st
}

func TestQueueScheduleAllocatesID(t *testing.T) {
	q, _ := newTestQueue(t, &recordingTransport{})
	ctx := context.Background()

	id1, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationServerLog}, domain.Content{Kind: domain.ContentText, Text: "one"}, time.Now().UTC())
	require.NoError(t, err)

	id2, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationServerLog}, domain.Content{Kind: domain.ContentText, Text: "two"}, time.Now().UTC())
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
}

func TestQueueScheduleForTrackerBuildsTextNotification(t *testing.T) {
	tracker := domain.Tracker{ID: uuid.New(), UserID: uuid.New(), Name: "homepage"}
	transport := &recordingTransport{}
	users := &stubUserResolver{emails: map[uuid.UUID]string{tracker.UserID: "owner@example.com"}}
	st := store.New(storetest.New(), "secutils-test")
	q := New(st, NewSender(config.SMTPConfig{Username: "noreply@example.com"}, transport, users, nil))
	ctx := context.Background()

	rev := domain.TrackerRevision{Timestamp: time.Now().UTC()}

	require.NoError(t, q.ScheduleForTracker(ctx, tracker, rev))

	sent, err := q.SendPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "owner@example.com", transport.sent[0].To)
	assert.Contains(t, transport.sent[0].Text, "homepage")

	// Notification already removed, so a second sweep sends nothing more.
	sent, err = q.SendPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestQueueSendPendingOnlySendsDueNotifications(t *testing.T) {
	transport := &recordingTransport{}
	q, _ := newTestQueue(t, transport)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationEmail, Email: "past@example.com"}, domain.Content{Kind: domain.ContentText, Text: "past due"}, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = q.Schedule(ctx, domain.Destination{Kind: domain.DestinationEmail, Email: "future@example.com"}, domain.Content{Kind: domain.ContentText, Text: "future"}, now.Add(time.Hour))
	require.NoError(t, err)

	sent, err := q.SendPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "past@example.com", transport.sent[0].To)
}

func TestQueueSendPendingRespectsLimit(t *testing.T) {
	transport := &recordingTransport{}
	q, _ := newTestQueue(t, transport)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		_, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationEmail, Email: "user@example.com"}, domain.Content{Kind: domain.ContentText, Text: "msg"}, now.Add(-time.Minute))
		require.NoError(t, err)
	}

	sent, err := q.SendPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestQueueSendPendingLeavesFailedNotificationForRetry(t *testing.T) {
	transport := &recordingTransport{err: assert.AnError}
	q, st := newTestQueue(t, transport)
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationEmail, Email: "user@example.com"}, domain.Content{Kind: domain.ContentText, Text: "msg"}, now.Add(-time.Minute))
	require.NoError(t, err)

	sent, err := q.SendPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	n, err := st.GetNotification(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, n, "failed notification must remain queued for retry")
}

func TestQueueSendPendingBudgetZeroIsNoop(t *testing.T) {
	q, _ := newTestQueue(t, &recordingTransport{})
	sent, err := q.SendPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestSendPendingHandlerDrainsQueue(t *testing.T) {
	transport := &recordingTransport{}
	q, st := newTestQueue(t, transport)
	ctx := context.Background()

	id, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationServerLog}, domain.Content{Kind: domain.ContentText, Text: "hi"}, time.Now().UTC())
	require.NoError(t, err)

	handler := SendPendingHandler(q)
	require.NoError(t, handler(ctx, uuid.Nil))

	n, err := st.GetNotification(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, n, "handler tick must remove the sent notification")
}
