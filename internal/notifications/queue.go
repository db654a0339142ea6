// Package notifications implements C7 (the persistent notification queue)
// and C8 (the pure notification-to-delivery builder plus transport
// boundary). Grounded on the teacher's queue-drain loops
// (internal/worker/send_worker.go, send_worker_batch.go) for the
// page-then-drain shape, and internal/mailing/email_sender.go /
// template_engine.go for message construction and Liquid rendering.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/config"
	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/logger"
	"github.com/secutils/core/internal/scheduler"
	"github.com/secutils/core/internal/store"
)

const maxPageSize = config.NotificationSendPageSize

// sendPendingBudget bounds a single scheduler tick of the singleton
// notifications_send job, matching the teacher's per-tick batch-size
// convention (campaign_scheduler.go ticks process a fixed-size slice
// rather than draining unbounded work on one tick).
const sendPendingBudget = 500

// SendPendingHandler returns the scheduler.Handler for the singleton
// notifications_send job (domain.JobClassNotifySend): each tick drains up
// to sendPendingBudget due notifications via SendPending.
func SendPendingHandler(q *Queue) scheduler.Handler {
	return func(ctx context.Context, _ uuid.UUID) error {
		ctx, cancel := context.WithTimeout(ctx, config.DefaultNotificationBatchTimeout)
		defer cancel()
		sent, err := q.SendPending(ctx, sendPendingBudget)
		if err != nil {
			logger.Error("notifications send sweep failed", "sent", sent, "error", err.Error())
			return err
		}
		logger.Debug("notifications send sweep complete", "sent", sent)
		return nil
	}
}

// Queue is C7: a persistent FIFO over Store keyed by monotonic id, drained
// by sending each due notification through a Sender.
type Queue struct {
	store  *store.Store
	sender *Sender
}

// New builds a Queue backed by st, delivering through sender.
func New(st *store.Store, sender *Sender) *Queue {
	return &Queue{store: st, sender: sender}
}

// Schedule inserts a notification, returning its allocated id (spec.md
// §4.7's schedule(destination, content, scheduled_at) -> id).
func (q *Queue) Schedule(ctx context.Context, destination domain.Destination, content domain.Content, scheduledAt time.Time) (uint64, error) {
	n, err := q.store.InsertNotification(ctx, domain.Notification{
		Destination: destination,
		Content:     content,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return 0, err
	}
	return n.ID, nil
}

// ScheduleForTracker implements trackers.NotificationScheduler: C6 hands a
// fresh revision to C7 without internal/trackers importing this package.
func (q *Queue) ScheduleForTracker(ctx context.Context, tracker domain.Tracker, rev domain.TrackerRevision) error {
	content := domain.Content{
		Kind: domain.ContentText,
		Text: "Tracker " + tracker.Name + " has a new revision as of " + rev.Timestamp.Format(time.RFC3339),
	}
	_, err := q.Schedule(ctx, domain.Destination{Kind: domain.DestinationUser, UserID: tracker.UserID}, content, time.Now().UTC())
	return err
}

// SendPending drains due notifications, stopping once limit sends succeed
// or the due-notification stream is exhausted (spec.md §4.7). Each Store
// query fetches at most maxPageSize (100) ids regardless of limit; the scan
// moves on to the next page within the same call until one of the two
// stopping conditions holds.
func (q *Queue) SendPending(ctx context.Context, limit int) (sent int, err error) {
	if limit <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for id := range q.store.NotificationIDs(ctx, now, maxPageSize) {
		if sent >= limit {
			break
		}
		if q.sendOne(ctx, id) {
			sent++
		}
	}
	return sent, nil
}

// sendOne loads, sends and (on success only) removes a single notification.
// A failed send is logged and left in place for the next invocation,
// giving at-least-once delivery (spec.md §4.7's remove-after-success
// invariant): scheduled_at <= now still holds, so it is picked up again.
func (q *Queue) sendOne(ctx context.Context, id uint64) bool {
	n, err := q.store.GetNotification(ctx, id)
	if err != nil {
		logger.Error("notification queue: failed to load notification", "notification_id", id, "error", err.Error())
		return false
	}
	if n == nil {
		// Already removed by a concurrent drain; not a failure.
		return false
	}

	if err := q.sender.Send(ctx, *n); err != nil {
		logger.Error("notification queue: send failed, will retry", "notification_id", id, "error", err.Error())
		return false
	}

	if err := q.store.RemoveNotification(ctx, id); err != nil {
		logger.Error("notification queue: send succeeded but remove failed", "notification_id", id, "error", err.Error())
		return true
	}
	return true
}
