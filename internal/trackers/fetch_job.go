package trackers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/logger"
	"github.com/secutils/core/internal/scheduler"
	"github.com/secutils/core/internal/store"
)

const fetchSweepPageSize = 100

// Fetcher is the out-of-scope external collaborator (spec.md §6) that
// performs the actual resource/content/page fetch for a tracker.
type Fetcher interface {
	Fetch(ctx context.Context, t domain.Tracker) (domain.RevisionPayload, error)
}

// NotificationScheduler lets the fetch sweep optionally hand a fresh
// revision to C7 without internal/trackers importing internal/notifications
// directly, keeping the dependency one-directional.
type NotificationScheduler interface {
	ScheduleForTracker(ctx context.Context, tracker domain.Tracker, rev domain.TrackerRevision) error
}

// FetchSweepHandler returns the C6 handler: drain pending trigger jobs,
// invoke the fetcher, persist the revision, and clear the pending flag.
func FetchSweepHandler(st *store.Store, fetcher Fetcher, notifier NotificationScheduler) scheduler.Handler {
	return func(ctx context.Context, _ uuid.UUID) error {
		for job := range st.SchedulerJobs(ctx, fetchSweepPageSize) {
			class, _, ok := job.Class()
			if !ok || class != domain.JobClassTrigger || !job.Stopped {
				continue
			}
			processPendingTrigger(ctx, st, fetcher, notifier, job)
		}
		return nil
	}
}

func processPendingTrigger(ctx context.Context, st *store.Store, fetcher Fetcher, notifier NotificationScheduler, job domain.JobData) {
	tracker, err := st.GetTrackerByJobID(ctx, job.ID)
	if err != nil {
		logger.Error("fetch sweep: failed to load tracker for job", "job_id", job.ID.String(), "error", err.Error())
		return
	}
	if tracker == nil || tracker.Settings.Revisions == 0 || tracker.JobConfig == nil {
		logger.Info("fetch sweep: tracker no longer trackable, removing job", "job_id", job.ID.String())
		_ = st.RemoveSchedulerJob(ctx, job.ID)
		if tracker != nil {
			tracker.JobID = nil
			_ = st.UpdateTracker(ctx, *tracker)
		}
		return
	}

	payload, fetchErr := fetchWithRetry(ctx, fetcher, *tracker)
	if fetchErr != nil {
		logger.Error("fetch sweep: fetch failed", "tracker_id", tracker.ID.String(), "tracker_url", tracker.URL, "error", fetchErr.Error())
	} else {
		rev := domain.TrackerRevision{TrackerID: tracker.ID, Timestamp: time.Now().UTC(), Payload: payload}
		if err := st.InsertRevision(ctx, rev, tracker.Settings.Revisions); err != nil {
			logger.Error("fetch sweep: failed to persist revision", "tracker_id", tracker.ID.String(), "error", err.Error())
		} else if tracker.JobConfig.Notifications && notifier != nil {
			if err := notifier.ScheduleForTracker(ctx, *tracker, rev); err != nil {
				logger.Error("fetch sweep: failed to schedule notification", "tracker_id", tracker.ID.String(), "error", err.Error())
			}
		}
	}

	job.Stopped = false
	if err := st.UpsertSchedulerJob(ctx, job); err != nil {
		logger.Error("fetch sweep: failed to clear pending flag", "job_id", job.ID.String(), "error", err.Error())
	}
}
