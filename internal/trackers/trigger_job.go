// Package trackers implements C4 (trigger job), C5 (schedule sweep) and C6
// (fetch sweep) — the three sweep/trigger job classes that turn a tracker's
// job_config into periodic revision fetches. Grounded on the teacher's
// internal/worker/campaign_scheduler.go (poll-loop structure, ticker-driven
// Start/Stop, stats counters) and internal/worker/campaign_processor.go
// (per-item sweep-and-dispatch shape).
package trackers

import (
	"context"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/logger"
	"github.com/secutils/core/internal/scheduler"
	"github.com/secutils/core/internal/store"
)

// TriggerJobHandler returns a scheduler.Handler implementing spec.md §4.4's
// trigger-job body: flip the job's "pending processing" flag so the next
// fetch sweep tick picks it up.
func TriggerJobHandler(st *store.Store) scheduler.Handler {
	return func(ctx context.Context, jobID uuid.UUID) error {
		job, err := st.GetSchedulerJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		if job.Stopped {
			logger.Debug("trigger job fired before previous occurrence processed", "job_id", jobID.String())
			return nil
		}
		job.Stopped = true
		if err := st.UpsertSchedulerJob(ctx, *job); err != nil {
			logger.Error("trigger job: failed to set pending flag", "job_id", jobID.String(), "error", err.Error())
			return err
		}
		return nil
	}
}

// TriggerResumeHook re-derives the trigger job's expected schedule from its
// owning tracker (spec.md §4.3 step 3): the job is dropped if the tracker
// is gone, no longer has a job_config, or no longer retains revisions.
func TriggerResumeHook(st *store.Store) scheduler.ResumeHook {
	return func(ctx context.Context, job domain.JobData) (string, bool, error) {
		tracker, err := st.GetTrackerByJobID(ctx, job.ID)
		if err != nil {
			return "", false, err
		}
		if tracker == nil || tracker.JobConfig == nil || tracker.Settings.Revisions == 0 {
			if tracker != nil {
				tracker.JobID = nil
				_ = st.UpdateTracker(ctx, *tracker)
			}
			return "", false, nil
		}
		return tracker.JobConfig.Schedule, true, nil
	}
}
