package trackers

import (
	"context"

	"github.com/google/uuid"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/pkg/logger"
	"github.com/secutils/core/internal/scheduler"
	"github.com/secutils/core/internal/store"
)

// orderedKinds fixes the sweep order across tracker kinds. Spec.md §4.5
// leaves ordering between trackers within a kind undefined, but fixes a
// deterministic order across kinds for reproducible logs.
var orderedKinds = []domain.TrackerKind{
	domain.TrackerKindResources,
	domain.TrackerKindContent,
	domain.TrackerKindPage,
}

// ScheduleSweepHandler returns the C5 handler: assign a trigger job to
// every tracker that wants scheduling but doesn't have one yet.
func ScheduleSweepHandler(st *store.Store, sch *scheduler.Scheduler) scheduler.Handler {
	return func(ctx context.Context, _ uuid.UUID) error {
		for _, kind := range orderedKinds {
			trackers, err := st.GetUnscheduledTrackers(ctx, kind)
			if err != nil {
				logger.Error("schedule sweep: query unscheduled trackers failed", "kind", kind.String(), "error", err.Error())
				continue
			}
			for _, t := range trackers {
				if err := scheduleOne(ctx, st, sch, t); err != nil {
					logger.Error("schedule sweep: failed to schedule tracker", "tracker_id", t.ID.String(), "error", err.Error())
				}
			}
		}
		return nil
	}
}

func scheduleOne(ctx context.Context, st *store.Store, sch *scheduler.Scheduler, t domain.Tracker) error {
	if t.Settings.Revisions == 0 || t.JobConfig == nil {
		logger.Error("schedule sweep: tracker not schedulable", "tracker_id", t.ID.String())
		return nil
	}

	job := domain.JobData{
		ID:       uuid.New(),
		JobType:  domain.JobTypeCron,
		Schedule: t.JobConfig.Schedule,
		Extra:    domain.ExtraForTrigger(t.Kind),
	}
	if err := sch.ScheduleJob(ctx, job); err != nil {
		return err
	}

	t.JobID = &job.ID
	return st.UpdateTracker(ctx, t)
}
