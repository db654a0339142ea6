package trackers

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

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(storetest.New(), "secutils-test")
}

func testTracker(jobID *uuid.UUID) domain.Tracker {
	return domain.Tracker{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Kind:   domain.TrackerKindContent,
		Name:   "homepage",
		URL:    "https://example.com",
		Settings: domain.TrackerSettings{
			Revisions: 5,
		},
		JobConfig: &domain.JobConfig{Schedule: "@every 1h", Notifications: true},
		JobID:     jobID,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTriggerJobHandlerSetsPendingFlag(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	require.NoError(t, st.UpsertSchedulerJob(ctx, domain.JobData{
		ID:       jobID,
		JobType:  domain.JobTypeCron,
		Schedule: "@every 1h",
		Extra:    domain.ExtraForTrigger(domain.TrackerKindContent),
	}))

	require.NoError(t, TriggerJobHandler(st)(ctx, jobID))

	job, err := st.GetSchedulerJob(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.Stopped)
}

func TestTriggerJobHandlerSkipsAlreadyPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	require.NoError(t, st.UpsertSchedulerJob(ctx, domain.JobData{
		ID:       jobID,
		JobType:  domain.JobTypeCron,
		Schedule: "@every 1h",
		Stopped:  true,
		Extra:    domain.ExtraForTrigger(domain.TrackerKindContent),
	}))

	require.NoError(t, TriggerJobHandler(st)(ctx, jobID))

	job, err := st.GetSchedulerJob(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, job.Stopped)
}

func TestTriggerResumeHookDropsWhenTrackerGone(t *testing.T) {
	st := newTestStore(t)
	hook := TriggerResumeHook(st)

	_, keep, err := hook(context.Background(), domain.JobData{ID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, keep)
}

func TestTriggerResumeHookReturnsTrackerSchedule(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	tracker := testTracker(&jobID)
	require.NoError(t, st.InsertTracker(ctx, tracker))

	hook := TriggerResumeHook(st)
	schedule, keep, err := hook(ctx, domain.JobData{ID: jobID})
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, "@every 1h", schedule)
}

func TestTriggerResumeHookReturnsUpdatedScheduleWhenChanged(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	tracker := testTracker(&jobID)
	tracker.JobConfig.Schedule = "@every 2h"
	require.NoError(t, st.InsertTracker(ctx, tracker))

	// The job row itself still carries the stale schedule; the hook must
	// report the tracker's current schedule so the scheduler core (which
	// compares hook output against job.Schedule) drops it for re-creation.
	require.NoError(t, st.UpsertSchedulerJob(ctx, domain.JobData{
		ID:       jobID,
		JobType:  domain.JobTypeCron,
		Schedule: "@every 1h",
		Extra:    domain.ExtraForTrigger(tracker.Kind),
	}))

	hook := TriggerResumeHook(st)
	schedule, keep, err := hook(ctx, domain.JobData{ID: jobID, Schedule: "@every 1h"})
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, "@every 2h", schedule, "hook must return the tracker's current schedule, not the job's stale one")
}

func TestTriggerResumeHookDropsWhenNoLongerSchedulable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	tracker := testTracker(&jobID)
	tracker.Settings.Revisions = 0
	require.NoError(t, st.InsertTracker(ctx, tracker))

	hook := TriggerResumeHook(st)
	_, keep, err := hook(ctx, domain.JobData{ID: jobID})
	require.NoError(t, err)
	assert.False(t, keep)

	got, err := st.GetTracker(ctx, tracker.UserID, tracker.Kind, tracker.Name)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.JobID, "tracker should have its job_id cleared")
}
