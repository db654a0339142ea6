package trackers

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/store"
)

type recordingNotifier struct {
	calls []domain.TrackerRevision
}

func (n *recordingNotifier) ScheduleForTracker(ctx context.Context, tracker domain.Tracker, rev domain.TrackerRevision) error {
	n.calls = append(n.calls, rev)
	return nil
}

type erroringFetcher struct{}

func (erroringFetcher) Fetch(ctx context.Context, t domain.Tracker) (domain.RevisionPayload, error) {
	return domain.RevisionPayload{}, errors.New("boom")
}

func pendingTrigger(t *testing.T, st *store.Store, tracker domain.Tracker) domain.JobData {
	t.Helper()
	ctx := context.Background()
	jobID := *tracker.JobID
	job := domain.JobData{
		ID:       jobID,
		JobType:  domain.JobTypeCron,
		Schedule: tracker.JobConfig.Schedule,
		Stopped:  true,
		Extra:    domain.ExtraForTrigger(tracker.Kind),
	}
	require.NoError(t, st.InsertTracker(ctx, tracker))
	require.NoError(t, st.UpsertSchedulerJob(ctx, job))
	return job
}

func TestFetchSweepHandlerPersistsRevisionAndNotifies(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	tracker := testTracker(&jobID)
	pendingTrigger(t, st, tracker)

	fetcher := &stubFetcher{payload: domain.RevisionPayload{Kind: domain.PayloadContentDigest, DigestHex: "deadbeef"}}
	notifier := &recordingNotifier{}

	require.NoError(t, FetchSweepHandler(st, fetcher, notifier)(ctx, uuid.Nil))

	revs, err := st.GetRevisions(ctx, tracker.ID, 0)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "deadbeef", revs[0].Payload.DigestHex)
	require.Len(t, notifier.calls, 1)

	job, err := st.GetSchedulerJob(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.False(t, job.Stopped, "pending flag should be cleared after processing")
}

func TestFetchSweepHandlerClearsPendingOnFetchFailure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	tracker := testTracker(&jobID)
	tracker.JobConfig.RetryStrategy = nil
	pendingTrigger(t, st, tracker)

	require.NoError(t, FetchSweepHandler(st, erroringFetcher{}, nil)(ctx, uuid.Nil))

	revs, err := st.GetRevisions(ctx, tracker.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, revs)

	job, err := st.GetSchedulerJob(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.False(t, job.Stopped)
}

func TestFetchSweepHandlerRemovesJobForUntrackableTracker(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jobID := uuid.New()
	tracker := testTracker(&jobID)
	tracker.Settings.Revisions = 0
	pendingTrigger(t, st, tracker)

	require.NoError(t, FetchSweepHandler(st, &stubFetcher{}, nil)(ctx, uuid.Nil))

	job, err := st.GetSchedulerJob(ctx, jobID)
	require.NoError(t, err)
	assert.Nil(t, job)
}
