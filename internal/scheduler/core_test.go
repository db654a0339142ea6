package scheduler

import (
	"context"
	"sync/atomic"
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

func TestSingletonJobIDIsDeterministic(t *testing.T) {
	a := SingletonJobID("fetch-sweep")
	b := SingletonJobID("fetch-sweep")
	c := SingletonJobID("schedule-sweep")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEnsureSingletonCreatesOnlyOnce(t *testing.T) {
	st := newTestStore(t)
	s := New(st)
	ctx := context.Background()

	require.NoError(t, s.EnsureSingleton(ctx, "fetch-sweep", domain.JobClassFetch, "@every 1m"))
	id := SingletonJobID("fetch-sweep")
	first, err := st.GetSchedulerJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "@every 1m", first.Schedule)

	// Mutate the stored schedule directly, then re-run EnsureSingleton: it
	// must not overwrite an existing row (that's resume()'s job).
	first.Schedule = "@every 5m"
	require.NoError(t, st.UpsertSchedulerJob(ctx, *first))

	require.NoError(t, s.EnsureSingleton(ctx, "fetch-sweep", domain.JobClassFetch, "@every 1m"))
	after, err := st.GetSchedulerJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "@every 5m", after.Schedule)
}

func TestFixedScheduleResumeHookAlwaysKeeps(t *testing.T) {
	hook := FixedScheduleResumeHook("@every 1m")
	schedule, keep, err := hook(context.Background(), domain.JobData{Schedule: "@every 5m"})
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, "@every 1m", schedule)
}

func TestScheduleJobDispatchesToHandler(t *testing.T) {
	st := newTestStore(t)
	s := New(st)

	var ticks int32
	done := make(chan struct{}, 1)
	s.RegisterHandler(domain.JobClassFetch, func(ctx context.Context, jobID uuid.UUID) error {
		if atomic.AddInt32(&ticks, 1) == 1 {
			done <- struct{}{}
		}
		return nil
	})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	id := uuid.New()
	require.NoError(t, s.ScheduleJob(ctx, domain.JobData{
		ID:       id,
		JobType:  domain.JobTypeCron,
		Schedule: "@every 100ms",
		Extra:    domain.ExtraForClass(domain.JobClassFetch),
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ticked")
	}

	job, err := st.GetSchedulerJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.True(t, job.Ran)
	assert.GreaterOrEqual(t, job.Count, uint32(1))
}

func TestResumeDropsJobOnScheduleChange(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, st.UpsertSchedulerJob(ctx, domain.JobData{
		ID:       id,
		JobType:  domain.JobTypeCron,
		Schedule: "@every 1h",
		Extra:    domain.ExtraForClass(domain.JobClassNotifySend),
	}))

	s := New(st)
	s.RegisterHandler(domain.JobClassNotifySend, func(ctx context.Context, jobID uuid.UUID) error { return nil })
	s.RegisterResumeHook(domain.JobClassNotifySend, FixedScheduleResumeHook("@every 1m"))

	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	job, err := st.GetSchedulerJob(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, job, "job with a stale schedule should be dropped on resume for re-creation")
}
