package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secutils/core/internal/domain"
	"github.com/secutils/core/internal/store/storetest"
)

func testJob(schedule string) domain.JobData {
	return domain.JobData{
		ID:       uuid.New(),
		JobType:  domain.JobTypeCron,
		Schedule: schedule,
		NextTick: 100,
		Extra:    domain.ExtraForClass(domain.JobClassFetch),
	}
}

func TestUpsertAndGetSchedulerJob(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()
	j := testJob("@every 1h")

	require.NoError(t, s.UpsertSchedulerJob(ctx, j))

	got, err := s.GetSchedulerJob(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, j.Schedule, got.Schedule)
	assert.Equal(t, j.NextTick, got.NextTick)
}

func TestGetSchedulerJobUnknown(t *testing.T) {
	s := New(storetest.New(), "tbl")
	got, err := s.GetSchedulerJob(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertSchedulerJobMovesListPointerOnNextTickChange(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()
	j := testJob("@every 1h")
	require.NoError(t, s.UpsertSchedulerJob(ctx, j))

	j.NextTick = 200
	require.NoError(t, s.UpsertSchedulerJob(ctx, j))

	jobs, _, err := s.GetSchedulerJobs(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, uint64(200), jobs[0].NextTick)
}

func TestSetSchedulerJobStoppedState(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()
	j := testJob("@every 1h")
	require.NoError(t, s.UpsertSchedulerJob(ctx, j))

	require.NoError(t, s.SetSchedulerJobStoppedState(ctx, j.ID, true))

	got, err := s.GetSchedulerJob(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Stopped)
}

func TestResetSchedulerJobState(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()
	j := testJob("@every 1h")
	j.Count = 5
	j.Ran = true
	require.NoError(t, s.UpsertSchedulerJob(ctx, j))

	require.NoError(t, s.ResetSchedulerJobState(ctx, j.ID))

	got, err := s.GetSchedulerJob(ctx, j.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(0), got.Count)
	assert.False(t, got.Ran)
	assert.Nil(t, got.LastTick)
}

func TestRemoveSchedulerJob(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()
	j := testJob("@every 1h")
	require.NoError(t, s.UpsertSchedulerJob(ctx, j))

	require.NoError(t, s.RemoveSchedulerJob(ctx, j.ID))

	got, err := s.GetSchedulerJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	jobs, _, err := s.GetSchedulerJobs(ctx, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSchedulerJobsIteratesAllPagesInOrder(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()

	for i := uint64(0); i < 5; i++ {
		j := testJob("@every 1h")
		j.NextTick = 100 - i // insert out of order
		require.NoError(t, s.UpsertSchedulerJob(ctx, j))
	}

	var ticks []uint64
	for j := range s.SchedulerJobs(ctx, 2) {
		ticks = append(ticks, j.NextTick)
	}
	require.Len(t, ticks, 5)
	for i := 1; i < len(ticks); i++ {
		assert.LessOrEqual(t, ticks[i-1], ticks[i], "jobs must be delivered in ascending NextTick order")
	}
}

func TestSchedulerJobsStopsEarlyWhenYieldReturnsFalse(t *testing.T) {
	s := New(storetest.New(), "tbl")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.UpsertSchedulerJob(ctx, testJob("@every 1h")))
	}

	count := 0
	for range s.SchedulerJobs(ctx, 1) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
