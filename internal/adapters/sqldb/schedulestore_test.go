package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querysmith/querysmith/internal/core/domain"
)

func newTestScheduleStore(t *testing.T) *ScheduleStore {
	t.Helper()
	store, err := NewScheduleStore(context.Background(), openTestDB(t))
	require.NoError(t, err)
	return store
}

func TestScheduleStore_CRUD(t *testing.T) {
	store := newTestScheduleStore(t)
	ctx := context.Background()

	// 1. Save
	sched := domain.Schedule{
		ID:        domain.NewScheduleID(),
		Name:      "daily album count",
		Question:  "How many albums are in the database?",
		CronExpr:  "0 9 * * *",
		NextRun:   time.Now().Add(time.Hour).UTC(),
		Status:    domain.ScheduleStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveSchedule(ctx, sched))

	// 2. Get
	fetched, err := store.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, sched.Name, fetched.Name)
	assert.Equal(t, sched.Question, fetched.Question)
	assert.Equal(t, sched.CronExpr, fetched.CronExpr)
	assert.Equal(t, domain.ScheduleStatusActive, fetched.Status)
	assert.Nil(t, fetched.LastRun)
	assert.WithinDuration(t, sched.NextRun, fetched.NextRun, time.Second)

	// 3. Update with execution bookkeeping
	now := time.Now().UTC()
	sched.LastRun = &now
	sched.LastAnswer = "There are 5 albums."
	sched.LastStatus = domain.StatusSuccess
	sched.RunCount = 1
	sched.NextRun = now.Add(24 * time.Hour)
	require.NoError(t, store.SaveSchedule(ctx, sched))

	fetched2, err := store.GetSchedule(ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched2.RunCount)
	assert.Equal(t, "There are 5 albums.", fetched2.LastAnswer)
	assert.Equal(t, domain.StatusSuccess, fetched2.LastStatus)
	require.NotNil(t, fetched2.LastRun)
	assert.WithinDuration(t, now, *fetched2.LastRun, time.Second)

	// 4. List
	list, err := store.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sched.ID, list[0].ID)

	// 5. Delete
	require.NoError(t, store.DeleteSchedule(ctx, sched.ID))
	_, err = store.GetSchedule(ctx, sched.ID)
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
}

func TestScheduleStore_GetMissing(t *testing.T) {
	store := newTestScheduleStore(t)

	_, err := store.GetSchedule(context.Background(), "no-such-schedule")
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
}

func TestScheduleStore_DeleteMissing(t *testing.T) {
	store := newTestScheduleStore(t)

	err := store.DeleteSchedule(context.Background(), "no-such-schedule")
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
}

func TestScheduleStore_ListDue(t *testing.T) {
	store := newTestScheduleStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	schedules := []domain.Schedule{
		{ID: "due", Question: "q", CronExpr: "* * * * *", NextRun: now.Add(-time.Minute), Status: domain.ScheduleStatusActive, CreatedAt: now},
		{ID: "paused", Question: "q", CronExpr: "* * * * *", NextRun: now.Add(-time.Minute), Status: domain.ScheduleStatusPaused, CreatedAt: now},
		{ID: "future", Question: "q", CronExpr: "* * * * *", NextRun: now.Add(time.Hour), Status: domain.ScheduleStatusActive, CreatedAt: now},
	}
	for _, sched := range schedules {
		require.NoError(t, store.SaveSchedule(ctx, sched))
	}

	due, err := store.ListDueSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domain.ScheduleID("due"), due[0].ID)
}

func TestScheduleStore_ListEmpty(t *testing.T) {
	store := newTestScheduleStore(t)

	list, err := store.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
