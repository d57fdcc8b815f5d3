package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

func sp(s string) *string { return &s }

func TestMemoryStoreExceptionFor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schedule.DefaultWeek())

	holiday := &schedule.Exception{StartDate: "2025-12-24", EndDate: "2025-12-26", Reason: "Navidad"}
	require.NoError(t, store.CreateException(ctx, holiday))
	require.NotEmpty(t, holiday.ID)

	got, err := store.ExceptionFor(ctx, "2025-12-25")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Navidad", got.Reason)

	got, err = store.ExceptionFor(ctx, "2025-12-27")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreLatestExceptionWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schedule.DefaultWeek())
	base := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	store.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	require.NoError(t, store.CreateException(ctx, &schedule.Exception{StartDate: "2025-12-20", EndDate: "2025-12-31", Reason: "vacaciones"}))
	require.NoError(t, store.CreateException(ctx, &schedule.Exception{
		StartDate: "2025-12-22", EndDate: "2025-12-22", IsOpen: true,
		OpenTime: sp("10:00"), CloseTime: sp("12:00"), Reason: "guardia",
	}))

	got, err := store.ExceptionFor(ctx, "2025-12-22")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "guardia", got.Reason)
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schedule.DefaultWeek())

	exc := &schedule.Exception{StartDate: "2026-01-01", EndDate: "2026-01-01", Reason: "Año nuevo"}
	require.NoError(t, store.CreateException(ctx, exc))

	list, err := store.ListExceptions(ctx, "2025-12-01", "2026-01-31")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = store.ListExceptions(ctx, "2026-02-01", "")
	require.NoError(t, err)
	assert.Empty(t, list)

	exc.Reason = "Año nuevo 2026"
	require.NoError(t, store.UpdateException(ctx, exc))
	got, err := store.GetException(ctx, exc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Año nuevo 2026", got.Reason)

	require.NoError(t, store.DeleteException(ctx, exc.ID))
	assert.ErrorIs(t, store.DeleteException(ctx, exc.ID), schedule.ErrNotFound)
	assert.ErrorIs(t, store.UpdateException(ctx, exc), schedule.ErrNotFound)
	_, err = store.GetException(ctx, exc.ID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestMemoryStoreUpsertWeeklyHours(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(schedule.DefaultWeek())

	require.NoError(t, store.UpsertWeeklyHours(ctx, schedule.WeeklyHours{DayOfWeek: time.Saturday}))
	week, err := store.WeeklyHours(ctx)
	require.NoError(t, err)
	assert.False(t, week.For(time.Saturday).IsOpen)
	assert.True(t, week.For(time.Friday).IsOpen)
}
