package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

const excID = "0b5e8d52-3c1a-4f6e-9d2b-7a8c9e0f1a2b"

var excColumns = []string{"id", "start_date", "end_date", "is_open", "open_time", "close_time", "break_start", "break_end", "reason", "created_at"}

func TestPostgresStoreWeeklyHoursFillsMissingDays(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStoreWithQuerier(mock)

	none := (*string)(nil)
	rows := pgxmock.NewRows([]string{"day_of_week", "is_open", "open_time", "close_time", "break_start", "break_end"}).
		AddRow(1, true, sp("09:00"), sp("18:00"), sp("13:00"), sp("14:00")).
		AddRow(6, true, sp("09:00"), sp("14:00"), none, none)
	mock.ExpectQuery("FROM business_hours").WillReturnRows(rows)

	week, err := store.WeeklyHours(context.Background())
	require.NoError(t, err)
	assert.True(t, week.For(time.Monday).IsOpen)
	assert.Equal(t, "13:00", *week.For(time.Monday).BreakStart)
	assert.True(t, week.For(time.Saturday).IsOpen)
	assert.Nil(t, week.For(time.Saturday).BreakStart)
	assert.False(t, week.For(time.Tuesday).IsOpen)
	assert.False(t, week.For(time.Sunday).IsOpen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreWeeklyHoursUnavailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStoreWithQuerier(mock)

	mock.ExpectQuery("FROM business_hours").WillReturnError(errors.New("dial tcp: connection refused"))

	_, err = store.WeeklyHours(context.Background())
	assert.ErrorIs(t, err, schedule.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreExceptionFor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStoreWithQuerier(mock)

	none := (*string)(nil)
	created := time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM schedule_exceptions").WithArgs("2025-12-25").
		WillReturnRows(pgxmock.NewRows(excColumns).
			AddRow(excID, "2025-12-25", "2025-12-25", false, none, none, none, none, "Navidad", created))
	mock.ExpectQuery("FROM schedule_exceptions").WithArgs("2025-12-26").
		WillReturnRows(pgxmock.NewRows(excColumns))

	exc, err := store.ExceptionFor(context.Background(), "2025-12-25")
	require.NoError(t, err)
	require.NotNil(t, exc)
	assert.False(t, exc.IsOpen)
	assert.Equal(t, "Navidad", exc.Reason)

	exc, err = store.ExceptionFor(context.Background(), "2025-12-26")
	require.NoError(t, err)
	assert.Nil(t, exc)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreCreateException(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStoreWithQuerier(mock)

	created := time.Now().UTC()
	none := (*string)(nil)
	mock.ExpectQuery("INSERT INTO schedule_exceptions").
		WithArgs(pgxmock.AnyArg(), "2025-12-24", "2025-12-24", true, sp("09:00"), sp("13:00"), none, none, "Nochebuena").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	exc := &schedule.Exception{
		StartDate: "2025-12-24", EndDate: "2025-12-24", IsOpen: true,
		OpenTime: sp("09:00"), CloseTime: sp("13:00"), Reason: "Nochebuena",
	}
	require.NoError(t, store.CreateException(context.Background(), exc))
	assert.NotEmpty(t, exc.ID)
	assert.Equal(t, created, exc.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpsertWeeklyHours(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStoreWithQuerier(mock)

	none := (*string)(nil)
	mock.ExpectExec("INSERT INTO business_hours").
		WithArgs(0, false, none, none, none, none).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertWeeklyHours(context.Background(), schedule.WeeklyHours{DayOfWeek: time.Sunday}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteMissingException(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStoreWithQuerier(mock)

	mock.ExpectExec("DELETE FROM schedule_exceptions").WithArgs(excID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.DeleteException(context.Background(), excID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
	assert.ErrorIs(t, store.DeleteException(context.Background(), "nope"), schedule.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
