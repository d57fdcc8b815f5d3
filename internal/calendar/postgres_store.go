package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

const exceptionColumns = `id::text, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), is_open,
		to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'),
		to_char(break_start, 'HH24:MI'), to_char(break_end, 'HH24:MI'), reason, created_at`

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads and writes the business_hours and schedule_exceptions tables.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("calendar: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// NewPostgresStoreWithQuerier is used by tests to inject a mock pool.
func NewPostgresStoreWithQuerier(q Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func wrap(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.NotFound(op, "exception")
	}
	return schedule.Unavailable(op, err)
}

func (s *PostgresStore) WeeklyHours(ctx context.Context) (schedule.Week, error) {
	const op = "calendar.weekly_hours"
	query := `
		SELECT day_of_week, is_open,
			to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI'),
			to_char(break_start, 'HH24:MI'), to_char(break_end, 'HH24:MI')
		FROM business_hours
		ORDER BY day_of_week
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return schedule.Week{}, wrap(op, err)
	}
	defer rows.Close()

	var list []schedule.WeeklyHours
	for rows.Next() {
		var (
			day int
			wh  schedule.WeeklyHours
		)
		if err := rows.Scan(&day, &wh.IsOpen, &wh.OpenTime, &wh.CloseTime, &wh.BreakStart, &wh.BreakEnd); err != nil {
			return schedule.Week{}, wrap(op, err)
		}
		wh.DayOfWeek = time.Weekday(day)
		list = append(list, wh)
	}
	if err := rows.Err(); err != nil {
		return schedule.Week{}, wrap(op, err)
	}
	return schedule.WeekFrom(list), nil
}

func scanException(row pgx.Row) (*schedule.Exception, error) {
	var exc schedule.Exception
	if err := row.Scan(
		&exc.ID,
		&exc.StartDate,
		&exc.EndDate,
		&exc.IsOpen,
		&exc.OpenTime,
		&exc.CloseTime,
		&exc.BreakStart,
		&exc.BreakEnd,
		&exc.Reason,
		&exc.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &exc, nil
}

func (s *PostgresStore) ExceptionFor(ctx context.Context, date string) (*schedule.Exception, error) {
	query := `SELECT ` + exceptionColumns + `
		FROM schedule_exceptions
		WHERE start_date <= $1::date AND end_date >= $1::date
		ORDER BY created_at DESC
		LIMIT 1`
	exc, err := scanException(s.db.QueryRow(ctx, query, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("calendar.exception_for", err)
	}
	return exc, nil
}

func (s *PostgresStore) ListExceptions(ctx context.Context, from, to string) ([]schedule.Exception, error) {
	const op = "calendar.list_exceptions"
	query := `SELECT ` + exceptionColumns + `
		FROM schedule_exceptions
		WHERE ($1 = '' OR end_date >= $1::date)
		  AND ($2 = '' OR start_date <= $2::date)
		ORDER BY start_date, created_at`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []schedule.Exception{}
	for rows.Next() {
		exc, err := scanException(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, *exc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func (s *PostgresStore) GetException(ctx context.Context, id string) (*schedule.Exception, error) {
	const op = "calendar.get_exception"
	if _, err := uuid.Parse(id); err != nil {
		return nil, schedule.NotFound(op, id)
	}
	query := `SELECT ` + exceptionColumns + ` FROM schedule_exceptions WHERE id = $1`
	exc, err := scanException(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrap(op, err)
	}
	return exc, nil
}

func (s *PostgresStore) UpsertWeeklyHours(ctx context.Context, hours schedule.WeeklyHours) error {
	query := `
		INSERT INTO business_hours (day_of_week, is_open, open_time, close_time, break_start, break_end, updated_at)
		VALUES ($1, $2, $3::time, $4::time, $5::time, $6::time, now())
		ON CONFLICT (day_of_week) DO UPDATE SET
			is_open = EXCLUDED.is_open,
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			break_start = EXCLUDED.break_start,
			break_end = EXCLUDED.break_end,
			updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query,
		int(hours.DayOfWeek),
		hours.IsOpen,
		hours.OpenTime,
		hours.CloseTime,
		hours.BreakStart,
		hours.BreakEnd,
	); err != nil {
		return wrap("calendar.upsert_weekly_hours", err)
	}
	return nil
}

func (s *PostgresStore) CreateException(ctx context.Context, exc *schedule.Exception) error {
	id := uuid.New()
	query := `
		INSERT INTO schedule_exceptions (id, start_date, end_date, is_open, open_time, close_time, break_start, break_end, reason)
		VALUES ($1, $2::date, $3::date, $4, $5::time, $6::time, $7::time, $8::time, $9)
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query,
		id,
		exc.StartDate,
		exc.EndDate,
		exc.IsOpen,
		exc.OpenTime,
		exc.CloseTime,
		exc.BreakStart,
		exc.BreakEnd,
		exc.Reason,
	).Scan(&exc.CreatedAt); err != nil {
		return wrap("calendar.create_exception", err)
	}
	exc.ID = id.String()
	return nil
}

func (s *PostgresStore) UpdateException(ctx context.Context, exc *schedule.Exception) error {
	const op = "calendar.update_exception"
	if _, err := uuid.Parse(exc.ID); err != nil {
		return schedule.NotFound(op, exc.ID)
	}
	query := `
		UPDATE schedule_exceptions
		SET start_date = $2::date, end_date = $3::date, is_open = $4,
			open_time = $5::time, close_time = $6::time, break_start = $7::time, break_end = $8::time,
			reason = $9
		WHERE id = $1
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query,
		exc.ID,
		exc.StartDate,
		exc.EndDate,
		exc.IsOpen,
		exc.OpenTime,
		exc.CloseTime,
		exc.BreakStart,
		exc.BreakEnd,
		exc.Reason,
	).Scan(&exc.CreatedAt); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (s *PostgresStore) DeleteException(ctx context.Context, id string) error {
	const op = "calendar.delete_exception"
	if _, err := uuid.Parse(id); err != nil {
		return schedule.NotFound(op, id)
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM schedule_exceptions WHERE id = $1`, id)
	if err != nil {
		return wrap(op, err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.NotFound(op, id)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
