package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

// ActiveSlotIndex is the partial unique index over (date, time) for
// pending and confirmed appointments.
const ActiveSlotIndex = "appointments_active_slot_idx"

const selectColumns = `id::text, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), status,
		user_id, full_name, email, phone, note, created_at, updated_at`

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in Postgres.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithQuerier is used by tests to inject a mock pool.
func NewPostgresRepositoryWithQuerier(q Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)
	if err := row.Scan(
		&a.ID,
		&a.Date,
		&a.Time,
		&status,
		&a.UserID,
		&a.FullName,
		&a.Email,
		&a.Phone,
		&a.Note,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

// translate maps driver errors onto the schedule taxonomy.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.NotFound(op, "appointment")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == ActiveSlotIndex:
			return fmt.Errorf("%s: %w", op, ErrDuplicateSlot)
		case pgErr.Code == "22007" || pgErr.Code == "22008" || pgErr.Code == "22P02":
			return schedule.Validation(op, pgErr.Message, "")
		}
	}
	return schedule.Unavailable(op, err)
}

func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	const op = "appointments.create"
	if appt.Status == "" {
		appt.Status = StatusPending
	}
	id := uuid.New()
	query := `
		INSERT INTO appointments (id, date, time, status, user_id, full_name, email, phone, note)
		VALUES ($1, $2::date, $3::time, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		id,
		appt.Date,
		appt.Time,
		string(appt.Status),
		appt.UserID,
		appt.FullName,
		appt.Email,
		appt.Phone,
		appt.Note,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		return translate(op, err)
	}
	appt.ID = id.String()
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	const op = "appointments.get"
	if _, err := uuid.Parse(id); err != nil {
		return nil, schedule.NotFound(op, id)
	}
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(op, err)
	}
	return a, nil
}

// explainMiss turns a zero-row conditional UPDATE into NotFound or InvalidTransition.
func (r *PostgresRepository) explainMiss(ctx context.Context, op, id string, to Status) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if to == "" {
		to = current.Status
	}
	return invalidTransition(op, current.Status, to)
}

func (r *PostgresRepository) Move(ctx context.Context, id, date, clock string, note *string) (*Appointment, error) {
	const op = "appointments.move"
	if _, err := uuid.Parse(id); err != nil {
		return nil, schedule.NotFound(op, id)
	}
	query := `
		UPDATE appointments
		SET date = $2::date, time = $3::time, note = COALESCE($4::text, note), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING ` + selectColumns
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id, date, clock, note))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, op, id, "")
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return a, nil
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id string, to Status) (*Appointment, error) {
	const op = "appointments.transition"
	if _, err := uuid.Parse(id); err != nil {
		return nil, schedule.NotFound(op, id)
	}
	sources := sourcesFor(to)
	if len(sources) == 0 {
		return nil, invalidTransition(op, "", to)
	}
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}
	query := `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + selectColumns
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id, string(to), from))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, op, id, to)
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return a, nil
}

func (r *PostgresRepository) BookedTimes(ctx context.Context, date, excludeID string) ([]string, error) {
	const op = "appointments.booked_times"
	query := `
		SELECT to_char(time, 'HH24:MI')
		FROM appointments
		WHERE date = $1::date
		  AND status IN ('pending', 'confirmed')
		  AND ($2 = '' OR id::text <> $2)
		ORDER BY time
	`
	rows, err := r.db.Query(ctx, query, date, excludeID)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var clock string
		if err := rows.Scan(&clock); err != nil {
			return nil, translate(op, err)
		}
		out = append(out, clock)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	const op = "appointments.list"
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}
	if filter.Date != "" {
		add("date = $%d::date", filter.Date)
	}
	if filter.FromDate != "" {
		add("date >= $%d::date", filter.FromDate)
	}
	if filter.ToDate != "" {
		add("date <= $%d::date", filter.ToDate)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	query += " ORDER BY date, time"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}
	return out, nil
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
