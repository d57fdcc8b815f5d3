package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-booking/internal/calendar"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.availability")

// BookedTimes reads the times held by active appointments on a date.
type BookedTimes interface {
	BookedTimes(ctx context.Context, date, excludeID string) ([]string, error)
}

// Options configures a Resolver.
type Options struct {
	Policy Policy
	// StoreTimeout bounds every store read. Zero means no extra deadline.
	StoreTimeout time.Duration
	Now          func() time.Time
	Metrics      *metrics.BookingMetrics
	Logger       *logging.Logger
}

// Resolver answers availability queries against the calendar and appointment stores.
type Resolver struct {
	calendar calendar.Reader
	booked   BookedTimes
	policy   Policy
	timeout  time.Duration
	now      func() time.Time
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

func NewResolver(cal calendar.Reader, booked BookedTimes, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		calendar: cal,
		booked:   booked,
		policy:   opts.Policy.normalized(),
		timeout:  opts.StoreTimeout,
		now:      opts.Now,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Policy returns the effective policy.
func (r *Resolver) Policy() Policy { return r.policy }

// Now returns the current instant in the clinic's timezone.
func (r *Resolver) Now() time.Time { return r.now().In(r.policy.Location) }

// GetAvailableSlots returns the bookable slots for date (YYYY-MM-DD).
func (r *Resolver) GetAvailableSlots(ctx context.Context, date string) (Result, error) {
	return r.resolve(ctx, date, "")
}

// ForReschedule resolves date ignoring the slot held by excludeID, so a
// moving appointment does not block itself.
func (r *Resolver) ForReschedule(ctx context.Context, date, excludeID string) (Result, error) {
	return r.resolve(ctx, date, excludeID)
}

func (r *Resolver) resolve(ctx context.Context, date, excludeID string) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "availability.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.date", date))

	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(schedule.KindOf(err))
			span.RecordError(err)
		}
		r.metrics.ObserveAvailability(outcome, time.Since(started).Seconds())
	}()

	day, err := schedule.ParseDate(date, r.policy.Location)
	if err != nil {
		return Result{}, schedule.Validation("availability.resolve", err.Error(), "La fecha no es válida")
	}
	date = day.Format(schedule.DateLayout)

	week, exc, err := r.loadCalendar(ctx, date)
	if err != nil {
		return Result{}, err
	}
	eff, err := schedule.ResolveHours(day, week, exc)
	if err != nil {
		r.logger.Error("stored hours are inconsistent", "date", date, "error", err)
		return Result{}, schedule.Unavailable("availability.resolve", err)
	}

	var booked []string
	if eff.IsOpen {
		booked, err = r.bookedTimes(ctx, date, excludeID)
		if err != nil {
			return Result{}, err
		}
	}

	res = Compute(eff, booked, r.now(), r.policy)
	span.SetAttributes(attribute.Int("clinic.available_slots", len(res.Slots)))
	return res, nil
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Resolver) loadCalendar(ctx context.Context, date string) (schedule.Week, *schedule.Exception, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	exc, err := r.calendar.ExceptionFor(ctx, date)
	if err != nil {
		return schedule.Week{}, nil, asUnavailable("availability.exception", err)
	}
	week, err := r.calendar.WeeklyHours(ctx)
	if err != nil {
		return schedule.Week{}, nil, asUnavailable("availability.weekly_hours", err)
	}
	return week, exc, nil
}

func (r *Resolver) bookedTimes(ctx context.Context, date, excludeID string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	booked, err := r.booked.BookedTimes(ctx, date, excludeID)
	if err != nil {
		return nil, asUnavailable("availability.booked_times", err)
	}
	return booked, nil
}

// asUnavailable keeps taxonomy errors intact and classifies anything else
// as a store failure.
func asUnavailable(op string, err error) error {
	if schedule.KindOf(err) != "" {
		return err
	}
	return schedule.Unavailable(op, err)
}

// DaySummary tells whether a date has at least one bookable slot.
type DaySummary struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Slots     int    `json:"slots"`
	Reason    string `json:"reason,omitempty"`
}

// AvailableDays summarizes every date in [from, to]. The range may span at most MaxRangeDays.
func (r *Resolver) AvailableDays(ctx context.Context, from, to string) ([]DaySummary, error) {
	const op = "availability.days"
	start, err := schedule.ParseDate(from, r.policy.Location)
	if err != nil {
		return nil, schedule.Validation(op, err.Error(), "La fecha de inicio no es válida")
	}
	end, err := schedule.ParseDate(to, r.policy.Location)
	if err != nil {
		return nil, schedule.Validation(op, err.Error(), "La fecha de fin no es válida")
	}
	if end.Before(start) {
		return nil, schedule.Validation(op, "end before start", "La fecha de fin debe ser posterior a la de inicio")
	}
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days++
	}
	if days > MaxRangeDays {
		return nil, schedule.Validation(op, fmt.Sprintf("range of %d days exceeds %d", days, MaxRangeDays), "El rango de fechas es demasiado amplio")
	}

	out := make([]DaySummary, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		res, err := r.resolve(ctx, d.Format(schedule.DateLayout), "")
		if err != nil {
			return nil, err
		}
		out = append(out, DaySummary{
			Date:      res.Date,
			Available: len(res.Slots) > 0,
			Slots:     len(res.Slots),
			Reason:    res.Reason,
		})
	}
	return out, nil
}
