// Package booking validates and commits appointment bookings, reschedules
// and status changes against live availability.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.booking")

// DefaultConflictRetries is how many extra writes follow a lost race when
// the slot turns out to be free again.
const DefaultConflictRetries = 1

// Notifier receives committed changes. Errors never undo the change.
type Notifier interface {
	Dispatch(ctx context.Context, evt notify.Event) error
}

// ConflictError is a lost race for a slot. Available holds the date's
// availability as of the failed attempt so the caller can offer alternatives.
type ConflictError struct {
	Date      string
	Time      string
	Available availability.Result
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking: slot %s %s already taken", e.Date, e.Time)
}

func (e *ConflictError) Unwrap() error {
	return &schedule.Error{Kind: schedule.KindSlotConflict, Op: "booking.write", Detail: e.Date + " " + e.Time}
}

// Options configures a Service.
type Options struct {
	ConflictRetries int
	Notifier        Notifier
	Metrics         *metrics.BookingMetrics
	Logger          *logging.Logger
}

// Service runs the booking operations.
type Service struct {
	repo     appointments.Repository
	resolver *availability.Resolver
	retries  int
	notifier Notifier
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

func NewService(repo appointments.Repository, resolver *availability.Resolver, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		retries:  opts.ConflictRetries,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Book creates a pending appointment.
func (s *Service) Book(ctx context.Context, date, clock string, patient Patient) (*appointments.Appointment, error) {
	return s.BookOrReschedule(ctx, "", date, clock, patient)
}

// Reschedule moves an active appointment. A non-empty note replaces the stored one.
func (s *Service) Reschedule(ctx context.Context, id, date, clock, note string) (*appointments.Appointment, error) {
	if id == "" {
		return nil, schedule.Validation("booking.reschedule", "missing id", "Falta el identificador de la cita")
	}
	return s.BookOrReschedule(ctx, id, date, clock, Patient{Note: note})
}

// BookOrReschedule books a new appointment when existingID is empty and
// moves existingID otherwise. Checks run in order: well-formed input, lead
// time, current state of the appointment, live availability, then the write.
func (s *Service) BookOrReschedule(ctx context.Context, existingID, date, clock string, patient Patient) (appt *appointments.Appointment, err error) {
	op := "book"
	if existingID != "" {
		op = "reschedule"
	}
	ctx, span := tracer.Start(ctx, "booking."+op)
	defer span.End()
	span.SetAttributes(attribute.String("clinic.date", date), attribute.String("clinic.time", clock))
	defer func() { s.observe(op, err, span.RecordError) }()

	policy := s.resolver.Policy()
	day, tod, err := parseSlot(date, clock, policy.Location)
	if err != nil {
		return nil, err
	}
	date, clock = day.Format(schedule.DateLayout), tod.String()

	patient = patient.normalized()
	if existingID == "" {
		if err := patient.Validate(); err != nil {
			return nil, err
		}
	}

	now := s.resolver.Now()
	if start := tod.On(day, policy.Location); start.Before(now.Add(policy.MinLead)) {
		return nil, &schedule.Error{
			Kind:   schedule.KindTooSoon,
			Op:     "booking." + op,
			Detail: fmt.Sprintf("%s starts before %s", start.Format(time.RFC3339), now.Add(policy.MinLead).Format(time.RFC3339)),
		}
	}

	var current *appointments.Appointment
	if existingID != "" {
		if current, err = s.repo.Get(ctx, existingID); err != nil {
			return nil, err
		}
		if !current.Status.OccupiesSlot() {
			return nil, &schedule.Error{Kind: schedule.KindInvalidTransition, Op: "booking.reschedule", Detail: string(current.Status)}
		}
		if current.Date == date && current.Time == clock {
			return nil, &schedule.Error{Kind: schedule.KindNoopReschedule, Op: "booking.reschedule", Detail: date + " " + clock}
		}
	}

	for attempt := 0; ; attempt++ {
		res, err := s.resolver.ForReschedule(ctx, date, existingID)
		if err != nil {
			return nil, err
		}
		if !res.Has(clock) {
			if attempt == 0 && !onGrid(res, clock, policy.GranularityMinutes) {
				return nil, outsideHours(res)
			}
			return nil, &ConflictError{Date: date, Time: clock, Available: res}
		}
		if attempt > s.retries {
			return nil, &ConflictError{Date: date, Time: clock, Available: res}
		}

		appt, err = s.write(ctx, current, date, clock, patient)
		if errors.Is(err, appointments.ErrDuplicateSlot) {
			s.metrics.ObserveSlotConflict()
			s.logger.Warn("slot taken concurrently", "date", date, "time", clock, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	evt := notify.NewEvent(notify.EventRequested, appt)
	if current != nil {
		evt.Type = notify.EventRescheduled
		evt.PreviousDate, evt.PreviousTime = current.Date, current.Time
	}
	s.dispatch(ctx, evt)
	return appt, nil
}

func (s *Service) write(ctx context.Context, current *appointments.Appointment, date, clock string, p Patient) (*appointments.Appointment, error) {
	if current != nil {
		var note *string
		if p.Note != "" {
			note = &p.Note
		}
		return s.repo.Move(ctx, current.ID, date, clock, note)
	}
	appt := &appointments.Appointment{
		Date:     date,
		Time:     clock,
		Status:   appointments.StatusPending,
		UserID:   p.UserID,
		FullName: p.FullName,
		Email:    p.Email,
		Phone:    p.Phone,
		Note:     p.Note,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Cancel releases the appointment's slot.
func (s *Service) Cancel(ctx context.Context, id string) (*appointments.Appointment, error) {
	return s.transition(ctx, "cancel", id, appointments.StatusCancelled, notify.EventCancelled)
}

// Approve confirms a pending appointment.
func (s *Service) Approve(ctx context.Context, id string) (*appointments.Appointment, error) {
	return s.transition(ctx, "approve", id, appointments.StatusConfirmed, notify.EventConfirmed)
}

// Complete marks a confirmed appointment as attended.
func (s *Service) Complete(ctx context.Context, id string) (*appointments.Appointment, error) {
	return s.transition(ctx, "complete", id, appointments.StatusCompleted, "")
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id string) (*appointments.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// List returns appointments matching filter.
func (s *Service) List(ctx context.Context, filter appointments.ListFilter) ([]*appointments.Appointment, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(ctx context.Context, op, id string, to appointments.Status, evtType notify.EventType) (appt *appointments.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "booking."+op)
	defer span.End()
	defer func() { s.observe(op, err, span.RecordError) }()

	appt, err = s.repo.TransitionStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}
	if evtType != "" {
		s.dispatch(ctx, notify.NewEvent(evtType, appt))
	}
	return appt, nil
}

func (s *Service) dispatch(ctx context.Context, evt notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, evt); err != nil {
		s.logger.Error("notification dispatch failed", "error", err, "event_type", evt.Type, "appointment_id", evt.Appointment.ID)
	}
}

func (s *Service) observe(op string, err error, record func(error, ...trace.EventOption)) {
	outcome := "ok"
	if err != nil {
		outcome = string(schedule.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		record(err)
	}
	s.metrics.ObserveBooking(op, outcome)
}

func parseSlot(date, clock string, loc *time.Location) (time.Time, schedule.TimeOfDay, error) {
	const op = "booking.parse"
	if date == "" || clock == "" {
		return time.Time{}, 0, schedule.Validation(op, "date and time required", "La fecha y la hora son obligatorias")
	}
	day, err := schedule.ParseDate(date, loc)
	if err != nil {
		return time.Time{}, 0, schedule.Validation(op, err.Error(), "La fecha no es válida")
	}
	tod, err := schedule.ParseTimeOfDay(clock)
	if err != nil {
		return time.Time{}, 0, schedule.Validation(op, err.Error(), "La hora no es válida")
	}
	return day, tod, nil
}

// onGrid reports whether clock is one of the day's slot ticks, booked or not.
func onGrid(res availability.Result, clock string, granularity int) bool {
	h := res.BusinessHours
	if !h.IsOpen {
		return false
	}
	slots, err := schedule.GenerateSlotStrings(h.OpenTime, h.CloseTime, h.BreakStart, h.BreakEnd, granularity)
	if err != nil {
		return false
	}
	for _, s := range slots {
		if s == clock {
			return true
		}
	}
	return false
}

func outsideHours(res availability.Result) error {
	const op = "booking.availability"
	if !res.BusinessHours.IsOpen {
		return schedule.Validation(op, res.Reason, "La clínica no atiende en la fecha seleccionada")
	}
	return schedule.Validation(op, "time outside business hours", "La hora seleccionada está fuera del horario de atención")
}
