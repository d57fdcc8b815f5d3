package appointments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

// Repository persists appointments.
type Repository interface {
	// Create inserts appt, assigning ID and timestamps. ErrDuplicateSlot when the slot is held.
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	// Move changes date/time (and note when non-nil) of an active appointment.
	Move(ctx context.Context, id, date, clock string, note *string) (*Appointment, error)
	TransitionStatus(ctx context.Context, id string, to Status) (*Appointment, error)
	// BookedTimes lists HH:MM times held by active appointments on date, skipping excludeID.
	BookedTimes(ctx context.Context, date, excludeID string) ([]string, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
}

func invalidTransition(op string, from, to Status) error {
	return &schedule.Error{
		Kind:   schedule.KindInvalidTransition,
		Op:     op,
		Detail: fmt.Sprintf("%s -> %s", from, to),
	}
}

// MemoryRepository keeps appointments in memory. It enforces the same
// uniqueness rule as the Postgres partial index.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*Appointment
	now   func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]*Appointment),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) slotHeld(date, clock, excludeID string) bool {
	for id, a := range r.items {
		if id != excludeID && a.Status.OccupiesSlot() && a.Date == date && a.Time == clock {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, appt *Appointment) error {
	if err := ctx.Err(); err != nil {
		return schedule.Unavailable("appointments.create", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.Status == "" {
		appt.Status = StatusPending
	}
	if appt.Status.OccupiesSlot() && r.slotHeld(appt.Date, appt.Time, "") {
		return fmt.Errorf("appointments.create: %w", ErrDuplicateSlot)
	}
	now := r.now()
	appt.ID = uuid.NewString()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	r.items[appt.ID] = appt.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable("appointments.get", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, schedule.NotFound("appointments.get", id)
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) Move(ctx context.Context, id, date, clock string, note *string) (*Appointment, error) {
	const op = "appointments.move"
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable(op, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, schedule.NotFound(op, id)
	}
	if !a.Status.OccupiesSlot() {
		return nil, invalidTransition(op, a.Status, a.Status)
	}
	if r.slotHeld(date, clock, id) {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateSlot)
	}
	a.Date, a.Time = date, clock
	if note != nil {
		a.Note = *note
	}
	a.UpdatedAt = r.now()
	return a.Clone(), nil
}

func (r *MemoryRepository) TransitionStatus(ctx context.Context, id string, to Status) (*Appointment, error) {
	const op = "appointments.transition"
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable(op, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, schedule.NotFound(op, id)
	}
	if !a.Status.CanTransitionTo(to) {
		return nil, invalidTransition(op, a.Status, to)
	}
	a.Status = to
	a.UpdatedAt = r.now()
	return a.Clone(), nil
}

func (r *MemoryRepository) BookedTimes(ctx context.Context, date, excludeID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable("appointments.booked_times", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for id, a := range r.items {
		if id != excludeID && a.Date == date && a.Status.OccupiesSlot() {
			out = append(out, a.Time)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable("appointments.list", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Appointment
	for _, a := range r.items {
		if !filter.matches(a) {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f ListFilter) matches(a *Appointment) bool {
	switch {
	case f.Date != "" && a.Date != f.Date:
		return false
	case f.FromDate != "" && a.Date < f.FromDate:
		return false
	case f.ToDate != "" && a.Date > f.ToDate:
		return false
	case f.Status != "" && a.Status != f.Status:
		return false
	case f.UserID != "" && (a.UserID == nil || *a.UserID != f.UserID):
		return false
	}
	return true
}
