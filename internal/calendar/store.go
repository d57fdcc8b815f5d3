// Package calendar persists the clinic's weekly business hours and its
// date-range schedule exceptions.
package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

// Reader is what availability needs from the calendar.
type Reader interface {
	WeeklyHours(ctx context.Context) (schedule.Week, error)
	// ExceptionFor returns the exception covering date, or nil when none does.
	// Overlapping exceptions resolve to the most recently created.
	ExceptionFor(ctx context.Context, date string) (*schedule.Exception, error)
}

// Store adds the administrative write paths.
type Store interface {
	Reader
	ListExceptions(ctx context.Context, from, to string) ([]schedule.Exception, error)
	GetException(ctx context.Context, id string) (*schedule.Exception, error)
	UpsertWeeklyHours(ctx context.Context, hours schedule.WeeklyHours) error
	CreateException(ctx context.Context, exc *schedule.Exception) error
	UpdateException(ctx context.Context, exc *schedule.Exception) error
	DeleteException(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store seeded with a week.
type MemoryStore struct {
	mu         sync.RWMutex
	week       schedule.Week
	exceptions map[string]schedule.Exception
	now        func() time.Time
}

// NewMemoryStore creates a store holding week and no exceptions.
func NewMemoryStore(week schedule.Week) *MemoryStore {
	return &MemoryStore{
		week:       week,
		exceptions: make(map[string]schedule.Exception),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) WeeklyHours(ctx context.Context) (schedule.Week, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Week{}, schedule.Unavailable("calendar.weekly_hours", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.week, nil
}

func (s *MemoryStore) ExceptionFor(ctx context.Context, date string) (*schedule.Exception, error) {
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable("calendar.exception_for", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *schedule.Exception
	for _, exc := range s.exceptions {
		if !exc.Covers(date) {
			continue
		}
		if found == nil || exc.CreatedAt.After(found.CreatedAt) {
			e := exc
			found = &e
		}
	}
	return found, nil
}

func (s *MemoryStore) ListExceptions(ctx context.Context, from, to string) ([]schedule.Exception, error) {
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable("calendar.list_exceptions", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Exception, 0, len(s.exceptions))
	for _, exc := range s.exceptions {
		if overlaps(exc, from, to) {
			out = append(out, exc)
		}
	}
	sortExceptions(out)
	return out, nil
}

func (s *MemoryStore) GetException(ctx context.Context, id string) (*schedule.Exception, error) {
	if err := ctx.Err(); err != nil {
		return nil, schedule.Unavailable("calendar.get_exception", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	exc, ok := s.exceptions[id]
	if !ok {
		return nil, schedule.NotFound("calendar.get_exception", id)
	}
	return &exc, nil
}

func (s *MemoryStore) UpsertWeeklyHours(ctx context.Context, hours schedule.WeeklyHours) error {
	if err := ctx.Err(); err != nil {
		return schedule.Unavailable("calendar.upsert_weekly_hours", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.week[hours.DayOfWeek] = hours
	return nil
}

func (s *MemoryStore) CreateException(ctx context.Context, exc *schedule.Exception) error {
	if err := ctx.Err(); err != nil {
		return schedule.Unavailable("calendar.create_exception", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exc.ID = uuid.NewString()
	exc.CreatedAt = s.now()
	s.exceptions[exc.ID] = *exc
	return nil
}

func (s *MemoryStore) UpdateException(ctx context.Context, exc *schedule.Exception) error {
	if err := ctx.Err(); err != nil {
		return schedule.Unavailable("calendar.update_exception", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.exceptions[exc.ID]
	if !ok {
		return schedule.NotFound("calendar.update_exception", exc.ID)
	}
	exc.CreatedAt = prev.CreatedAt
	s.exceptions[exc.ID] = *exc
	return nil
}

func (s *MemoryStore) DeleteException(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return schedule.Unavailable("calendar.delete_exception", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exceptions[id]; !ok {
		return schedule.NotFound("calendar.delete_exception", id)
	}
	delete(s.exceptions, id)
	return nil
}

// overlaps reports whether exc intersects [from, to]. Empty bounds are open.
func overlaps(exc schedule.Exception, from, to string) bool {
	end := exc.EndDate
	if end == "" {
		end = exc.StartDate
	}
	if from != "" && end < from {
		return false
	}
	if to != "" && exc.StartDate > to {
		return false
	}
	return true
}

func sortExceptions(list []schedule.Exception) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartDate != list[j].StartDate {
			return list[i].StartDate < list[j].StartDate
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

var _ Store = (*MemoryStore)(nil)
