package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/calendar"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/schedule"
)

var clinicTZ = time.FixedZone("CST", -6*60*60)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Dispatch(_ context.Context, evt notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

func (n *recordingNotifier) types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

type harness struct {
	svc      *Service
	repo     appointments.Repository
	calendar *calendar.MemoryStore
	resolver *availability.Resolver
	notifier *recordingNotifier
}

// Now is Monday 2025-12-22 10:10 in the clinic.
var fixedNow = time.Date(2025, 12, 22, 10, 10, 0, 0, clinicTZ)

func newHarness(t *testing.T, repo appointments.Repository) *harness {
	t.Helper()
	if repo == nil {
		repo = appointments.NewMemoryRepository()
	}
	cal := calendar.NewMemoryStore(schedule.DefaultWeek())
	resolver := availability.NewResolver(cal, repo, availability.Options{
		Policy: availability.Policy{GranularityMinutes: 30, MinLead: 30 * time.Minute, Location: clinicTZ},
		Now:    func() time.Time { return fixedNow },
	})
	n := &recordingNotifier{}
	return &harness{
		svc:      NewService(repo, resolver, Options{ConflictRetries: 1, Notifier: n}),
		repo:     repo,
		calendar: cal,
		resolver: resolver,
		notifier: n,
	}
}

func guest() Patient {
	return Patient{FullName: "  Ana   López ", Email: "Ana@Example.com", Phone: "+52 (55) 1234-5678"}
}

func TestBookCreatesPendingAppointment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	appt, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusPending, appt.Status)
	assert.Equal(t, "Ana López", appt.FullName)
	assert.Equal(t, "ana@example.com", appt.Email)
	assert.Equal(t, "+525512345678", appt.Phone)
	assert.Equal(t, []notify.EventType{notify.EventRequested}, h.notifier.types())

	res, err := h.resolver.GetAvailableSlots(ctx, "2025-12-23")
	require.NoError(t, err)
	assert.False(t, res.Has("10:00"))
}

func TestBookNormalizesTimeFormat(t *testing.T) {
	h := newHarness(t, nil)
	appt, err := h.svc.Book(context.Background(), "2025-12-23", "09:30:00", guest())
	require.NoError(t, err)
	assert.Equal(t, "09:30", appt.Time)
}

func TestBookValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	cases := map[string]struct {
		date, clock string
		patient     Patient
	}{
		"missing date":  {"", "10:00", guest()},
		"bad date":      {"23/12/2025", "10:00", guest()},
		"bad time":      {"2025-12-23", "25:00", guest()},
		"missing name":  {"2025-12-23", "10:00", Patient{Phone: "5512345678"}},
		"missing phone": {"2025-12-23", "10:00", Patient{FullName: "Ana"}},
		"bad email":     {"2025-12-23", "10:00", Patient{FullName: "Ana", Phone: "5512345678", Email: "ana@"}},
		"closed sunday": {"2025-12-28", "10:00", guest()},
		"during break":  {"2025-12-23", "13:00", guest()},
		"after closing": {"2025-12-23", "18:00", guest()},
		"off the ticks": {"2025-12-23", "10:15", guest()},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Book(ctx, tc.date, tc.clock, tc.patient)
			assert.ErrorIs(t, err, schedule.ErrValidation)
			assert.NotEmpty(t, schedule.UserMessage(err))
		})
	}
	assert.Empty(t, h.notifier.types())
}

func TestBookTooSoonTodayButFineTomorrow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.svc.Book(ctx, "2025-12-22", "10:30", guest())
	assert.ErrorIs(t, err, schedule.ErrTooSoon)

	_, err = h.svc.Book(ctx, "2025-12-19", "10:30", guest())
	assert.ErrorIs(t, err, schedule.ErrTooSoon)

	appt, err := h.svc.Book(ctx, "2025-12-23", "10:30", guest())
	require.NoError(t, err)
	assert.Equal(t, "2025-12-23", appt.Date)

	_, err = h.svc.Book(ctx, "2025-12-22", "11:00", guest())
	require.NoError(t, err)
}

func TestBookTakenSlotReturnsConflictWithAlternatives(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)

	_, err = h.svc.Book(ctx, "2025-12-23", "10:00", Patient{FullName: "Luis", Phone: "5598765432"})
	require.ErrorIs(t, err, schedule.ErrSlotConflict)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.False(t, conflict.Available.Has("10:00"))
	assert.True(t, conflict.Available.Has("10:30"))
	assert.Equal(t, "La fecha y hora seleccionada ya está ocupada", schedule.UserMessage(err))
	assert.True(t, schedule.Retryable(err))
}

func TestConcurrentBookingsExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	const n = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Book(ctx, "2025-12-23", "15:00", guest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, schedule.ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	booked, err := h.repo.BookedTimes(ctx, "2025-12-23", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"15:00"}, booked)
}

// racingRepository loses the first write to a phantom booking that is
// cancelled before availability is re-read.
type racingRepository struct {
	*appointments.MemoryRepository
	mu        sync.Mutex
	conflicts int
}

func (r *racingRepository) Create(ctx context.Context, appt *appointments.Appointment) error {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return appointments.ErrDuplicateSlot
	}
	r.mu.Unlock()
	return r.MemoryRepository.Create(ctx, appt)
}

func TestBookRetriesWhenSlotFreesUp(t *testing.T) {
	repo := &racingRepository{MemoryRepository: appointments.NewMemoryRepository(), conflicts: 1}
	h := newHarness(t, repo)

	appt, err := h.svc.Book(context.Background(), "2025-12-23", "11:00", guest())
	require.NoError(t, err)
	assert.Equal(t, "11:00", appt.Time)
}

func TestBookGivesUpAfterRetryBudget(t *testing.T) {
	repo := &racingRepository{MemoryRepository: appointments.NewMemoryRepository(), conflicts: 5}
	h := newHarness(t, repo)

	_, err := h.svc.Book(context.Background(), "2025-12-23", "11:00", guest())
	assert.ErrorIs(t, err, schedule.ErrSlotConflict)
	assert.Equal(t, 3, repo.conflicts)
}

func TestRescheduleMovesAndFreesOldSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	appt, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)

	moved, err := h.svc.Reschedule(ctx, appt.ID, "2025-12-24", "12:00", "llegaré temprano")
	require.NoError(t, err)
	assert.Equal(t, "2025-12-24", moved.Date)
	assert.Equal(t, "12:00", moved.Time)
	assert.Equal(t, "llegaré temprano", moved.Note)

	res, err := h.resolver.GetAvailableSlots(ctx, "2025-12-23")
	require.NoError(t, err)
	assert.True(t, res.Has("10:00"))

	h.notifier.mu.Lock()
	last := h.notifier.events[len(h.notifier.events)-1]
	h.notifier.mu.Unlock()
	assert.Equal(t, notify.EventRescheduled, last.Type)
	assert.Equal(t, "2025-12-23", last.PreviousDate)
	assert.Equal(t, "10:00", last.PreviousTime)
}

func TestRescheduleWithinSameDay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	appt, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)

	moved, err := h.svc.Reschedule(ctx, appt.ID, "2025-12-23", "10:30", "")
	require.NoError(t, err)
	assert.Equal(t, "10:30", moved.Time)
}

func TestRescheduleToSameSlotIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	appt, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, appt.ID, "2025-12-23", "10:00", "")
	assert.ErrorIs(t, err, schedule.ErrNoopReschedule)
	assert.False(t, schedule.Retryable(err))
}

func TestRescheduleUnknownAndCancelled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	_, err := h.svc.Reschedule(ctx, "missing", "2025-12-23", "10:00", "")
	assert.ErrorIs(t, err, schedule.ErrNotFound)

	appt, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, appt.ID, "2025-12-24", "10:00", "")
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)
}

func TestRescheduleOntoTakenSlotConflicts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	a, err := h.svc.Book(ctx, "2025-12-23", "10:00", guest())
	require.NoError(t, err)
	_, err = h.svc.Book(ctx, "2025-12-23", "10:30", guest())
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, a.ID, "2025-12-23", "10:30", "")
	assert.ErrorIs(t, err, schedule.ErrSlotConflict)
}

func TestStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	appt, err := h.svc.Book(ctx, "2025-12-23", "16:00", guest())
	require.NoError(t, err)

	_, err = h.svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)

	confirmed, err := h.svc.Approve(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusConfirmed, confirmed.Status)

	cancelled, err := h.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointments.StatusCancelled, cancelled.Status)

	res, err := h.resolver.GetAvailableSlots(ctx, "2025-12-23")
	require.NoError(t, err)
	assert.True(t, res.Has("16:00"))

	_, err = h.svc.Approve(ctx, appt.ID)
	assert.ErrorIs(t, err, schedule.ErrInvalidTransition)

	assert.Equal(t, []notify.EventType{notify.EventRequested, notify.EventConfirmed, notify.EventCancelled}, h.notifier.types())
}

func TestNotifierFailureDoesNotFailBooking(t *testing.T) {
	h := newHarness(t, nil)
	h.notifier.err = errors.New("queue down")

	appt, err := h.svc.Book(context.Background(), "2025-12-23", "10:00", guest())
	require.NoError(t, err)
	assert.NotEmpty(t, appt.ID)
}

func TestBookOnClosedExceptionDay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	require.NoError(t, h.calendar.CreateException(ctx, &schedule.Exception{StartDate: "2025-12-25", EndDate: "2025-12-25", Reason: "Navidad"}))

	_, err := h.svc.Book(ctx, "2025-12-25", "10:00", guest())
	assert.ErrorIs(t, err, schedule.ErrValidation)
	assert.Equal(t, "La clínica no atiende en la fecha seleccionada", schedule.UserMessage(err))
}
