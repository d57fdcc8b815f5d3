// Package appointments stores booked appointments and enforces the
// one-active-appointment-per-slot rule at the storage layer.
package appointments

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ErrDuplicateSlot is returned by Create and Move when another pending or
// confirmed appointment already holds the (date, time) pair.
var ErrDuplicateSlot = errors.New("appointments: active appointment already holds this slot")

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// OccupiesSlot is true for pending and confirmed appointments.
func (s Status) OccupiesSlot() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo encodes the status machine:
// pending -> confirmed | cancelled, confirmed -> completed | cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// sourcesFor lists the statuses allowed to move into next.
func sourcesFor(next Status) []Status {
	var out []Status
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled} {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// Appointment is one booking of a slot by a registered patient or a guest.
type Appointment struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Status    Status    `json:"status"`
	UserID    *string   `json:"user_id,omitempty"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand out of a store.
func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	c := *a
	if a.UserID != nil {
		uid := *a.UserID
		c.UserID = &uid
	}
	return &c
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Date     string
	FromDate string
	ToDate   string
	Status   Status
	UserID   string
	Limit    int
}
