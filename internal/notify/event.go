// Package notify delivers appointment notifications asynchronously: the
// booking path publishes events onto a queue and a worker turns them into
// SMS and email.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/internal/appointments"
)

// EventType names what happened to an appointment.
type EventType string

const (
	EventRequested   EventType = "appointment.requested"
	EventRescheduled EventType = "appointment.rescheduled"
	EventConfirmed   EventType = "appointment.confirmed"
	EventCancelled   EventType = "appointment.cancelled"
)

// Event is the queued notification payload.
type Event struct {
	ID           string                   `json:"id"`
	Type         EventType                `json:"type"`
	Appointment  appointments.Appointment `json:"appointment"`
	PreviousDate string                   `json:"previous_date,omitempty"`
	PreviousTime string                   `json:"previous_time,omitempty"`
	OccurredAt   time.Time                `json:"occurred_at"`
}

// NewEvent snapshots appt for evtType.
func NewEvent(evtType EventType, appt *appointments.Appointment) Event {
	evt := Event{ID: uuid.NewString(), Type: evtType, OccurredAt: time.Now().UTC()}
	if appt != nil {
		evt.Appointment = *appt.Clone()
	}
	return evt
}

func encodeEvent(evt Event) (string, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("notify: failed to encode event: %w", err)
	}
	return string(body), nil
}

func decodeEvent(body string) (Event, error) {
	var evt Event
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return Event{}, fmt.Errorf("notify: failed to decode event: %w", err)
	}
	switch evt.Type {
	case EventRequested, EventRescheduled, EventConfirmed, EventCancelled:
	default:
		return Event{}, fmt.Errorf("notify: unknown event type %q", evt.Type)
	}
	return evt, nil
}
