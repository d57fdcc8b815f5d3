package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/appointments"
	"github.com/wolfman30/clinic-booking/internal/booking"
	httpmiddleware "github.com/wolfman30/clinic-booking/internal/http/middleware"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// AppointmentHandler serves booking, rescheduling and the staff workflow.
type AppointmentHandler struct {
	svc    *booking.Service
	logger *logging.Logger
}

func NewAppointmentHandler(svc *booking.Service, logger *logging.Logger) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{svc: svc, logger: logger}
}

// CreateAppointmentRequest is the body of POST /api/appointments.
type CreateAppointmentRequest struct {
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    string  `json:"phone"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Note     string  `json:"note"`
	UserID   *string `json:"user_id"`
}

// RescheduleRequest is the body of PUT /api/appointments/{id}.
type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Note string `json:"note"`
}

type appointmentResponse struct {
	Message     string                    `json:"message,omitempty"`
	Appointment *appointments.Appointment `json:"appointment"`
}

type listAppointmentsResponse struct {
	Appointments []*appointments.Appointment `json:"appointments"`
	Count        int                         `json:"count"`
}

// Create handles POST /api/appointments.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), req.Date, req.Time, booking.Patient{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Note:     req.Note,
		UserID:   req.UserID,
	})
	if err != nil {
		writeError(w, h.logger, err, "date", req.Date, "time", req.Time)
		return
	}

	h.logger.Info("appointment requested", "appointment_id", appt.ID, "date", appt.Date, "time", appt.Time)
	writeJSON(w, http.StatusCreated, appointmentResponse{
		Message:     "Tu cita fue solicitada, te confirmaremos por mensaje",
		Appointment: appt,
	})
}

// Reschedule handles PUT /api/appointments/{id}.
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), id, req.Date, req.Time, req.Note)
	if err != nil {
		writeError(w, h.logger, err, "appointment_id", id, "date", req.Date, "time", req.Time)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{
		Message:     "Tu cita fue reprogramada",
		Appointment: appt,
	})
}

// Get handles GET /api/appointments/{id}.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "appointment_id", id)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{Appointment: appt})
}

// Cancel handles POST /api/appointments/{id}/cancel and its admin twin.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.svc.Cancel, "Tu cita fue cancelada")
}

// Approve handles POST /api/admin/appointments/{id}/approve.
func (h *AppointmentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve", h.svc.Approve, "Cita confirmada")
}

// Complete handles POST /api/admin/appointments/{id}/complete.
func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete", h.svc.Complete, "Cita completada")
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, string) (*appointments.Appointment, error), message string) {
	id := chi.URLParam(r, "id")
	appt, err := apply(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "appointment_id", id, "action", action)
		return
	}
	args := []any{"appointment_id", appt.ID, "action", action, "status", appt.Status}
	if staff := httpmiddleware.AdminSubject(r.Context()); staff != "" {
		args = append(args, "staff", staff)
	}
	h.logger.Info("appointment status changed", args...)
	writeJSON(w, http.StatusOK, appointmentResponse{Message: message, Appointment: appt})
}

// List handles GET /api/admin/appointments?date=&from=&to=&status=&limit=.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := appointments.ListFilter{
		Date:     q.Get("date"),
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
		UserID:   q.Get("user_id"),
		Limit:    defaultListLimit,
	}
	if status := q.Get("status"); status != "" {
		filter.Status = appointments.Status(status)
		if !filter.Status.Valid() {
			writeError(w, h.logger, schedule.Validation("http.list_appointments", "unknown status "+status, "Estado de cita inválido"))
			return
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= maxListLimit {
			filter.Limit = limit
		}
	}

	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, listAppointmentsResponse{Appointments: list, Count: len(list)})
}
