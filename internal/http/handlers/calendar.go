package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/calendar"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// CalendarHandler lets staff manage weekly hours and schedule exceptions.
type CalendarHandler struct {
	store  calendar.Store
	logger *logging.Logger
}

func NewCalendarHandler(store calendar.Store, logger *logging.Logger) *CalendarHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarHandler{store: store, logger: logger}
}

type businessHoursDay struct {
	Day string `json:"day"`
	schedule.WeeklyHours
}

type businessHoursResponse struct {
	BusinessHours []businessHoursDay `json:"business_hours"`
}

// BusinessHoursRequest is the body of PUT /api/admin/business-hours/{day_of_week}.
type BusinessHoursRequest struct {
	IsOpen     bool    `json:"is_open"`
	OpenTime   *string `json:"open_time"`
	CloseTime  *string `json:"close_time"`
	BreakStart *string `json:"break_start"`
	BreakEnd   *string `json:"break_end"`
}

// ExceptionRequest is the body for creating or replacing a schedule exception.
type ExceptionRequest struct {
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	IsOpen     bool    `json:"is_open"`
	OpenTime   *string `json:"open_time"`
	CloseTime  *string `json:"close_time"`
	BreakStart *string `json:"break_start"`
	BreakEnd   *string `json:"break_end"`
	Reason     string  `json:"reason"`
}

func (req ExceptionRequest) exception(id string) *schedule.Exception {
	exc := &schedule.Exception{
		ID:         id,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		IsOpen:     req.IsOpen,
		OpenTime:   blankToNil(req.OpenTime),
		CloseTime:  blankToNil(req.CloseTime),
		BreakStart: blankToNil(req.BreakStart),
		BreakEnd:   blankToNil(req.BreakEnd),
		Reason:     req.Reason,
	}
	exc.Normalize()
	return exc
}

type exceptionsResponse struct {
	Exceptions []schedule.Exception `json:"exceptions"`
}

// GetBusinessHours handles GET /api/admin/business-hours.
func (h *CalendarHandler) GetBusinessHours(w http.ResponseWriter, r *http.Request) {
	week, err := h.store.WeeklyHours(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	days := week.Days()
	resp := businessHoursResponse{BusinessHours: make([]businessHoursDay, 0, len(days))}
	for _, d := range days {
		resp.BusinessHours = append(resp.BusinessHours, businessHoursDay{Day: schedule.DayName(d.DayOfWeek), WeeklyHours: d})
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutBusinessHours handles PUT /api/admin/business-hours/{day_of_week}.
func (h *CalendarHandler) PutBusinessHours(w http.ResponseWriter, r *http.Request) {
	day, err := schedule.ParseDayName(chi.URLParam(r, "day_of_week"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req BusinessHoursRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	hours := schedule.WeeklyHours{
		DayOfWeek:  day,
		IsOpen:     req.IsOpen,
		OpenTime:   blankToNil(req.OpenTime),
		CloseTime:  blankToNil(req.CloseTime),
		BreakStart: blankToNil(req.BreakStart),
		BreakEnd:   blankToNil(req.BreakEnd),
	}
	if err := hours.Validate(); err != nil {
		writeError(w, h.logger, err, "day", schedule.DayName(day))
		return
	}
	if err := h.store.UpsertWeeklyHours(r.Context(), hours); err != nil {
		writeError(w, h.logger, err, "day", schedule.DayName(day))
		return
	}

	h.logger.Info("business hours updated", "day", schedule.DayName(day), "is_open", hours.IsOpen)
	writeJSON(w, http.StatusOK, businessHoursDay{Day: schedule.DayName(day), WeeklyHours: hours})
}

// ListExceptions handles GET /api/admin/schedule-exceptions?from=&to=.
func (h *CalendarHandler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	list, err := h.store.ListExceptions(r.Context(), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []schedule.Exception{}
	}
	writeJSON(w, http.StatusOK, exceptionsResponse{Exceptions: list})
}

// CreateException handles POST /api/admin/schedule-exceptions.
func (h *CalendarHandler) CreateException(w http.ResponseWriter, r *http.Request) {
	var req ExceptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	exc := req.exception("")
	if err := h.validateException(r.Context(), exc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.store.CreateException(r.Context(), exc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Info("schedule exception created", "exception_id", exc.ID, "start_date", exc.StartDate, "end_date", exc.EndDate, "is_open", exc.IsOpen)
	writeJSON(w, http.StatusCreated, exc)
}

// UpdateException handles PUT /api/admin/schedule-exceptions/{id}.
func (h *CalendarHandler) UpdateException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ExceptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	exc := req.exception(id)
	if err := h.validateException(r.Context(), exc); err != nil {
		writeError(w, h.logger, err, "exception_id", id)
		return
	}
	if err := h.store.UpdateException(r.Context(), exc); err != nil {
		writeError(w, h.logger, err, "exception_id", id)
		return
	}
	h.logger.Info("schedule exception updated", "exception_id", id)
	writeJSON(w, http.StatusOK, exc)
}

// DeleteException handles DELETE /api/admin/schedule-exceptions/{id}.
func (h *CalendarHandler) DeleteException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteException(r.Context(), id); err != nil {
		writeError(w, h.logger, err, "exception_id", id)
		return
	}
	h.logger.Info("schedule exception deleted", "exception_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) validateException(ctx context.Context, exc *schedule.Exception) error {
	if err := exc.Validate(); err != nil {
		return err
	}
	if !exc.IsOpen || exc.HasCustomHours() {
		return nil
	}
	week, err := h.store.WeeklyHours(ctx)
	if err != nil {
		return err
	}
	return exc.ValidateAgainst(week)
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	if trimmed := strings.TrimSpace(*s); trimmed != "" {
		return &trimmed
	}
	return nil
}
