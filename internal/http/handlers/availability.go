package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-booking/internal/availability"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// defaultDateSpan is how many days GET /api/available-dates covers when "to" is omitted.
const defaultDateSpan = 30

// AvailabilityHandler serves the patient-facing availability queries.
type AvailabilityHandler struct {
	resolver *availability.Resolver
	logger   *logging.Logger
}

func NewAvailabilityHandler(resolver *availability.Resolver, logger *logging.Logger) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{resolver: resolver, logger: logger}
}

// GetSlots handles GET /api/available-slots/{date}.
func (h *AvailabilityHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	res, err := h.resolver.GetAvailableSlots(r.Context(), date)
	if err != nil {
		writeError(w, h.logger, err, "date", date)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type availableDatesResponse struct {
	From string                     `json:"from"`
	To   string                     `json:"to"`
	Days []availability.DaySummary `json:"days"`
}

// GetDates handles GET /api/available-dates?from=&to=. from defaults to today
// in the clinic timezone and to spans defaultDateSpan days after it.
func (h *AvailabilityHandler) GetDates(w http.ResponseWriter, r *http.Request) {
	loc := h.resolver.Policy().Location
	from := r.URL.Query().Get("from")
	if from == "" {
		from = h.resolver.Now().Format(schedule.DateLayout)
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		start, err := schedule.ParseDate(from, loc)
		if err != nil {
			writeError(w, h.logger, schedule.Validation("http.available_dates", err.Error(), "La fecha de inicio no es válida"))
			return
		}
		to = start.AddDate(0, 0, defaultDateSpan).Format(schedule.DateLayout)
	}

	days, err := h.resolver.AvailableDays(r.Context(), from, to)
	if err != nil {
		writeError(w, h.logger, err, "from", from, "to", to)
		return
	}
	writeJSON(w, http.StatusOK, availableDatesResponse{From: from, To: to, Days: days})
}
