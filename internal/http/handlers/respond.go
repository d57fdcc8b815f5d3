// Package handlers exposes the scheduling engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/clinic-booking/internal/booking"
	"github.com/wolfman30/clinic-booking/internal/schedule"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const maxBodyBytes = 64 << 10

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error          string    `json:"error"`
	Code           string    `json:"code"`
	AvailableSlots *[]string `json:"availableSlots,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps a domain error kind to an HTTP status. Slot conflicts stay
// 400 because the booking front end treats any 400 as "pick another time".
func statusFor(kind schedule.Kind) int {
	switch kind {
	case schedule.KindValidation, schedule.KindTooSoon, schedule.KindNoopReschedule, schedule.KindSlotConflict:
		return http.StatusBadRequest
	case schedule.KindNotFound:
		return http.StatusNotFound
	case schedule.KindInvalidTransition:
		return http.StatusConflict
	case schedule.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err with its internal detail and answers with the localized message only.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error, args ...any) {
	kind := schedule.KindOf(err)
	status := statusFor(kind)
	code := string(kind)
	if code == "" {
		code = "internal_error"
	}

	args = append(args, "error", err, "code", code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", args...)
	} else {
		logger.Warn("request rejected", args...)
	}

	resp := errorResponse{Error: schedule.UserMessage(err), Code: code}
	var conflict *booking.ConflictError
	if errors.As(err, &conflict) {
		slots := conflict.Available.Slots
		if slots == nil {
			slots = []string{}
		}
		resp.AvailableSlots = &slots
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return schedule.Validation("http.decode", "empty body", "El cuerpo de la solicitud está vacío")
		}
		return schedule.Validation("http.decode", err.Error(), "El cuerpo de la solicitud no es válido")
	}
	return nil
}
