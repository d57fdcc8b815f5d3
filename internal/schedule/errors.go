package schedule

import "errors"

// Kind classifies scheduling failures so transports can map them to responses.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindTooSoon           Kind = "too_soon"
	KindSlotConflict      Kind = "slot_conflict"
	KindNoopReschedule    Kind = "noop_reschedule"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
)

// Error is the domain error carried across the scheduling packages.
// Message, when set, is already localized and safe to show to patients.
type Error struct {
	Kind    Kind
	Op      string
	Detail  string
	Message string
	Err     error
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrTooSoon           = &Error{Kind: KindTooSoon}
	ErrSlotConflict      = &Error{Kind: KindSlotConflict}
	ErrNoopReschedule    = &Error{Kind: KindNoopReschedule}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrTooSoon) works
// regardless of op or detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Validation builds a validation error with a localized message for the caller.
func Validation(op, detail, message string) error {
	return &Error{Kind: KindValidation, Op: op, Detail: detail, Message: message}
}

// Unavailable wraps an I/O failure from a store.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindStoreUnavailable, Op: op, Err: err}
}

// NotFound reports a missing record.
func NotFound(op, detail string) error {
	return &Error{Kind: KindNotFound, Op: op, Detail: detail}
}

// KindOf returns the kind of the first *Error in the chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the caller may retry: lost races and store outages.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindSlotConflict, KindStoreUnavailable:
		return true
	default:
		return false
	}
}

var defaultMessages = map[Kind]string{
	KindValidation:        "Los datos enviados no son válidos",
	KindTooSoon:           "La hora seleccionada ya no puede reservarse, elige un horario posterior",
	KindSlotConflict:      "La fecha y hora seleccionada ya está ocupada",
	KindNoopReschedule:    "Selecciona una fecha u hora distinta a la de tu cita actual",
	KindStoreUnavailable:  "No pudimos procesar tu solicitud, intenta de nuevo más tarde",
	KindNotFound:          "La cita solicitada no existe",
	KindInvalidTransition: "La cita no puede cambiar a ese estado",
}

// UserMessage returns the localized message shown to patients and staff.
// Internal details never leak through it.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if msg, ok := defaultMessages[e.Kind]; ok {
			return msg
		}
	}
	return "Ocurrió un error inesperado, intenta de nuevo más tarde"
}
