package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

var spanishWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var spanishMonths = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
	"agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// formatWhen renders "lunes 22 de diciembre a las 10:00". Unparseable dates
// fall back to the raw values.
func formatWhen(date, clock string) string {
	d, err := schedule.ParseDate(date, time.UTC)
	if err != nil {
		return strings.TrimSpace(date + " " + clock)
	}
	return fmt.Sprintf("%s %d de %s a las %s", spanishWeekdays[d.Weekday()], d.Day(), spanishMonths[d.Month()], clock)
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// PatientSMS is the text sent to the patient for evt.
func PatientSMS(clinicName string, evt Event) string {
	a := evt.Appointment
	when := formatWhen(a.Date, a.Time)
	greeting := "Hola"
	if name := firstName(a.FullName); name != "" {
		greeting = "Hola " + name
	}
	switch evt.Type {
	case EventRequested:
		return fmt.Sprintf("%s, recibimos tu solicitud de cita en %s para el %s. Te avisaremos cuando sea confirmada.", greeting, clinicName, when)
	case EventRescheduled:
		return fmt.Sprintf("%s, tu cita en %s fue reprogramada del %s al %s.", greeting, clinicName, formatWhen(evt.PreviousDate, evt.PreviousTime), when)
	case EventConfirmed:
		return fmt.Sprintf("%s, tu cita en %s para el %s está confirmada. ¡Te esperamos!", greeting, clinicName, when)
	case EventCancelled:
		return fmt.Sprintf("%s, tu cita en %s del %s fue cancelada.", greeting, clinicName, when)
	}
	return ""
}

// StaffSMS is the alert sent to staff. Only new requests and reschedules need staff attention.
func StaffSMS(evt Event) (string, bool) {
	a := evt.Appointment
	switch evt.Type {
	case EventRequested:
		return fmt.Sprintf("Nueva solicitud de cita: %s (%s) para el %s.", a.FullName, a.Phone, formatWhen(a.Date, a.Time)), true
	case EventRescheduled:
		return fmt.Sprintf("Cita reprogramada: %s ahora el %s (antes %s).", a.FullName, formatWhen(a.Date, a.Time), formatWhen(evt.PreviousDate, evt.PreviousTime)), true
	}
	return "", false
}

// PatientEmail builds the email counterpart of PatientSMS.
func PatientEmail(clinicName string, evt Event) EmailMessage {
	subjects := map[EventType]string{
		EventRequested:   "Recibimos tu solicitud de cita",
		EventRescheduled: "Tu cita fue reprogramada",
		EventConfirmed:   "Tu cita está confirmada",
		EventCancelled:   "Tu cita fue cancelada",
	}
	body := PatientSMS(clinicName, evt)
	if evt.Appointment.Note != "" {
		body += "\n\nNota: " + evt.Appointment.Note
	}
	return EmailMessage{
		To:      evt.Appointment.Email,
		ToName:  evt.Appointment.FullName,
		Subject: fmt.Sprintf("%s - %s", subjects[evt.Type], clinicName),
		Body:    body,
	}
}
