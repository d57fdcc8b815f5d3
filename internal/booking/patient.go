package booking

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/clinic-booking/internal/schedule"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Patient is who the appointment is for. Registered patients carry a UserID;
// guests only their contact details.
type Patient struct {
	FullName string  `json:"full_name" validate:"required,max=200"`
	Email    string  `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone    string  `json:"phone" validate:"required,min=8,max=16"`
	Note     string  `json:"note,omitempty" validate:"max=1000"`
	UserID   *string `json:"user_id,omitempty"`
}

// NormalizePhone keeps digits and a leading '+'.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (p Patient) normalized() Patient {
	p.FullName = strings.Join(strings.Fields(p.FullName), " ")
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = NormalizePhone(p.Phone)
	p.Note = strings.TrimSpace(p.Note)
	if p.UserID != nil && strings.TrimSpace(*p.UserID) == "" {
		p.UserID = nil
	}
	return p
}

var fieldMessages = map[string]string{
	"FullName": "El nombre completo es obligatorio",
	"Email":    "El correo electrónico no es válido",
	"Phone":    "El teléfono es obligatorio y debe ser válido",
	"Note":     "La nota es demasiado larga",
}

// Validate checks the normalized patient and names the first bad field.
func (p Patient) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		first := verrs[0]
		return schedule.Validation("booking.patient", first.Field()+" failed "+first.Tag(), fieldMessages[first.Field()])
	}
	return schedule.Validation("booking.patient", err.Error(), "")
}
