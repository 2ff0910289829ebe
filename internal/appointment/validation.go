package appointment

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// BookingRequest is the inbound booking payload.
type BookingRequest struct {
	DoctorID    string  `json:"doctorId" validate:"required,uuid"`
	PatientName string  `json:"patientName" validate:"required,max=200"`
	Email       string  `json:"email" validate:"required,email,max=254"`
	Phone       string  `json:"phone" validate:"required,phone"`
	Date        string  `json:"date" validate:"required,isodate"`
	Time        string  `json:"time" validate:"required,clock"`
	Notes       *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{7,20}$`)
	validate     = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return isPhone(fl.Field().String())
	})
	mustRegister(v, "clock", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseClock(fl.Field().String())
		return err == nil
	})
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseDate(fl.Field().String())
		return err == nil
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// isPhone accepts loosely formatted international numbers with at least
// seven digits.
func isPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7
}

// bookingInput is a BookingRequest after validation and parsing.
type bookingInput struct {
	NewAppointment
	clock schedule.Clock
}

func (r BookingRequest) normalize() BookingRequest {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	if r.Notes != nil {
		n := strings.TrimSpace(*r.Notes)
		if n == "" {
			r.Notes = nil
		} else {
			r.Notes = &n
		}
	}
	return r
}

func (r BookingRequest) parse() (*bookingInput, error) {
	r = r.normalize()
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, formatValidationError(err))
	}

	doctorID, err := uuid.Parse(r.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: doctorId: %v", ErrValidation, err)
	}
	date, err := schedule.ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date: %v", ErrValidation, err)
	}
	clock, err := schedule.ParseClock(r.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: time: %v", ErrValidation, err)
	}

	return &bookingInput{
		NewAppointment: NewAppointment{
			DoctorID:    doctorID,
			PatientName: r.PatientName,
			Email:       r.Email,
			Phone:       r.Phone,
			Date:        date,
			Time:        clock.String(),
			Notes:       r.Notes,
		},
		clock: clock,
	}, nil
}

func formatValidationError(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), describeTag(e)))
	}
	return strings.Join(msgs, "; ")
}

func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a phone number"
	case "clock":
		return "must be HH:MM"
	case "isodate":
		return "must be YYYY-MM-DD"
	case "uuid":
		return "must be a UUID"
	case "max":
		return "must be at most " + e.Param() + " characters"
	}
	return "failed " + e.Tag()
}

// dateString is used in log fields and event payloads.
func dateString(t time.Time) string {
	return schedule.FormatDate(t)
}
