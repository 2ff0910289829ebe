package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var (
	ErrValidation           = errors.New("invalid request")
	ErrDoctorNotFound       = schedule.ErrDoctorNotFound
	ErrScheduleNotAvailable = errors.New("doctor has no active schedule on this day")
	ErrHoliday              = errors.New("doctor is not available on this date")
	ErrInvalidTimeSlot      = errors.New("time is outside working hours or inside a break")
	ErrSlotTaken            = errors.New("slot is already taken")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrStorage              = errors.New("storage failure")
)

// Machine readable codes returned to API clients.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeDoctorNotFound       = "DOCTOR_NOT_FOUND"
	CodeScheduleNotAvailable = "SCHEDULE_NOT_AVAILABLE"
	CodeHoliday              = "HOLIDAY"
	CodeInvalidTimeSlot      = "INVALID_TIME_SLOT"
	CodeSlotTaken            = "SLOT_TAKEN"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeNotFound             = "NOT_FOUND"
	CodeStorage              = "STORAGE_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrValidation, CodeValidation},
	{ErrDoctorNotFound, CodeDoctorNotFound},
	{ErrScheduleNotAvailable, CodeScheduleNotAvailable},
	{ErrHoliday, CodeHoliday},
	{ErrInvalidTimeSlot, CodeInvalidTimeSlot},
	{ErrSlotTaken, CodeSlotTaken},
	{ErrInvalidTransition, CodeInvalidTransition},
	{ErrAppointmentNotFound, CodeNotFound},
	{ErrStorage, CodeStorage},
}

// ErrorCode maps an error from this package to its code. Unknown errors are
// reported as storage failures; nil gives "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeStorage
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
