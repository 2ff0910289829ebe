package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound         = errors.New("doctor not found")
	ErrWeeklyScheduleNotFound = errors.New("weekly schedule not found")
	ErrSpecialDateNotFound    = errors.New("special date not found")
)

// Store is the read side of doctor reference data. Writes are administrative
// and keep (doctor, day) and (doctor, date) unique.
type Store interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetWeeklySchedule(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*WeeklySchedule, error)
	GetSpecialDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*SpecialDate, error)
}
