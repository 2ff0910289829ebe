package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// OccupiesSlot reports whether an appointment in this status blocks its slot.
func (s Status) OccupiesSlot() bool {
	return s != StatusCancelled && s != StatusNoShow
}

type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientName string
	Email       string
	Phone       string
	Date        time.Time // calendar date, midnight UTC
	Time        string    // HH:MM
	Status      Status
	Notes       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAppointment is the validated input for a create.
type NewAppointment struct {
	DoctorID    uuid.UUID
	PatientName string
	Email       string
	Phone       string
	Date        time.Time
	Time        string
	Notes       *string
}

type AppointmentFilter struct {
	DoctorID   *uuid.UUID
	Date       *time.Time
	ActiveOnly bool
	Limit      int // 0 means no limit
	Offset     int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
