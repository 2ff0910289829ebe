package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// TxRepository is the part of the repository usable inside an atomic unit.
type TxRepository interface {
	// HasConflict reports an active appointment at exactly (doctor, date, time).
	HasConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, t string) (bool, error)
	// HasConflictInWindow reports an active appointment starting in [from, to).
	HasConflictInWindow(ctx context.Context, doctorID uuid.UUID, date time.Time, from, to schedule.Clock) (bool, error)

	// CreateAppointment inserts a SCHEDULED appointment. A clash with the
	// active-slot uniqueness constraint returns ErrSlotTaken.
	CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	TxRepository

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)

	// UpdateAppointmentStatus moves id from one status to another and returns
	// ErrAppointmentNotFound when no row has that id and current status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// WithinTx runs fn in a single transaction that serializes writers for the
	// doctor. Everything fn writes commits together or not at all.
	WithinTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository) error) error
}
