package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DB is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, doctor_id, patient_name, email, phone, date, time, status, notes, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a      Appointment
		status string
	)

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientName,
		&a.Email,
		&a.Phone,
		&a.Date,
		&a.Time,
		&status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.Date = schedule.DateOf(a.Date)
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Interface methods

func (r *PgRepository) HasConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, t string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND date = $2
			  AND time = $3
			  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		)
	`, doctorID, schedule.DateOf(date), t).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot conflict: %w", err)
	}
	return exists, nil
}

// HasConflictInWindow relies on HH:MM strings sorting like the times they
// encode; "24:00" sorts after every valid time.
func (r *PgRepository) HasConflictInWindow(ctx context.Context, doctorID uuid.UUID, date time.Time, from, to schedule.Clock) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND date = $2
			  AND time >= $3
			  AND time < $4
			  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		)
	`, doctorID, schedule.DateOf(date), from.String(), to.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check buffer window conflict: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	id := uuid.New()

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_name, email, phone, date, time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'SCHEDULED', $8, now(), now())
		RETURNING `+appointmentColumns,
		id, in.DoctorID, in.PatientName, in.Email, in.Phone, schedule.DateOf(in.Date), in.Time, in.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var (
		where []string
		args  []any
	)
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if f.Date != nil {
		args = append(args, schedule.DateOf(*f.Date))
		where = append(where, fmt.Sprintf("date = $%d", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "status NOT IN ('CANCELLED', 'NO_SHOW')")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + appointmentColumns + " FROM appointments")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY date, time, created_at")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from))

	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// WithinTx locks the doctor row for the life of the transaction, which
// serializes bookings for one doctor across every API instance. The partial
// unique index on active (doctor_id, date, time) backs this up.
func (r *PgRepository) WithinTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM doctors WHERE id = $1 FOR UPDATE`, doctorID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("lock doctor row: %w", err)
	}

	if err := fn(ctx, &PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
