package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var (
	testDate        = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	appointmentCols = []string{
		"id", "doctor_id", "patient_name", "email", "phone", "date", "time",
		"status", "notes", "created_at", "updated_at",
	}
)

func appointmentRow(id, doctorID uuid.UUID, status string) *pgxmock.Rows {
	notes := "first visit"
	now := time.Now().UTC()
	return pgxmock.NewRows(appointmentCols).AddRow(
		id, doctorID, "Jane Roe", "jane@example.com", "+15550001111",
		testDate, "09:00", status, &notes, now, now,
	)
}

func TestPgRepositoryHasConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	doctorID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(doctorID, testDate, "09:00").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.HasConflict(context.Background(), doctorID, testDate, "09:00")
	require.NoError(t, err)
	assert.True(t, taken)

	mock.ExpectQuery(`time >= \$3`).
		WithArgs(doctorID, testDate, "08:41", "09:20").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	from, to := schedule.BufferWindow(schedule.MustClock("09:00"), 15, 5)
	taken, err = repo.HasConflictInWindow(context.Background(), doctorID, testDate, from, to)
	require.NoError(t, err)
	assert.False(t, taken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryCreateAppointmentUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_slot_uniq"})

	_, err = NewPgRepository(mock).CreateAppointment(context.Background(), NewAppointment{
		DoctorID:    doctorID,
		PatientName: "Jane Roe",
		Email:       "jane@example.com",
		Phone:       "+15550001111",
		Date:        testDate,
		Time:        "09:00",
	})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetAppointmentByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id, doctorID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM appointments`).WithArgs(id).WillReturnRows(appointmentRow(id, doctorID, "CONFIRMED"))
	appt, err := repo.GetAppointmentByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, "09:00", appt.Time)
	require.NotNil(t, appt.Notes)
	assert.Equal(t, "first visit", *appt.Notes)

	missing := uuid.New()
	mock.ExpectQuery(`FROM appointments`).WithArgs(missing).WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetAppointmentByID(context.Background(), missing)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryListAppointmentsBuildsFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, doctorID := uuid.New(), uuid.New()
	date := testDate

	mock.ExpectQuery(`WHERE doctor_id = \$1 AND date = \$2 AND status NOT IN .* LIMIT \$3 OFFSET \$4`).
		WithArgs(doctorID, testDate, 10, 20).
		WillReturnRows(appointmentRow(id, doctorID, "SCHEDULED"))

	got, err := NewPgRepository(mock).ListAppointments(context.Background(), AppointmentFilter{
		DoctorID:   &doctorID,
		Date:       &date,
		ActiveOnly: true,
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryUpdateStatusIsConditional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	id, doctorID := uuid.New(), uuid.New()

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, "CONFIRMED", "SCHEDULED").
		WillReturnRows(appointmentRow(id, doctorID, "CONFIRMED"))
	appt, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusScheduled, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)

	mock.ExpectQuery(`UPDATE appointments`).
		WithArgs(id, "CANCELLED", "SCHEDULED").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.UpdateAppointmentStatus(context.Background(), id, StatusScheduled, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryWithinTxCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, doctorID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(doctorID))
	mock.ExpectQuery(`INSERT INTO appointments`).WillReturnRows(appointmentRow(id, doctorID, "SCHEDULED"))
	mock.ExpectExec(`INSERT INTO event_logs`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = NewPgRepository(mock).WithinTx(context.Background(), doctorID, func(ctx context.Context, tx TxRepository) error {
		appt, err := tx.CreateAppointment(ctx, NewAppointment{DoctorID: doctorID, Date: testDate, Time: "09:00"})
		if err != nil {
			return err
		}
		return tx.InsertEvent(ctx, EventLog{EventType: "APPOINTMENT_BOOKED", AppointmentID: &appt.ID})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryWithinTxRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(doctorID))
	mock.ExpectRollback()

	err = NewPgRepository(mock).WithinTx(context.Background(), doctorID, func(ctx context.Context, tx TxRepository) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryWithinTxUnknownDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(doctorID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err = NewPgRepository(mock).WithinTx(context.Background(), doctorID, func(ctx context.Context, tx TxRepository) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
