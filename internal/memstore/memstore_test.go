package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var monday = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

func TestWithinTxDiscardsStagedWritesOnError(t *testing.T) {
	s := New()
	d := s.AddDoctor(schedule.Doctor{Name: "Dr. Who"})
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), d.ID, func(ctx context.Context, tx appointment.TxRepository) error {
		_, err := tx.CreateAppointment(ctx, appointment.NewAppointment{DoctorID: d.ID, Date: monday, Time: "09:00"})
		require.NoError(t, err)
		require.NoError(t, tx.InsertEvent(ctx, appointment.EventLog{EventType: "APPOINTMENT_BOOKED"}))

		taken, err := tx.HasConflict(ctx, d.ID, monday, "09:00")
		require.NoError(t, err)
		assert.True(t, taken, "staged rows are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	taken, err := s.HasConflict(context.Background(), d.ID, monday, "09:00")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.Empty(t, s.Events())
}

func TestWithinTxUnknownDoctor(t *testing.T) {
	s := New()
	err := s.WithinTx(context.Background(), [16]byte{1}, func(ctx context.Context, tx appointment.TxRepository) error {
		return nil
	})
	assert.ErrorIs(t, err, appointment.ErrDoctorNotFound)
}

func TestActiveSlotUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := s.AddDoctor(schedule.Doctor{Name: "Dr. Who"})
	in := appointment.NewAppointment{DoctorID: d.ID, Date: monday, Time: "09:00"}

	first, err := s.CreateAppointment(ctx, in)
	require.NoError(t, err)

	_, err = s.CreateAppointment(ctx, in)
	assert.ErrorIs(t, err, appointment.ErrSlotTaken)

	_, err = s.UpdateAppointmentStatus(ctx, first.ID, appointment.StatusScheduled, appointment.StatusCancelled)
	require.NoError(t, err)

	second, err := s.CreateAppointment(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestUpdateAppointmentStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New()
	d := s.AddDoctor(schedule.Doctor{Name: "Dr. Who"})
	a, err := s.CreateAppointment(ctx, appointment.NewAppointment{DoctorID: d.ID, Date: monday, Time: "09:00"})
	require.NoError(t, err)

	_, err = s.UpdateAppointmentStatus(ctx, a.ID, appointment.StatusConfirmed, appointment.StatusCompleted)
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)
}

func TestAdminWritesValidate(t *testing.T) {
	s := New()
	d := s.AddDoctor(schedule.Doctor{Name: "Dr. Who"})

	err := s.PutWeeklySchedule(schedule.WeeklySchedule{
		DoctorID:     d.ID,
		DayOfWeek:    time.Monday,
		StartTime:    schedule.MustClock("17:00"),
		EndTime:      schedule.MustClock("09:00"),
		SlotDuration: 15,
	})
	assert.Error(t, err)

	err = s.PutSpecialDate(schedule.SpecialDate{DoctorID: d.ID, Date: monday, Type: "VACATION"})
	assert.Error(t, err)

	// a BREAK without its window would silently drop the weekly break
	err = s.PutSpecialDate(schedule.SpecialDate{DoctorID: d.ID, Date: monday, Type: schedule.SpecialDateBreak})
	assert.Error(t, err)
	_, err = s.GetSpecialDate(context.Background(), d.ID, monday)
	assert.ErrorIs(t, err, schedule.ErrSpecialDateNotFound)

	require.NoError(t, s.PutSpecialDate(schedule.SpecialDate{
		DoctorID: d.ID,
		Date:     monday.Add(15 * time.Hour),
		Type:     schedule.SpecialDateHoliday,
	}))
	sd, err := s.GetSpecialDate(context.Background(), d.ID, monday)
	require.NoError(t, err)
	assert.True(t, sd.IsHoliday())
}
