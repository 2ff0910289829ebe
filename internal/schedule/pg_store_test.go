package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStoreGetWeeklySchedule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	rowID := uuid.New()
	breakStart, breakEnd := "13:00", "14:00"

	mock.ExpectQuery(`FROM weekly_schedules`).
		WithArgs(doctorID, 1).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "doctor_id", "day_of_week", "is_active", "start_time", "end_time",
			"break_start", "break_end", "slot_duration", "buffer_time",
		}).AddRow(rowID, doctorID, 1, true, "09:00", "17:00", &breakStart, &breakEnd, 15, 5))

	ws, err := NewPgStore(mock).GetWeeklySchedule(context.Background(), doctorID, time.Monday)
	require.NoError(t, err)

	assert.Equal(t, time.Monday, ws.DayOfWeek)
	assert.Equal(t, MustClock("09:00"), ws.StartTime)
	assert.Equal(t, MustClock("17:00"), ws.EndTime)
	require.True(t, ws.HasBreak())
	assert.Equal(t, MustClock("13:00"), *ws.BreakStart)
	assert.Equal(t, 15, ws.SlotDuration)
	assert.Equal(t, 5, ws.BufferTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	store := NewPgStore(mock)

	mock.ExpectQuery(`FROM doctors`).WithArgs(doctorID).WillReturnError(pgx.ErrNoRows)
	_, err = store.GetDoctor(context.Background(), doctorID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	mock.ExpectQuery(`FROM weekly_schedules`).WithArgs(doctorID, 0).WillReturnError(pgx.ErrNoRows)
	_, err = store.GetWeeklySchedule(context.Background(), doctorID, time.Sunday)
	assert.ErrorIs(t, err, ErrWeeklyScheduleNotFound)

	mock.ExpectQuery(`FROM special_dates`).WithArgs(doctorID, monday).WillReturnError(pgx.ErrNoRows)
	_, err = store.GetSpecialDate(context.Background(), doctorID, monday)
	assert.ErrorIs(t, err, ErrSpecialDateNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreGetSpecialDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	reason := "conference"

	mock.ExpectQuery(`FROM special_dates`).
		WithArgs(doctorID, monday).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "doctor_id", "date", "type", "break_start", "break_end", "reason",
		}).AddRow(uuid.New(), doctorID, monday, "HOLIDAY", (*string)(nil), (*string)(nil), &reason))

	sd, err := NewPgStore(mock).GetSpecialDate(context.Background(), doctorID, monday.Add(10*time.Hour))
	require.NoError(t, err)

	assert.True(t, sd.IsHoliday())
	assert.Nil(t, sd.BreakStart)
	require.NotNil(t, sd.Reason)
	assert.Equal(t, "conference", *sd.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStorePropagatesDriverErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	boom := errors.New("connection reset")
	mock.ExpectQuery(`FROM doctors`).WithArgs(doctorID).WillReturnError(boom)

	_, err = NewPgStore(mock).GetDoctor(context.Background(), doctorID)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDoctorNotFound)
}
