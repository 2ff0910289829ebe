package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	db Querier
}

func NewPgStore(db Querier) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_fee, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.ConsultationFee, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return &d, nil
}

func (s *PgStore) GetWeeklySchedule(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*WeeklySchedule, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, doctor_id, day_of_week, is_active, start_time, end_time,
		       break_start, break_end, slot_duration, buffer_time
		FROM weekly_schedules
		WHERE doctor_id = $1 AND day_of_week = $2
	`, doctorID, int(day))

	var (
		ws                   WeeklySchedule
		dow                  int
		start, end           string
		breakStart, breakEnd *string
	)
	err := row.Scan(&ws.ID, &ws.DoctorID, &dow, &ws.IsActive, &start, &end,
		&breakStart, &breakEnd, &ws.SlotDuration, &ws.BufferTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWeeklyScheduleNotFound
		}
		return nil, fmt.Errorf("load weekly schedule: %w", err)
	}

	ws.DayOfWeek = time.Weekday(dow)
	if ws.StartTime, err = ParseClock(start); err != nil {
		return nil, fmt.Errorf("weekly schedule %s start_time: %w", ws.ID, err)
	}
	if ws.EndTime, err = ParseClock(end); err != nil {
		return nil, fmt.Errorf("weekly schedule %s end_time: %w", ws.ID, err)
	}
	if ws.BreakStart, err = parseOptionalClock(breakStart); err != nil {
		return nil, fmt.Errorf("weekly schedule %s break_start: %w", ws.ID, err)
	}
	if ws.BreakEnd, err = parseOptionalClock(breakEnd); err != nil {
		return nil, fmt.Errorf("weekly schedule %s break_end: %w", ws.ID, err)
	}
	return &ws, nil
}

func (s *PgStore) GetSpecialDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*SpecialDate, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, doctor_id, date, type, break_start, break_end, reason
		FROM special_dates
		WHERE doctor_id = $1 AND date = $2
	`, doctorID, DateOf(date))

	var (
		sd                   SpecialDate
		kind                 string
		breakStart, breakEnd *string
	)
	err := row.Scan(&sd.ID, &sd.DoctorID, &sd.Date, &kind, &breakStart, &breakEnd, &sd.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialDateNotFound
		}
		return nil, fmt.Errorf("load special date: %w", err)
	}

	sd.Date = DateOf(sd.Date)
	sd.Type = SpecialDateType(kind)
	if sd.BreakStart, err = parseOptionalClock(breakStart); err != nil {
		return nil, fmt.Errorf("special date %s break_start: %w", sd.ID, err)
	}
	if sd.BreakEnd, err = parseOptionalClock(breakEnd); err != nil {
		return nil, fmt.Errorf("special date %s break_end: %w", sd.ID, err)
	}
	return &sd, nil
}

func parseOptionalClock(s *string) (*Clock, error) {
	if s == nil {
		return nil, nil
	}
	c, err := ParseClock(*s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
