package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/pkg/logger"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load error", zap.Error(err))
	}
	log, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		zap.NewExample().Fatal("logger init error", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	count := 20
	if v := os.Getenv("SEED_DOCTORS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithMaxConns(cfg.PostgresMaxConns))
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	ids, err := seedDoctors(context.Background(), pool, log, count)
	if err != nil {
		log.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedSpecialDates(context.Background(), pool, log, ids); err != nil {
		log.Fatal("seed special dates", zap.Error(err))
	}

	log.Info("seed complete", zap.Int("doctors", len(ids)))
}

// workweek is Monday to Friday 09:00-17:00 with a lunch break, 15 minute
// slots and a 5 minute buffer.
func workweek(doctorID uuid.UUID) []schedule.WeeklySchedule {
	var out []schedule.WeeklySchedule
	for day := time.Monday; day <= time.Friday; day++ {
		out = append(out, schedule.WeeklySchedule{
			ID:           uuid.New(),
			DoctorID:     doctorID,
			DayOfWeek:    day,
			IsActive:     true,
			StartTime:    schedule.MustClock("09:00"),
			EndTime:      schedule.MustClock("17:00"),
			BreakStart:   schedule.ClockPtr("13:00"),
			BreakEnd:     schedule.ClockPtr("14:00"),
			SlotDuration: 15,
			BufferTime:   5,
		})
	}
	return out
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, count int) ([]uuid.UUID, error) {
	log.Info("seeding doctors", zap.Int("count", count))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		fee := int64(gofakeit.Number(50, 300) * 100)

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, consultation_fee, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, fee)
		if err != nil {
			return nil, err
		}

		for _, ws := range workweek(id) {
			if err := insertWeeklySchedule(ctx, tx, ws); err != nil {
				return nil, err
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info("doctors seeded", zap.Int("count", len(ids)))
	return ids, nil
}

func insertWeeklySchedule(ctx context.Context, tx pgx.Tx, ws schedule.WeeklySchedule) error {
	if err := ws.Validate(); err != nil {
		return err
	}

	var breakStart, breakEnd *string
	if ws.HasBreak() {
		bs, be := ws.BreakStart.String(), ws.BreakEnd.String()
		breakStart, breakEnd = &bs, &be
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO weekly_schedules (id, doctor_id, day_of_week, is_active, start_time, end_time,
		                              break_start, break_end, slot_duration, buffer_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (doctor_id, day_of_week) DO NOTHING
	`, ws.ID, ws.DoctorID, int(ws.DayOfWeek), ws.IsActive, ws.StartTime.String(), ws.EndTime.String(),
		breakStart, breakEnd, ws.SlotDuration, ws.BufferTime)
	return err
}

// seedSpecialDates gives every fifth doctor a holiday next Monday and every
// seventh a shifted break next Wednesday.
func seedSpecialDates(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger, ids []uuid.UUID) error {
	today := schedule.DateOf(time.Now())
	nextMonday := today.AddDate(0, 0, (8-int(today.Weekday()))%7)
	if nextMonday.Equal(today) {
		nextMonday = nextMonday.AddDate(0, 0, 7)
	}
	nextWednesday := nextMonday.AddDate(0, 0, 2)

	seeded := 0
	for i, id := range ids {
		var err error
		switch {
		case i%5 == 0:
			_, err = pool.Exec(ctx, `
				INSERT INTO special_dates (id, doctor_id, date, type, reason)
				VALUES ($1, $2, $3, 'HOLIDAY', $4)
				ON CONFLICT (doctor_id, date) DO NOTHING
			`, uuid.New(), id, nextMonday, "Conference")
		case i%7 == 0:
			_, err = pool.Exec(ctx, `
				INSERT INTO special_dates (id, doctor_id, date, type, break_start, break_end, reason)
				VALUES ($1, $2, $3, 'BREAK', '11:00', '12:30', $4)
				ON CONFLICT (doctor_id, date) DO NOTHING
			`, uuid.New(), id, nextWednesday, "Staff meeting")
		default:
			continue
		}
		if err != nil {
			return err
		}
		seeded++
	}

	log.Info("special dates seeded", zap.Int("count", seeded))
	return nil
}
