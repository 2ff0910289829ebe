package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var tracer = otel.Tracer("clinic.internal.appointment")

type Service struct {
	repo    Repository
	store   schedule.Store
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	log     *zap.Logger
}

// NewService wires the booking orchestrator. locker and m may be nil.
func NewService(repo Repository, store schedule.Store, locker redisclient.Locker, m *metrics.BookingMetrics, log *zap.Logger) *Service {
	if repo == nil || store == nil {
		panic("appointment: repository and schedule store required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		store:   store,
		locker:  locker,
		metrics: m,
		log:     log,
	}
}

// BookAppointment validates a request against the doctor's schedule and
// existing bookings, then creates a SCHEDULED appointment. Conflicts are
// checked once up front and again inside the transaction that creates the
// row, so concurrent identical requests produce one booking and ErrSlotTaken
// for the rest.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID),
		attribute.String("clinic.date", req.Date),
		attribute.String("clinic.time", req.Time),
	)

	start := time.Now()
	appt, err := s.book(ctx, req)

	result := "OK"
	if err != nil {
		result = ErrorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	s.metrics.ObserveBooking(result, time.Since(start))

	switch {
	case err == nil:
		s.log.Info("appointment booked",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("doctor_id", appt.DoctorID.String()),
			zap.String("date", dateString(appt.Date)),
			zap.String("time", appt.Time),
		)
	case result == CodeStorage:
		s.log.Error("booking failed", zap.String("doctor_id", req.DoctorID), zap.Error(err))
	default:
		s.log.Info("booking rejected",
			zap.String("doctor_id", req.DoctorID),
			zap.String("date", req.Date),
			zap.String("time", req.Time),
			zap.String("code", result),
		)
	}

	return appt, err
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	in, err := req.parse()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetDoctor(ctx, in.DoctorID); err != nil {
		if errors.Is(err, schedule.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, storageError("load doctor", err)
	}

	ws, err := s.store.GetWeeklySchedule(ctx, in.DoctorID, in.Date.Weekday())
	if err != nil {
		if errors.Is(err, schedule.ErrWeeklyScheduleNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrScheduleNotAvailable, in.Date.Weekday())
		}
		return nil, storageError("load weekly schedule", err)
	}
	if !ws.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrScheduleNotAvailable, in.Date.Weekday())
	}

	sd, err := s.loadSpecialDate(ctx, in.DoctorID, in.Date)
	if err != nil {
		return nil, err
	}
	if sd.IsHoliday() {
		return nil, fmt.Errorf("%w: %s", ErrHoliday, dateString(in.Date))
	}

	if !schedule.IsSlotAvailable(in.Time, ws, sd, in.Date) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeSlot, in.Time)
	}

	from, to := schedule.BufferWindow(in.clock, ws.SlotDuration, ws.BufferTime)

	// Pre-check outside the transaction; cheap exact match first.
	if err := checkConflicts(ctx, s.repo, in, from, to); err != nil {
		return nil, err
	}

	var created *Appointment
	commit := func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, in.DoctorID, func(ctx context.Context, tx TxRepository) error {
			if err := checkConflicts(ctx, tx, in, from, to); err != nil {
				return err
			}

			appt, err := tx.CreateAppointment(ctx, in.NewAppointment)
			if err != nil {
				return err
			}

			payload, err := json.Marshal(map[string]any{
				"doctor_id": appt.DoctorID.String(),
				"date":      dateString(appt.Date),
				"time":      appt.Time,
			})
			if err != nil {
				s.log.Warn("failed to marshal event payload",
					zap.String("event_type", EventAppointmentBooked), zap.Error(err))
				payload = nil
			}
			if err := tx.InsertEvent(ctx, newEvent(EventAppointmentBooked, appt.ID, payload)); err != nil {
				return err
			}

			created = appt
			return nil
		})
	}

	if err := s.commitLocked(ctx, in, commit); err != nil {
		if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, storageError("create appointment", err)
	}

	return created, nil
}

// commitLocked runs commit under the doctor/day lock when a locker is
// configured. The transaction alone guarantees correctness, so when the lock
// cannot be taken (Redis unreachable, or held past the wait by bookings for
// other times that day) the commit still goes ahead without it.
func (s *Service) commitLocked(ctx context.Context, in *bookingInput, commit func(ctx context.Context) error) error {
	if s.locker == nil {
		return commit(ctx)
	}

	ran := false
	err := s.locker.WithDoctorDayLock(ctx, in.DoctorID, in.Date, func(lockCtx context.Context) error {
		ran = true
		return commit(lockCtx)
	})
	if err != nil && !ran && ctx.Err() == nil {
		fields := []zap.Field{zap.String("doctor_id", in.DoctorID.String()), zap.Error(err)}
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.log.Info("doctor day lock busy, committing without it", fields...)
		} else {
			s.log.Warn("doctor day lock unavailable, committing without it", fields...)
		}
		return commit(ctx)
	}
	return err
}

func checkConflicts(ctx context.Context, repo TxRepository, in *bookingInput, from, to schedule.Clock) error {
	taken, err := repo.HasConflict(ctx, in.DoctorID, in.Date, in.Time)
	if err != nil {
		return storageError("check conflict", err)
	}
	if taken {
		return fmt.Errorf("%w: %s %s", ErrSlotTaken, dateString(in.Date), in.Time)
	}

	taken, err = repo.HasConflictInWindow(ctx, in.DoctorID, in.Date, from, to)
	if err != nil {
		return storageError("check buffer window", err)
	}
	if taken {
		return fmt.Errorf("%w: another appointment lies within %s-%s", ErrSlotTaken, from, to)
	}
	return nil
}

func (s *Service) loadSpecialDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (*schedule.SpecialDate, error) {
	sd, err := s.store.GetSpecialDate(ctx, doctorID, date)
	if err != nil {
		if errors.Is(err, schedule.ErrSpecialDateNotFound) {
			return nil, nil
		}
		return nil, storageError("load special date", err)
	}
	return sd, nil
}

// UpdateStatus applies a lifecycle transition to an existing appointment.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.update_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", id.String()),
		attribute.String("clinic.new_status", string(newStatus)),
	)

	if _, err := ParseStatus(string(newStatus)); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageError("load appointment", err)
	}

	from := appt.Status
	if !CanTransition(from, newStatus) {
		s.metrics.ObserveTransition(string(from), string(newStatus), CodeInvalidTransition)
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, newStatus)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, from, newStatus)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			// the status moved under us between read and write
			s.metrics.ObserveTransition(string(from), string(newStatus), CodeInvalidTransition)
			return nil, fmt.Errorf("%w: %s was modified concurrently", ErrInvalidTransition, id)
		}
		s.metrics.ObserveTransition(string(from), string(newStatus), CodeStorage)
		return nil, storageError("update status", err)
	}

	s.metrics.ObserveTransition(string(from), string(newStatus), "OK")
	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from": string(from),
		"to":   string(newStatus),
	})
	s.log.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(newStatus)),
	)

	return updated, nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storageError("get appointment", err)
	}
	return appt, nil
}

// ListAppointments pages through appointments, optionally for one doctor
// and/or date.
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, storageError("list appointments", err)
	}
	return appointments, nil
}

// AvailableSlots lists start times on date that would pass the schedule
// checks and the buffer-aware conflict check right now. A day without an
// active schedule, or a holiday, has no slots.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	ctx, span := tracer.Start(ctx, "appointment.available_slots")
	defer span.End()

	date = schedule.DateOf(date)
	slots := []string{}

	if _, err := s.store.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, schedule.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, storageError("load doctor", err)
	}

	ws, err := s.store.GetWeeklySchedule(ctx, doctorID, date.Weekday())
	if err != nil {
		if errors.Is(err, schedule.ErrWeeklyScheduleNotFound) {
			return slots, nil
		}
		return nil, storageError("load weekly schedule", err)
	}
	sd, err := s.loadSpecialDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if !ws.IsActive || sd.IsHoliday() {
		return slots, nil
	}

	booked, err := s.repo.ListAppointments(ctx, AppointmentFilter{DoctorID: &doctorID, Date: &date, ActiveOnly: true})
	if err != nil {
		return nil, storageError("list booked appointments", err)
	}
	var taken []schedule.Clock
	for _, a := range booked {
		c, err := schedule.ParseClock(a.Time)
		if err != nil {
			continue
		}
		taken = append(taken, c)
	}

	for _, c := range schedule.CandidateTimes(ws) {
		if !schedule.IsSlotAvailable(c.String(), ws, sd, date) {
			continue
		}
		from, to := schedule.BufferWindow(c, ws.SlotDuration, ws.BufferTime)
		if overlaps(taken, c, from, to) {
			continue
		}
		slots = append(slots, c.String())
	}
	return slots, nil
}

func overlaps(taken []schedule.Clock, at, from, to schedule.Clock) bool {
	for _, t := range taken {
		if t == at || (t >= from && t < to) {
			return true
		}
	}
	return false
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	if err := s.repo.InsertEvent(ctx, newEvent(eventType, appointmentID, data)); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func newEvent(eventType string, appointmentID uuid.UUID, payload []byte) EventLog {
	apptID := appointmentID
	return EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}
