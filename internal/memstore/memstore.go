// Package memstore is an in-process implementation of the appointment
// repository and schedule store. It keeps the same atomicity guarantees as
// the Postgres implementation and backs tests and local simulation runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

var (
	_ appointment.Repository = (*Store)(nil)
	_ schedule.Store         = (*Store)(nil)
)

type weeklyKey struct {
	doctorID uuid.UUID
	day      time.Weekday
}

type specialKey struct {
	doctorID uuid.UUID
	date     string
}

type Store struct {
	// txMu serializes WithinTx callers; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	doctors      map[uuid.UUID]schedule.Doctor
	weekly       map[weeklyKey]schedule.WeeklySchedule
	special      map[specialKey]schedule.SpecialDate
	appointments map[uuid.UUID]appointment.Appointment
	events       []appointment.EventLog
	nextEventID  int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		doctors:      make(map[uuid.UUID]schedule.Doctor),
		weekly:       make(map[weeklyKey]schedule.WeeklySchedule),
		special:      make(map[specialKey]schedule.SpecialDate),
		appointments: make(map[uuid.UUID]appointment.Appointment),
		now:          time.Now,
	}
}

// Administrative writes

func (s *Store) AddDoctor(d schedule.Doctor) schedule.Doctor {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := s.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = d
	return d
}

// PutWeeklySchedule inserts or replaces the schedule for (doctor, day).
func (s *Store) PutWeeklySchedule(ws schedule.WeeklySchedule) error {
	if err := ws.Validate(); err != nil {
		return err
	}
	if ws.ID == uuid.Nil {
		ws.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctors[ws.DoctorID]; !ok {
		return schedule.ErrDoctorNotFound
	}
	s.weekly[weeklyKey{ws.DoctorID, ws.DayOfWeek}] = ws
	return nil
}

// PutSpecialDate inserts or replaces the override for (doctor, date).
func (s *Store) PutSpecialDate(sd schedule.SpecialDate) error {
	if err := sd.Validate(); err != nil {
		return err
	}
	if sd.ID == uuid.Nil {
		sd.ID = uuid.New()
	}
	sd.Date = schedule.DateOf(sd.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doctors[sd.DoctorID]; !ok {
		return schedule.ErrDoctorNotFound
	}
	s.special[specialKey{sd.DoctorID, schedule.FormatDate(sd.Date)}] = sd
	return nil
}

// Events returns a copy of every logged event in insertion order.
func (s *Store) Events() []appointment.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointment.EventLog(nil), s.events...)
}

// schedule.Store

func (s *Store) GetDoctor(_ context.Context, id uuid.UUID) (*schedule.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, schedule.ErrDoctorNotFound
	}
	return &d, nil
}

func (s *Store) GetWeeklySchedule(_ context.Context, doctorID uuid.UUID, day time.Weekday) (*schedule.WeeklySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.weekly[weeklyKey{doctorID, day}]
	if !ok {
		return nil, schedule.ErrWeeklyScheduleNotFound
	}
	return &ws, nil
}

func (s *Store) GetSpecialDate(_ context.Context, doctorID uuid.UUID, date time.Time) (*schedule.SpecialDate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sd, ok := s.special[specialKey{doctorID, schedule.FormatDate(date)}]
	if !ok {
		return nil, schedule.ErrSpecialDateNotFound
	}
	return &sd, nil
}

// appointment.Repository

func (s *Store) HasConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, t string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasConflictLocked(doctorID, date, t), nil
}

func (s *Store) HasConflictInWindow(ctx context.Context, doctorID uuid.UUID, date time.Time, from, to schedule.Clock) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasWindowConflictLocked(nil, doctorID, date, from, to), nil
}

func (s *Store) CreateAppointment(ctx context.Context, in appointment.NewAppointment) (*appointment.Appointment, error) {
	var created *appointment.Appointment
	err := s.WithinTx(ctx, in.DoctorID, func(ctx context.Context, tx appointment.TxRepository) error {
		a, err := tx.CreateAppointment(ctx, in)
		created = a
		return err
	})
	return created, err
}

func (s *Store) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(ev)
	return nil
}

func (s *Store) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *Store) ListAppointments(_ context.Context, f appointment.AppointmentFilter) ([]appointment.Appointment, error) {
	s.mu.RLock()
	var out []appointment.Appointment
	for _, a := range s.appointments {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Date != nil && !a.Date.Equal(schedule.DateOf(*f.Date)) {
			continue
		}
		if f.ActiveOnly && !a.Status.OccupiesSlot() {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to appointment.Status) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok || a.Status != from {
		return nil, appointment.ErrAppointmentNotFound
	}

	a.Status = to
	a.UpdatedAt = s.now()
	s.appointments[id] = a
	return &a, nil
}

// WithinTx stages fn's writes and applies them together if fn succeeds.
// Transactions run one at a time, so reads inside fn are not invalidated
// by another writer before commit.
func (s *Store) WithinTx(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx appointment.TxRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.GetDoctor(ctx, doctorID); err != nil {
		return appointment.ErrDoctorNotFound
	}

	tx := &storeTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range tx.appointments {
		if s.hasConflictLocked(a.DoctorID, a.Date, a.Time) {
			return appointment.ErrSlotTaken
		}
	}
	for _, a := range tx.appointments {
		s.appointments[a.ID] = a
	}
	for _, ev := range tx.events {
		s.appendEventLocked(ev)
	}
	return nil
}

func (s *Store) appendEventLocked(ev appointment.EventLog) {
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.events = append(s.events, ev)
}

func (s *Store) hasConflictLocked(doctorID uuid.UUID, date time.Time, t string) bool {
	date = schedule.DateOf(date)
	for _, a := range s.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == t && a.Status.OccupiesSlot() {
			return true
		}
	}
	return false
}

func (s *Store) hasWindowConflictLocked(staged []appointment.Appointment, doctorID uuid.UUID, date time.Time, from, to schedule.Clock) bool {
	date = schedule.DateOf(date)
	lo, hi := from.String(), to.String()
	match := func(a appointment.Appointment) bool {
		return a.DoctorID == doctorID && a.Date.Equal(date) && a.Status.OccupiesSlot() &&
			a.Time >= lo && a.Time < hi
	}
	for _, a := range s.appointments {
		if match(a) {
			return true
		}
	}
	for _, a := range staged {
		if match(a) {
			return true
		}
	}
	return false
}

// storeTx sees committed rows plus its own staged writes.
type storeTx struct {
	s            *Store
	appointments []appointment.Appointment
	events       []appointment.EventLog
}

func (tx *storeTx) HasConflict(_ context.Context, doctorID uuid.UUID, date time.Time, t string) (bool, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	if tx.s.hasConflictLocked(doctorID, date, t) {
		return true, nil
	}
	date = schedule.DateOf(date)
	for _, a := range tx.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == t {
			return true, nil
		}
	}
	return false, nil
}

func (tx *storeTx) HasConflictInWindow(_ context.Context, doctorID uuid.UUID, date time.Time, from, to schedule.Clock) (bool, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.hasWindowConflictLocked(tx.appointments, doctorID, date, from, to), nil
}

func (tx *storeTx) CreateAppointment(ctx context.Context, in appointment.NewAppointment) (*appointment.Appointment, error) {
	taken, _ := tx.HasConflict(ctx, in.DoctorID, in.Date, in.Time)
	if taken {
		return nil, appointment.ErrSlotTaken
	}

	now := tx.s.now()
	a := appointment.Appointment{
		ID:          uuid.New(),
		DoctorID:    in.DoctorID,
		PatientName: in.PatientName,
		Email:       in.Email,
		Phone:       in.Phone,
		Date:        schedule.DateOf(in.Date),
		Time:        in.Time,
		Status:      appointment.StatusScheduled,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx.appointments = append(tx.appointments, a)
	return &a, nil
}

func (tx *storeTx) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	tx.events = append(tx.events, ev)
	return nil
}
