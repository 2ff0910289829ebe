package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialty       *string   `json:"specialty,omitempty"`
	ConsultationFee int64     `json:"consultationFee"` // minor currency units
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// WeeklySchedule is a doctor's recurring availability for one day of the week.
type WeeklySchedule struct {
	ID           uuid.UUID    `json:"id"`
	DoctorID     uuid.UUID    `json:"doctorId"`
	DayOfWeek    time.Weekday `json:"dayOfWeek"`
	IsActive     bool         `json:"isActive"`
	StartTime    Clock        `json:"startTime"`
	EndTime      Clock        `json:"endTime"`
	BreakStart   *Clock       `json:"breakStart,omitempty"`
	BreakEnd     *Clock       `json:"breakEnd,omitempty"`
	SlotDuration int          `json:"slotDuration"` // minutes
	BufferTime   int          `json:"bufferTime"`   // minutes
}

func (ws *WeeklySchedule) HasBreak() bool {
	return ws.BreakStart != nil && ws.BreakEnd != nil
}

// Validate checks the row-level invariants an administrator must keep.
func (ws *WeeklySchedule) Validate() error {
	if ws.DayOfWeek < time.Sunday || ws.DayOfWeek > time.Saturday {
		return fmt.Errorf("day of week %d out of range", ws.DayOfWeek)
	}
	if ws.StartTime >= ws.EndTime {
		return errors.New("start time must be before end time")
	}
	if ws.SlotDuration <= 0 {
		return errors.New("slot duration must be positive")
	}
	if ws.BufferTime < 0 {
		return errors.New("buffer time must not be negative")
	}
	if (ws.BreakStart == nil) != (ws.BreakEnd == nil) {
		return errors.New("break start and end must be set together")
	}
	if ws.HasBreak() {
		if *ws.BreakStart >= *ws.BreakEnd {
			return errors.New("break start must be before break end")
		}
		if *ws.BreakStart < ws.StartTime || *ws.BreakStart >= ws.EndTime || *ws.BreakEnd > ws.EndTime {
			return errors.New("break must lie within working hours")
		}
	}
	return nil
}

type SpecialDateType string

const (
	SpecialDateHoliday SpecialDateType = "HOLIDAY"
	SpecialDateBreak   SpecialDateType = "BREAK"
)

// SpecialDate overrides the weekly schedule for one calendar date.
type SpecialDate struct {
	ID         uuid.UUID       `json:"id"`
	DoctorID   uuid.UUID       `json:"doctorId"`
	Date       time.Time       `json:"date"`
	Type       SpecialDateType `json:"type"`
	BreakStart *Clock          `json:"breakStart,omitempty"`
	BreakEnd   *Clock          `json:"breakEnd,omitempty"`
	Reason     *string         `json:"reason,omitempty"`
}

// Validate checks that a BREAK override carries a complete, ordered break
// window and a HOLIDAY carries none.
func (sd *SpecialDate) Validate() error {
	switch sd.Type {
	case SpecialDateHoliday:
		if sd.BreakStart != nil || sd.BreakEnd != nil {
			return errors.New("holiday must not carry a break window")
		}
	case SpecialDateBreak:
		if sd.BreakStart == nil || sd.BreakEnd == nil {
			return errors.New("break override requires break start and end")
		}
		if *sd.BreakStart >= *sd.BreakEnd {
			return errors.New("break start must be before break end")
		}
	default:
		return fmt.Errorf("unknown special date type %q", sd.Type)
	}
	return nil
}

func (sd *SpecialDate) IsHoliday() bool {
	return sd != nil && sd.Type == SpecialDateHoliday
}

// AppliesTo reports whether the override is for the given calendar date.
// A zero date on either side is treated as a match.
func (sd *SpecialDate) AppliesTo(date time.Time) bool {
	if sd == nil {
		return false
	}
	if sd.Date.IsZero() || date.IsZero() {
		return true
	}
	return DateOf(sd.Date).Equal(DateOf(date))
}
