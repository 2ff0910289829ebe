package schedule

import "time"

// IsSlotAvailable checks a requested start time against the static schedule
// data for one date: working hours, holidays and break windows. Both working
// hours and breaks are half-open, so EndTime and BreakStart are not bookable
// while StartTime and BreakEnd are. Collisions with other appointments are
// checked separately against persisted data.
func IsSlotAvailable(timeStr string, ws *WeeklySchedule, sd *SpecialDate, date time.Time) bool {
	t, err := ParseClock(timeStr)
	if err != nil {
		return false
	}
	if ws == nil || !ws.IsActive {
		return false
	}
	if t < ws.StartTime || t >= ws.EndTime {
		return false
	}

	if !sd.AppliesTo(date) {
		sd = nil
	}
	if sd.IsHoliday() {
		return false
	}

	if start, end, ok := EffectiveBreak(ws, sd); ok && t >= start && t < end {
		return false
	}
	return true
}

// EffectiveBreak returns the break window in force for a date: a BREAK
// special date replaces the weekly break, otherwise the weekly break applies.
func EffectiveBreak(ws *WeeklySchedule, sd *SpecialDate) (start, end Clock, ok bool) {
	if sd != nil && sd.Type == SpecialDateBreak {
		if sd.BreakStart == nil || sd.BreakEnd == nil {
			return 0, 0, false
		}
		return *sd.BreakStart, *sd.BreakEnd, true
	}
	if ws != nil && ws.HasBreak() {
		return *ws.BreakStart, *ws.BreakEnd, true
	}
	return 0, 0, false
}

// BufferWindow is the span of start times that collide with a slot starting
// at t. Two slots of the same doctor must be at least slotDuration+buffer
// minutes apart in either direction, so the window is
// (t-slotDuration-buffer, t+slotDuration+buffer), returned half-open on
// minute resolution.
func BufferWindow(t Clock, slotDuration, buffer int) (from, to Clock) {
	span := slotDuration + buffer
	return t.Add(1 - span), t.Add(span)
}

// CandidateTimes lists slot start times from StartTime in SlotDuration steps
// that begin before EndTime.
func CandidateTimes(ws *WeeklySchedule) []Clock {
	if ws == nil || !ws.IsActive || ws.SlotDuration <= 0 {
		return nil
	}
	var out []Clock
	for t := ws.StartTime; t < ws.EndTime; t += Clock(ws.SlotDuration) {
		out = append(out, t)
	}
	return out
}
