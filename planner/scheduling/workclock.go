package scheduling

import "time"

// WorkClock performs calendar arithmetic over the factory's daily shift.
// The line runs one shift per day (default 08:00-16:00 UTC, 480 minutes),
// every day unless Operating says otherwise. All instants are UTC.
type WorkClock struct {
	StartHour int
	EndHour   int

	// Operating reports whether the line runs on the given day.
	// Nil means every day.
	Operating func(day time.Time) bool
}

// DefaultClock returns the standard 08:00-16:00, 7-days-a-week clock.
func DefaultClock() WorkClock {
	return WorkClock{StartHour: 8, EndHour: 16}
}

// MinutesPerDay is the shift length in minutes.
func (c WorkClock) MinutesPerDay() int {
	return (c.EndHour - c.StartHour) * 60
}

func (c WorkClock) operates(day time.Time) bool {
	if c.Operating == nil {
		return true
	}
	return c.Operating(day)
}

func (c WorkClock) shiftOpen(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.StartHour, 0, 0, 0, time.UTC)
}

func (c WorkClock) shiftClose(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.EndHour, 0, 0, 0, time.UTC)
}

// CeilToShift snaps t forward to the nearest in-shift instant. An instant
// already inside the shift of an operating day is returned unchanged.
func (c WorkClock) CeilToShift(t time.Time) time.Time {
	t = t.UTC()
	for {
		if !c.operates(t) {
			t = c.shiftOpen(t.AddDate(0, 0, 1))
			continue
		}
		if t.Before(c.shiftOpen(t)) {
			return c.shiftOpen(t)
		}
		if !t.Before(c.shiftClose(t)) {
			t = c.shiftOpen(t.AddDate(0, 0, 1))
			continue
		}
		return t
	}
}

// AddWorkingMinutes advances t by m minutes of shift time. Minutes never
// run past a shift close; the remainder continues at the next shift open.
// With m=0 this is CeilToShift(t).
func (c WorkClock) AddWorkingMinutes(t time.Time, m int) time.Time {
	cur := c.CeilToShift(t)
	remaining := m
	for remaining > 0 {
		left := int(c.shiftClose(cur).Sub(cur).Minutes())
		if remaining <= left {
			return cur.Add(time.Duration(remaining) * time.Minute)
		}
		remaining -= left
		cur = c.CeilToShift(c.shiftOpen(cur.AddDate(0, 0, 1)))
	}
	return cur
}

// WorkingMinutesBetween counts the shift minutes between a and b.
// Returns 0 when b is not after a.
func (c WorkClock) WorkingMinutesBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	if !b.After(a) {
		return 0
	}
	cur := c.CeilToShift(a)
	total := 0
	for cur.Before(b) {
		end := c.shiftClose(cur)
		if b.Before(end) {
			end = b
		}
		if end.After(cur) {
			total += int(end.Sub(cur).Minutes())
		}
		cur = c.CeilToShift(c.shiftOpen(cur.AddDate(0, 0, 1)))
	}
	return total
}

// SlackMinutes is the signed shift-time distance from end to deadline:
// positive when the order finishes early, negative when it finishes late.
func (c WorkClock) SlackMinutes(end, deadline time.Time) int {
	if !end.After(deadline) {
		return c.WorkingMinutesBetween(end, deadline)
	}
	return -c.WorkingMinutesBetween(deadline, end)
}
