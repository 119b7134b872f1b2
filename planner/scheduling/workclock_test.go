package scheduling

import (
	"testing"
	"time"
)

func TestCeilToShift(t *testing.T) {
	clock := DefaultClock()

	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"in shift unchanged", refDate(2, 28, 10), refDate(2, 28, 10)},
		{"before open snaps to open", time.Date(2026, 2, 28, 7, 30, 0, 0, time.UTC), refDate(2, 28, 8)},
		{"at close rolls to next day", refDate(2, 28, 16), refDate(3, 1, 8)},
		{"evening rolls to next day", refDate(2, 28, 23), refDate(3, 1, 8)},
		{"midnight snaps to same-day open", refDate(2, 28, 0), refDate(2, 28, 8)},
	}
	for _, tc := range cases {
		if got := clock.CeilToShift(tc.in); !got.Equal(tc.want) {
			t.Errorf("%s: CeilToShift(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestCeilToShiftSkipsNonOperatingDays(t *testing.T) {
	clock := DefaultClock()
	clock.Operating = func(day time.Time) bool { return day.Weekday() != time.Sunday }

	// 2026-03-01 is a Sunday.
	got := clock.CeilToShift(refDate(2, 28, 18))
	if want := refDate(3, 2, 8); !got.Equal(want) {
		t.Errorf("CeilToShift over a closed Sunday = %v, want %v", got, want)
	}
}

func TestAddWorkingMinutes(t *testing.T) {
	clock := DefaultClock()

	cases := []struct {
		name string
		in   time.Time
		mins int
		want time.Time
	}{
		// SO-001 worked example: PCB-IND-100 x2 = 294 minutes.
		{"294 min from shift open", refDate(2, 28, 8), 294, time.Date(2026, 2, 28, 12, 54, 0, 0, time.UTC)},
		{"exactly one shift", refDate(2, 28, 8), 480, refDate(2, 28, 16)},
		{"spills into next day", refDate(2, 28, 15), 120, refDate(3, 1, 9)},
		{"full week of work", refDate(2, 28, 8), 480 * 7, refDate(3, 6, 16)},
		{"starts outside shift", refDate(2, 28, 20), 60, refDate(3, 1, 9)},
	}
	for _, tc := range cases {
		if got := clock.AddWorkingMinutes(tc.in, tc.mins); !got.Equal(tc.want) {
			t.Errorf("%s: AddWorkingMinutes(%v, %d) = %v, want %v", tc.name, tc.in, tc.mins, got, tc.want)
		}
	}
}

func TestAddZeroMinutesIsCeil(t *testing.T) {
	clock := DefaultClock()
	for _, in := range []time.Time{refDate(2, 28, 8), refDate(2, 28, 19), refDate(3, 1, 3)} {
		if got, want := clock.AddWorkingMinutes(in, 0), clock.CeilToShift(in); !got.Equal(want) {
			t.Errorf("AddWorkingMinutes(%v, 0) = %v, want CeilToShift = %v", in, got, want)
		}
	}
}

func TestAddWorkingMinutesComposes(t *testing.T) {
	clock := DefaultClock()
	start := refDate(2, 28, 9)
	for _, pair := range [][2]int{{30, 90}, {470, 20}, {480, 480}, {0, 294}} {
		a, b := pair[0], pair[1]
		direct := clock.AddWorkingMinutes(start, a+b)
		stepped := clock.AddWorkingMinutes(clock.AddWorkingMinutes(start, a), b)
		if !direct.Equal(stepped) {
			t.Errorf("add(%d+%d) = %v but add(add(%d),%d) = %v", a, b, direct, a, b, stepped)
		}
	}
}

func TestWorkingMinutesRoundTrip(t *testing.T) {
	clock := DefaultClock()
	start := refDate(2, 28, 11)
	for _, m := range []int{0, 1, 59, 294, 480, 1337, 480 * 4} {
		end := clock.AddWorkingMinutes(start, m)
		if got := clock.WorkingMinutesBetween(start, end); got != m {
			t.Errorf("round trip of %d minutes came back as %d (end %v)", m, got, end)
		}
	}
}

func TestWorkingMinutesBetween(t *testing.T) {
	clock := DefaultClock()

	cases := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same instant", refDate(2, 28, 10), refDate(2, 28, 10), 0},
		{"reversed is zero", refDate(2, 28, 12), refDate(2, 28, 10), 0},
		{"within one shift", refDate(2, 28, 9), refDate(2, 28, 12), 180},
		{"overnight gap is free", refDate(2, 28, 15), refDate(3, 1, 9), 120},
		{"two full days", refDate(2, 28, 8), refDate(3, 2, 8), 960},
		{"out-of-shift endpoints", refDate(2, 28, 18), refDate(3, 1, 20), 480},
	}
	for _, tc := range cases {
		if got := clock.WorkingMinutesBetween(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: WorkingMinutesBetween = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestSlackMinutesSign(t *testing.T) {
	clock := DefaultClock()
	deadline := refDate(3, 4, 8)

	if got := clock.SlackMinutes(refDate(3, 3, 12), deadline); got != 240 {
		t.Errorf("early finish slack = %d, want 240", got)
	}
	if got := clock.SlackMinutes(refDate(3, 5, 14), deadline); got != -840 {
		t.Errorf("late finish slack = %d, want -840", got)
	}
	if got := clock.SlackMinutes(deadline, deadline); got != 0 {
		t.Errorf("exact finish slack = %d, want 0", got)
	}
}

func TestCustomShiftWindow(t *testing.T) {
	clock := WorkClock{StartHour: 6, EndHour: 18}
	if got := clock.MinutesPerDay(); got != 720 {
		t.Fatalf("MinutesPerDay = %d, want 720", got)
	}
	got := clock.AddWorkingMinutes(refDate(2, 28, 6), 721)
	if want := time.Date(2026, 3, 1, 6, 1, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("721 min on a 12h shift = %v, want %v", got, want)
	}
}
