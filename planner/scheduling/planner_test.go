package scheduling

import (
	"errors"
	"testing"
	"time"
)

func TestPlanEntriesWorkedExample(t *testing.T) {
	clock := DefaultClock()
	now := refDate(2, 28, 8)
	orders := SortOrders(refOrders(), PolicyEDF, now, clock, refProducts())

	planned, cursor, err := PlanEntries(clock, orders, refProducts(), now)
	if err != nil {
		t.Fatalf("PlanEntries: %v", err)
	}
	if len(planned) != 12 {
		t.Fatalf("planned %d orders, want 12", len(planned))
	}

	// SO-001: PCB-IND-100 x2 = 294 min, done the same day at 12:54.
	first := planned[0]
	if first.Order.InternalID != "SO-001" {
		t.Fatalf("first planned order is %s", first.Order.InternalID)
	}
	if !first.Start.Equal(refDate(2, 28, 8)) {
		t.Errorf("SO-001 start = %v", first.Start)
	}
	if want := time.Date(2026, 2, 28, 12, 54, 0, 0, time.UTC); !first.End.Equal(want) {
		t.Errorf("SO-001 end = %v, want %v", first.End, want)
	}
	if !first.OnTime || first.SlackMinutes != 666 {
		t.Errorf("SO-001 slack = %d on_time = %v, want 666/true", first.SlackMinutes, first.OnTime)
	}

	// SO-002 starts exactly where SO-001 ends.
	if !planned[1].Start.Equal(first.End) {
		t.Errorf("SO-002 starts at %v, want %v", planned[1].Start, first.End)
	}

	// The final cursor is the last order's end.
	if !cursor.Equal(planned[11].End) {
		t.Errorf("cursor = %v, want %v", cursor, planned[11].End)
	}
}

func TestPlanEntriesSequentiality(t *testing.T) {
	clock := DefaultClock()
	now := refDate(2, 28, 8)
	orders := SortOrders(refOrders(), PolicySJF, now, clock, refProducts())

	planned, _, err := PlanEntries(clock, orders, refProducts(), now)
	if err != nil {
		t.Fatalf("PlanEntries: %v", err)
	}
	for i := 1; i < len(planned); i++ {
		if planned[i].Start.Before(planned[i-1].End) {
			t.Errorf("order %s starts %v before %s ends %v",
				planned[i].Order.InternalID, planned[i].Start,
				planned[i-1].Order.InternalID, planned[i-1].End)
		}
	}
}

func TestPlanEntriesPhaseMonotonicity(t *testing.T) {
	clock := DefaultClock()
	now := refDate(2, 28, 8)

	planned, _, err := PlanEntries(clock, refOrders(), refProducts(), now)
	if err != nil {
		t.Fatalf("PlanEntries: %v", err)
	}
	for _, po := range planned {
		if len(po.Phases) == 0 {
			t.Fatalf("%s has no phases", po.Order.InternalID)
		}
		if !po.Phases[0].Start.Equal(po.Start) {
			t.Errorf("%s: window start != first phase start", po.Order.InternalID)
		}
		if !po.Phases[len(po.Phases)-1].End.Equal(po.End) {
			t.Errorf("%s: window end != last phase end", po.Order.InternalID)
		}
		for k := 1; k < len(po.Phases); k++ {
			if po.Phases[k].Start.Before(po.Phases[k-1].End) {
				t.Errorf("%s: phase %s starts before %s ends",
					po.Order.InternalID, po.Phases[k].Type, po.Phases[k-1].Type)
			}
			if po.Phases[k].Seq != po.Phases[k-1].Seq+1 {
				t.Errorf("%s: phase seq not contiguous", po.Order.InternalID)
			}
		}
	}
}

func TestPlanEntriesSkipsZeroMinutePhases(t *testing.T) {
	clock := DefaultClock()
	now := refDate(2, 28, 8)
	// IOT-200 has zero-minute THT and Coating entries.
	orders := []SalesOrder{refOrder("SO-100", "SmartHome IoT", "IOT-200", 1, refDate(3, 20, 8), 3)}

	planned, _, err := PlanEntries(clock, orders, refProducts(), now)
	if err != nil {
		t.Fatalf("PlanEntries: %v", err)
	}
	phases := planned[0].Phases
	if len(phases) != 5 {
		t.Fatalf("IOT-200 planned %d phases, want 5", len(phases))
	}
	for _, ph := range phases {
		if ph.Type == PhaseTHT || ph.Type == PhaseCoating {
			t.Errorf("zero-minute phase %s was planned", ph.Type)
		}
	}
	// 63 minutes of work for one unit.
	if got := clock.WorkingMinutesBetween(planned[0].Start, planned[0].End); got != 63 {
		t.Errorf("IOT-200 x1 occupies %d minutes, want 63", got)
	}
}

func TestPlanEntriesUnknownProduct(t *testing.T) {
	clock := DefaultClock()
	orders := []SalesOrder{refOrder("SO-404", "TechFlex", "GHOST-1", 1, refDate(3, 20, 8), 3)}

	_, _, err := PlanEntries(clock, orders, refProducts(), refDate(2, 28, 8))
	var perr *PlanningError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PlanningError", err)
	}
	if perr.OrderID != "SO-404" {
		t.Errorf("PlanningError names %s, want SO-404", perr.OrderID)
	}
}

func TestPlanEntriesCursorNeverBehindNow(t *testing.T) {
	clock := DefaultClock()
	// Cursor handed in at 03:00 must snap to shift open.
	orders := []SalesOrder{refOrder("SO-101", "TechFlex", "IOT-200", 1, refDate(3, 20, 8), 3)}
	planned, _, err := PlanEntries(clock, orders, refProducts(), refDate(2, 28, 3))
	if err != nil {
		t.Fatalf("PlanEntries: %v", err)
	}
	if !planned[0].Start.Equal(refDate(2, 28, 8)) {
		t.Errorf("plan started at %v, want shift open", planned[0].Start)
	}
}
