package scheduling

import "testing"

func planWith(t *testing.T, policy Policy) []ScheduleEntry {
	t.Helper()
	clock := DefaultClock()
	now := refDate(2, 28, 8)
	orders := SortOrders(refOrders(), policy, now, clock, refProducts())
	planned, _, err := PlanEntries(clock, orders, refProducts(), now)
	if err != nil {
		t.Fatalf("PlanEntries: %v", err)
	}
	entries := make([]ScheduleEntry, len(planned))
	for i, po := range planned {
		entries[i] = ScheduleEntry{
			Order:        po.Order,
			Start:        po.Start,
			End:          po.End,
			Deadline:     po.Order.Deadline,
			SlackMinutes: po.SlackMinutes,
			OnTime:       po.OnTime,
		}
	}
	return entries
}

func TestAnalyzePriorityConflict(t *testing.T) {
	a := Analyze(planWith(t, PolicyPriority))

	if a.Clean {
		t.Fatal("PRIORITY on the reference set should not be clean")
	}
	// The escalated SO-005 displaces SO-003 past its Mar 4 deadline.
	found := false
	for _, id := range a.LateIDs {
		if id == "SO-003" {
			found = true
		}
	}
	if !found {
		t.Errorf("late set %v does not flag SO-003", a.LateIDs)
	}
}

func TestAnalyzeEDFMinimisesLateness(t *testing.T) {
	edf := Analyze(planWith(t, PolicyEDF))
	prio := Analyze(planWith(t, PolicyPriority))

	// The order book overruns the horizon, so even EDF leaves stragglers,
	// but strictly fewer than priority-first and with better worst slack.
	if len(edf.LateIDs) >= len(prio.LateIDs) {
		t.Errorf("EDF late=%v vs PRIORITY late=%v", edf.LateIDs, prio.LateIDs)
	}
	if edf.WorstSlackMin < prio.WorstSlackMin {
		t.Errorf("EDF worst slack %d worse than PRIORITY %d", edf.WorstSlackMin, prio.WorstSlackMin)
	}
	if edf.OnTimeCount+len(edf.LateIDs) != 12 {
		t.Errorf("on-time %d + late %d != 12", edf.OnTimeCount, len(edf.LateIDs))
	}
}

func TestAnalyzeCanonicalTwoOrderConflict(t *testing.T) {
	clock := DefaultClock()
	now := refDate(3, 2, 8)
	orders := []SalesOrder{
		refOrder("SO-003", "AgriBot Systems", "AGR-400", 5, refDate(3, 4, 8), 2),
		refOrder("SO-005", "SmartHome IoT", "IOT-200", 10, refDate(3, 8, 8), 1),
	}

	check := func(policy Policy) Analysis {
		sorted := SortOrders(orders, policy, now, clock, refProducts())
		planned, _, err := PlanEntries(clock, sorted, refProducts(), now)
		if err != nil {
			t.Fatalf("%s: %v", policy, err)
		}
		entries := make([]ScheduleEntry, len(planned))
		for i, po := range planned {
			entries[i] = ScheduleEntry{Order: po.Order, End: po.End, Deadline: po.Order.Deadline,
				SlackMinutes: po.SlackMinutes, OnTime: po.OnTime}
		}
		return Analyze(entries)
	}

	if a := check(PolicyEDF); !a.Clean {
		t.Errorf("EDF should meet both deadlines, late=%v", a.LateIDs)
	}
	a := check(PolicyPriority)
	if a.Clean || len(a.LateIDs) != 1 || a.LateIDs[0] != "SO-003" {
		t.Errorf("PRIORITY should make exactly SO-003 late, got %v", a.LateIDs)
	}
	if a.WorstSlackMin != -390 {
		t.Errorf("SO-003 worst slack = %d, want -390", a.WorstSlackMin)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil)
	if !a.Clean || a.OnTimeCount != 0 || len(a.LateIDs) != 0 {
		t.Errorf("empty analysis = %+v", a)
	}
}
