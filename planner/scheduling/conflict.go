package scheduling

// Analysis summarises the deadline health of one schedule.
type Analysis struct {
	LateIDs         []string `json:"late_ids"`
	OnTimeCount     int      `json:"on_time_count"`
	WorstSlackMin   int      `json:"worst_slack_minutes"`
	AverageSlackMin float64  `json:"average_slack_minutes"`
	Clean           bool     `json:"clean"`
}

// Analyze computes per-entry lateness aggregates for a set of schedule
// entries. A schedule is clean iff no entry misses its deadline.
func Analyze(entries []ScheduleEntry) Analysis {
	a := Analysis{Clean: true, LateIDs: []string{}}
	if len(entries) == 0 {
		return a
	}

	sum := 0
	worst := entries[0].SlackMinutes
	for _, e := range entries {
		sum += e.SlackMinutes
		if e.SlackMinutes < worst {
			worst = e.SlackMinutes
		}
		if e.OnTime {
			a.OnTimeCount++
		} else {
			a.LateIDs = append(a.LateIDs, e.Order.InternalID)
			a.Clean = false
		}
	}
	a.WorstSlackMin = worst
	a.AverageSlackMin = float64(sum) / float64(len(entries))
	return a
}
