// Package gantt renders schedule proposals as operator-facing
// artifacts: a plain-text summary for chat messages and an SVG timeline
// for dashboards.
package gantt

import (
	"fmt"
	"strings"

	"github.com/novaboard/lineplan/planner/scheduling"
)

const dayFormat = "Mon Jan 2 15:04"

// Summary renders the proposal as numbered lines with per-order windows
// and slack, followed by totals. Late orders are called out so the
// operator can decide without opening the timeline.
func Summary(s *scheduling.Schedule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule proposal #%d (%s)\n", s.ID, s.Policy)
	fmt.Fprintf(&b, "Generated %s UTC\n\n", s.GeneratedAt.UTC().Format(dayFormat))

	late := 0
	for i, e := range s.Entries {
		status := "ON TIME"
		if !e.OnTime {
			status = "LATE"
			late++
		}
		tag := ""
		if e.Existing {
			tag = " (in production)"
		}
		fmt.Fprintf(&b, "%2d. %-8s %-12s x%-3d  %s -> %s  slack %+dm  %s%s\n",
			i+1, e.Order.InternalID, e.Order.ProductCode, e.Order.Quantity,
			e.Start.UTC().Format(dayFormat), e.End.UTC().Format(dayFormat),
			e.SlackMinutes, status, tag)
	}

	fmt.Fprintf(&b, "\n%d orders, %d on time, %d late\n", len(s.Entries), len(s.Entries)-late, late)
	if len(s.Entries) > 0 {
		first := s.Entries[0]
		lastEnd := s.Entries[0].End
		for _, e := range s.Entries[1:] {
			if e.End.After(lastEnd) {
				lastEnd = e.End
			}
		}
		fmt.Fprintf(&b, "Line busy %s -> %s UTC\n",
			first.Start.UTC().Format(dayFormat), lastEnd.UTC().Format(dayFormat))
	}
	if s.Comment != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Comment)
	}
	return b.String()
}
