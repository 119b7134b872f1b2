package gantt

import (
	"strings"
	"testing"
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

func sampleSchedule() *scheduling.Schedule {
	day := func(d, h, m int) time.Time {
		return time.Date(2026, 3, d, h, m, 0, 0, time.UTC)
	}
	po := scheduling.ProductionOrder{
		ID:         "uuid-po-001",
		InternalID: "PO-001",
		Phases: []scheduling.ProductionPhase{
			{Type: scheduling.PhaseSMT, Seq: 1, Start: day(2, 8, 0), End: day(2, 9, 0)},
			{Type: scheduling.PhaseTest, Seq: 2, Start: day(2, 9, 0), End: day(2, 10, 30)},
		},
	}
	return &scheduling.Schedule{
		ID:          12,
		GeneratedAt: day(2, 7, 30),
		Policy:      scheduling.PolicyEDF,
		Status:      scheduling.ScheduleProposed,
		Entries: []scheduling.ScheduleEntry{
			{
				Order:        scheduling.SalesOrder{InternalID: "SO-001", ProductCode: "PCB-IND-100", Quantity: 2},
				PO:           po,
				Start:        day(2, 8, 0),
				End:          day(2, 10, 30),
				Deadline:     day(3, 16, 0),
				SlackMinutes: 810,
				OnTime:       true,
			},
			{
				Order:        scheduling.SalesOrder{InternalID: "SO-003", ProductCode: "AGR-400", Quantity: 5},
				Start:        day(2, 10, 30),
				End:          day(3, 14, 30),
				Deadline:     day(3, 10, 0),
				SlackMinutes: -270,
				OnTime:       false,
			},
		},
	}
}

func TestSummaryContents(t *testing.T) {
	s := sampleSchedule()
	out := Summary(s)

	for _, want := range []string{
		"Schedule proposal #12 (EDF)",
		"SO-001", "SO-003",
		"ON TIME", "LATE",
		"slack +810m", "slack -270m",
		"2 orders, 1 on time, 1 late",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryShowsComment(t *testing.T) {
	s := sampleSchedule()
	s.Comment = "Reordered to protect the MedTec deadline."
	if out := Summary(s); !strings.Contains(out, s.Comment) {
		t.Errorf("summary should include the advisor comment:\n%s", out)
	}
}

func TestSVGRendersPhasesAndDeadlines(t *testing.T) {
	out := string(SVG(sampleSchedule()))

	if !strings.HasPrefix(out, "<svg") || !strings.HasSuffix(out, "</svg>") {
		t.Fatalf("not a well-formed svg document: %.80s", out)
	}
	for _, want := range []string{
		"Schedule #12",
		phaseColors[scheduling.PhaseSMT],
		phaseColors[scheduling.PhaseTest],
		"#c62828", // late deadline marker
		"#2e7d32", // on-time deadline marker
		"SO-001", "SO-003",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
}

func TestSVGEmptySchedule(t *testing.T) {
	out := string(SVG(&scheduling.Schedule{ID: 3}))
	if !strings.Contains(out, "empty") {
		t.Errorf("empty schedule should render a placeholder, got %s", out)
	}
}
