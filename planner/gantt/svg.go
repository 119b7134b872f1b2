package gantt

import (
	"fmt"
	"strings"
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

var phaseColors = map[scheduling.PhaseType]string{
	scheduling.PhaseSMT:     "#4fc3f7",
	scheduling.PhaseReflow:  "#81c784",
	scheduling.PhaseTHT:     "#ffb74d",
	scheduling.PhaseAOI:     "#ba68c8",
	scheduling.PhaseTest:    "#f06292",
	scheduling.PhaseCoating: "#4db6ac",
	scheduling.PhasePack:    "#aed581",
}

const (
	svgWidth    = 1200
	rowHeight   = 34
	barHeight   = 22
	leftMargin  = 110
	topMargin   = 46
	bottomPad   = 52
	legendYOff  = 20
	minuteFloor = 60 // never scale below one hour of span
)

// SVG renders the schedule as a horizontal timeline, one row per order,
// with the BOM phases as colored segments and the deadline as a red
// marker. The output is self-contained and needs no external assets.
func SVG(s *scheduling.Schedule) []byte {
	if len(s.Entries) == 0 {
		return []byte(fmt.Sprintf(
			`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="80"><text x="16" y="44" font-family="sans-serif" font-size="14">Schedule #%d is empty</text></svg>`,
			s.ID))
	}

	start := s.Entries[0].Start
	end := s.Entries[0].End
	for _, e := range s.Entries {
		if e.Start.Before(start) {
			start = e.Start
		}
		if e.End.After(end) {
			end = e.End
		}
		if e.Deadline.After(end) {
			end = e.Deadline
		}
	}
	span := end.Sub(start).Minutes()
	if span < minuteFloor {
		span = minuteFloor
	}
	plotW := float64(svgWidth - leftMargin - 20)
	x := func(t time.Time) float64 {
		return float64(leftMargin) + t.Sub(start).Minutes()/span*plotW
	}

	height := topMargin + len(s.Entries)*rowHeight + bottomPad
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="sans-serif">`, svgWidth, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#fafafa"/>`, svgWidth, height)
	fmt.Fprintf(&b, `<text x="%d" y="24" font-size="15" font-weight="bold">Schedule #%d (%s)</text>`,
		leftMargin, s.ID, escape(string(s.Policy)))

	// day grid
	for d := start.Truncate(24 * time.Hour); !d.After(end); d = d.Add(24 * time.Hour) {
		if d.Before(start) {
			continue
		}
		gx := x(d)
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#ddd"/>`,
			gx, topMargin-8, gx, height-bottomPad+8)
		fmt.Fprintf(&b, `<text x="%.1f" y="%d" font-size="10" fill="#888">%s</text>`,
			gx+2, topMargin-12, d.Format("Jan 2"))
	}

	for i, e := range s.Entries {
		y := topMargin + i*rowHeight
		label := e.Order.InternalID
		if e.Existing {
			label += " *"
		}
		fmt.Fprintf(&b, `<text x="8" y="%d" font-size="12">%s</text>`, y+barHeight-6, escape(label))

		if len(e.PO.Phases) > 0 {
			for _, ph := range e.PO.Phases {
				if ph.Start.IsZero() || ph.End.IsZero() {
					continue
				}
				color, ok := phaseColors[ph.Type]
				if !ok {
					color = "#b0bec5"
				}
				x0 := x(ph.Start)
				w := x(ph.End) - x0
				if w < 1 {
					w = 1
				}
				fmt.Fprintf(&b, `<rect x="%.1f" y="%d" width="%.1f" height="%d" fill="%s"><title>%s %s -> %s</title></rect>`,
					x0, y, w, barHeight, color,
					escape(string(ph.Type)), ph.Start.UTC().Format("15:04"), ph.End.UTC().Format("15:04"))
			}
		} else {
			x0 := x(e.Start)
			fmt.Fprintf(&b, `<rect x="%.1f" y="%d" width="%.1f" height="%d" fill="#90a4ae"/>`,
				x0, y, x(e.End)-x0, barHeight)
		}

		// deadline marker
		dx := x(e.Deadline)
		stroke := "#2e7d32"
		if !e.OnTime {
			stroke = "#c62828"
		}
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="%s" stroke-width="2"/>`,
			dx, y-3, dx, y+barHeight+3, stroke)
	}

	// legend
	ly := height - bottomPad + legendYOff
	lx := leftMargin
	for _, pt := range scheduling.PhaseOrder {
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="12" height="12" fill="%s"/>`, lx, ly, phaseColors[pt])
		fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="11">%s</text>`, lx+16, ly+10, escape(string(pt)))
		lx += 18 + 9*len(pt) + 18
	}

	b.WriteString(`</svg>`)
	return []byte(b.String())
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
