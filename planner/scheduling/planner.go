package scheduling

import "time"

// PlannedPhase is one dated phase produced by the planner, before it has
// any external-system identity.
type PlannedPhase struct {
	Type    PhaseType
	Seq     int
	Minutes int
	Start   time.Time
	End     time.Time
}

// PlannedOrder is the planner's output for one sales order: the phase chain
// and the resulting line window.
type PlannedOrder struct {
	Order        SalesOrder
	Phases       []PlannedPhase
	Start        time.Time
	End          time.Time
	SlackMinutes int
	OnTime       bool
}

// PlanEntries walks the sorted orders through the single line starting at
// cursor, assigning each BOM phase a working-hours window. Phases within an
// order are back to back; orders never overlap. Returns the planned orders
// and the final line cursor. Pure: no I/O, no mutation of inputs.
//
// An order whose product is missing from reference data fails the whole
// plan with a PlanningError.
func PlanEntries(clock WorkClock, orders []SalesOrder, products map[string]Product, cursor time.Time) ([]PlannedOrder, time.Time, error) {
	cursor = clock.CeilToShift(cursor)
	planned := make([]PlannedOrder, 0, len(orders))

	for _, so := range orders {
		product, ok := products[so.ProductCode]
		if !ok {
			return nil, cursor, &PlanningError{OrderID: so.InternalID, Reason: "unknown product " + so.ProductCode}
		}
		if len(product.BOM) == 0 {
			return nil, cursor, &PlanningError{OrderID: so.InternalID, Reason: "product " + so.ProductCode + " has no BOM"}
		}

		phases := make([]PlannedPhase, 0, len(product.BOM))
		phaseCursor := cursor
		for _, bp := range product.BOM {
			total := bp.MinutesPerUnit * so.Quantity
			if total == 0 {
				continue // product skips this phase
			}
			end := clock.AddWorkingMinutes(phaseCursor, total)
			phases = append(phases, PlannedPhase{
				Type:    bp.Type,
				Seq:     len(phases),
				Minutes: total,
				Start:   phaseCursor,
				End:     end,
			})
			phaseCursor = end
		}
		if len(phases) == 0 {
			return nil, cursor, &PlanningError{OrderID: so.InternalID, Reason: "product " + so.ProductCode + " has an all-zero BOM"}
		}

		start := phases[0].Start
		end := phases[len(phases)-1].End
		slack := clock.SlackMinutes(end, so.Deadline)
		planned = append(planned, PlannedOrder{
			Order:        so,
			Phases:       phases,
			Start:        start,
			End:          end,
			SlackMinutes: slack,
			OnTime:       slack >= 0,
		})
		cursor = end
	}
	return planned, cursor, nil
}
