package gateway

import (
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

// Wire shapes of the Arke API. Phase names arrive under several nesting
// patterns depending on the endpoint, hence the lenient extraction.

type customerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type soLineDTO struct {
	ExtraID  string `json:"extra_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type salesOrderDTO struct {
	ID                   string      `json:"id"`
	InternalID           string      `json:"internal_id"`
	CustomerAttr         customerDTO `json:"customer_attr"`
	Products             []soLineDTO `json:"products"`
	ExpectedShippingTime string      `json:"expected_shipping_time"`
	Priority             int         `json:"priority"`
	Status               string      `json:"status"`
	Notes                string      `json:"notes"`
}

func (d salesOrderDTO) toDomain() scheduling.SalesOrder {
	so := scheduling.SalesOrder{
		ID:         d.ID,
		InternalID: d.InternalID,
		Customer:   scheduling.Customer{ID: d.CustomerAttr.ID, Name: d.CustomerAttr.Name},
		Deadline:   parseWireTime(d.ExpectedShippingTime),
		Priority:   d.Priority,
		Status:     scheduling.OrderStatus(d.Status),
		Notes:      d.Notes,
	}
	if so.Priority == 0 {
		so.Priority = 99
	}
	if len(d.Products) > 0 {
		line := d.Products[0]
		so.ProductID = line.ExtraID
		so.ProductCode = line.ExtraID
		so.Quantity = line.Quantity
	}
	return so
}

type bomPhaseDTO struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"` // minutes per unit
}

type productDTO struct {
	ID         string        `json:"id"`
	InternalID string        `json:"internal_id"`
	Name       string        `json:"name"`
	Phases     []bomPhaseDTO `json:"phases"`
}

func (d productDTO) toDomain() scheduling.Product {
	p := scheduling.Product{
		ID:   d.ID,
		Code: d.InternalID,
		Name: d.Name,
	}
	if p.Name == "" {
		p.Name = d.InternalID
	}
	// Preserve the canonical phase order regardless of wire order.
	byName := make(map[string]int, len(d.Phases))
	for _, ph := range d.Phases {
		byName[ph.Name] = ph.Duration
	}
	for _, pt := range scheduling.PhaseOrder {
		if mins, ok := byName[string(pt)]; ok {
			p.BOM = append(p.BOM, scheduling.BOMPhase{Type: pt, MinutesPerUnit: mins})
		}
	}
	return p
}

type phaseDTO struct {
	ID        string `json:"id"`
	PhaseID   string `json:"phase_id"`
	Name      string `json:"name"`
	PhaseName string `json:"phase_name"`
	Phase     *struct {
		Name string `json:"name"`
	} `json:"phase"`
	ProductionPhase *struct {
		Name string `json:"name"`
	} `json:"production_phase"`
	Status   string `json:"status"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
	Duration int    `json:"duration"`
}

func (d phaseDTO) name() string {
	switch {
	case d.Phase != nil && d.Phase.Name != "":
		return d.Phase.Name
	case d.Name != "":
		return d.Name
	case d.PhaseName != "":
		return d.PhaseName
	case d.ProductionPhase != nil:
		return d.ProductionPhase.Name
	}
	return ""
}

func (d phaseDTO) id() string {
	if d.ID != "" {
		return d.ID
	}
	return d.PhaseID
}

type productionOrderDTO struct {
	ID                string     `json:"id"`
	Lot               string     `json:"lot"`
	ProductID         string     `json:"product_id"`
	ProductInternalID string     `json:"product_internal_id"`
	Quantity          int        `json:"quantity"`
	StartsAt          string     `json:"starts_at"`
	EndsAt            string     `json:"ends_at"`
	Status            string     `json:"status"`
	Phases            []phaseDTO `json:"phases"`
	ProductionPhases  []phaseDTO `json:"production_phases"`
}

func (d productionOrderDTO) toDomain() scheduling.ProductionOrder {
	po := scheduling.ProductionOrder{
		ID:          d.ID,
		InternalID:  d.Lot,
		ProductID:   d.ProductID,
		ProductCode: d.ProductInternalID,
		Quantity:    d.Quantity,
		Start:       parseWireTime(d.StartsAt),
		End:         parseWireTime(d.EndsAt),
		Status:      scheduling.POStatus(d.Status),
	}
	if po.InternalID == "" && len(d.ID) >= 12 {
		po.InternalID = d.ID[:12]
	}

	raw := d.Phases
	if len(raw) == 0 {
		raw = d.ProductionPhases
	}
	// Order phases canonically; drop entries with no recognisable name.
	for seq, pt := range scheduling.PhaseOrder {
		for _, ph := range raw {
			if ph.name() != string(pt) {
				continue
			}
			status := scheduling.PhaseStatus(ph.Status)
			if status == "" {
				status = scheduling.PhaseNotReady
			}
			po.Phases = append(po.Phases, scheduling.ProductionPhase{
				ID:      ph.id(),
				Type:    pt,
				Seq:     seq,
				Start:   parseWireTime(ph.StartsAt),
				End:     parseWireTime(ph.EndsAt),
				Status:  status,
				Minutes: ph.Duration,
			})
		}
	}
	for i := range po.Phases {
		po.Phases[i].Seq = i
	}

	// Dated phases are more trustworthy than the PO's own window.
	var first, last time.Time
	for _, ph := range po.Phases {
		if ph.Start.IsZero() || ph.End.IsZero() {
			continue
		}
		if first.IsZero() || ph.Start.Before(first) {
			first = ph.Start
		}
		if last.IsZero() || ph.End.After(last) {
			last = ph.End
		}
	}
	if !first.IsZero() {
		po.Start, po.End = first, last
	}
	return po
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{wireTimeFormat, time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
