package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// PhaseType identifies one manufacturing phase on the line.
type PhaseType string

const (
	PhaseSMT     PhaseType = "SMT"
	PhaseReflow  PhaseType = "Reflow"
	PhaseTHT     PhaseType = "THT"
	PhaseAOI     PhaseType = "AOI"
	PhaseTest    PhaseType = "Test"
	PhaseCoating PhaseType = "Coating"
	PhasePack    PhaseType = "Pack"
)

// PhaseOrder is the canonical phase sequence on the line. Products skip
// phases their BOM gives zero minutes for.
var PhaseOrder = []PhaseType{
	PhaseSMT, PhaseReflow, PhaseTHT, PhaseAOI, PhaseTest, PhaseCoating, PhasePack,
}

// OrderStatus is the lifecycle state of a sales order.
type OrderStatus string

const (
	OrderAccepted   OrderStatus = "accepted"
	OrderInProgress OrderStatus = "in_progress"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// POStatus is the lifecycle state of a production order.
type POStatus string

const (
	PODraft      POStatus = "draft"
	POScheduled  POStatus = "scheduled"
	POReady      POStatus = "ready"
	POInProgress POStatus = "in_progress"
	POCompleted  POStatus = "completed"
	POCancelled  POStatus = "cancelled"
)

// PhaseStatus is the execution state of one production phase.
type PhaseStatus string

const (
	PhaseNotReady  PhaseStatus = "not_ready"
	PhaseReady     PhaseStatus = "ready"
	PhaseStarted   PhaseStatus = "started"
	PhaseCompleted PhaseStatus = "completed"
)

// ScheduleStatus is the lifecycle state of a schedule snapshot.
type ScheduleStatus string

const (
	ScheduleProposed   ScheduleStatus = "proposed"
	ScheduleApproved   ScheduleStatus = "approved"
	ScheduleRejected   ScheduleStatus = "rejected"
	ScheduleSuperseded ScheduleStatus = "superseded"
)

// Customer identifies the buyer behind a sales order.
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SalesOrder is a customer commitment: product, quantity, deadline, priority.
// The engine only ever mutates Priority (on revise) and Status.
type SalesOrder struct {
	ID          string      `json:"id"`          // external system UUID
	InternalID  string      `json:"internal_id"` // e.g. "SO-005"
	Customer    Customer    `json:"customer"`
	ProductID   string      `json:"product_id"`
	ProductCode string      `json:"product_code"` // e.g. "IOT-200"
	Quantity    int         `json:"quantity"`
	Deadline    time.Time   `json:"deadline"`
	Priority    int         `json:"priority"` // 1 = most urgent
	Status      OrderStatus `json:"status"`
	Notes       string      `json:"notes,omitempty"`
}

// BOMPhase is one step of a product's bill of phases.
type BOMPhase struct {
	Type           PhaseType `json:"type"`
	MinutesPerUnit int       `json:"minutes_per_unit"`
}

// Product is read-only reference data: identity plus the ordered BOM.
type Product struct {
	ID   string     `json:"id"`
	Code string     `json:"code"`
	Name string     `json:"name"`
	BOM  []BOMPhase `json:"bom"`
}

// MinutesPerUnit sums the BOM phase durations for one unit.
func (p Product) MinutesPerUnit() int {
	total := 0
	for _, ph := range p.BOM {
		total += ph.MinutesPerUnit
	}
	return total
}

// ProductionMinutes is the total working time a sales order occupies the line.
func ProductionMinutes(p Product, quantity int) int {
	return p.MinutesPerUnit() * quantity
}

// ProductionPhase is one dated phase of a production order.
type ProductionPhase struct {
	ID      string      `json:"id"`
	Type    PhaseType   `json:"type"`
	Seq     int         `json:"seq"`
	Start   time.Time   `json:"start"`
	End     time.Time   `json:"end"`
	Status  PhaseStatus `json:"status"`
	Minutes int         `json:"minutes"`
}

// ProductionOrder is the materialised execution record for one sales order.
type ProductionOrder struct {
	ID           string            `json:"id"`
	InternalID   string            `json:"internal_id"` // e.g. "PO-017"
	SalesOrderID string            `json:"sales_order_id"`
	ProductID    string            `json:"product_id"`
	ProductCode  string            `json:"product_code"`
	Quantity     int               `json:"quantity"`
	Start        time.Time         `json:"start"`
	End          time.Time         `json:"end"`
	Status       POStatus          `json:"status"`
	Phases       []ProductionPhase `json:"phases"`
}

// ScheduleEntry records one planned production order within a schedule.
type ScheduleEntry struct {
	Order        SalesOrder      `json:"order"`
	PO           ProductionOrder `json:"po"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Deadline     time.Time       `json:"deadline"`
	SlackMinutes int             `json:"slack_minutes"` // negative = late
	OnTime       bool            `json:"on_time"`
	Existing     bool            `json:"existing"` // carried over from the approved schedule
}

// Schedule is an immutable snapshot of one planning run.
type Schedule struct {
	ID          int64           `json:"id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Policy      Policy          `json:"policy"`
	Entries     []ScheduleEntry `json:"entries"`
	LateIDs     []string        `json:"late_ids"`
	Status      ScheduleStatus  `json:"status"`
	Comment     string          `json:"comment,omitempty"`
}

// Policy selects the ordering strategy for a planning run.
type Policy string

const (
	PolicyEDF      Policy = "EDF"
	PolicyPriority Policy = "PRIORITY"
	PolicySJF      Policy = "SJF"
	PolicyLJF      Policy = "LJF"
	PolicySlack    Policy = "SLACK"
	PolicyCustomer Policy = "CUSTOMER"
)

// ParsePolicy maps operator input onto the closed policy set.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToUpper(strings.TrimSpace(s))) {
	case PolicyEDF:
		return PolicyEDF, nil
	case PolicyPriority:
		return PolicyPriority, nil
	case PolicySJF:
		return PolicySJF, nil
	case PolicyLJF:
		return PolicyLJF, nil
	case PolicySlack:
		return PolicySlack, nil
	case PolicyCustomer:
		return PolicyCustomer, nil
	}
	return "", fmt.Errorf("unknown policy %q (want EDF, PRIORITY, SJF, LJF, SLACK or CUSTOMER)", s)
}

// PlanningError marks a sales order the planner cannot expand, typically
// because its product or BOM is missing from reference data.
type PlanningError struct {
	OrderID string
	Reason  string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning %s: %s", e.OrderID, e.Reason)
}
