package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/novaboard/lineplan/planner/advisor"
	"github.com/novaboard/lineplan/planner/gantt"
	"github.com/novaboard/lineplan/planner/gateway"
	"github.com/novaboard/lineplan/planner/notify"
	"github.com/novaboard/lineplan/planner/observability"
	"github.com/novaboard/lineplan/planner/operator"
	"github.com/novaboard/lineplan/planner/scheduling"
	"github.com/novaboard/lineplan/planner/store"
)

var (
	ErrNoProposal   = errors.New("no proposal is awaiting a decision")
	ErrPOUnresolved = errors.New("could not resolve the executing production order")
)

// Gateway is the slice of the external-system client the orchestrator
// drives. *gateway.Client satisfies it; tests substitute a fake.
type Gateway interface {
	ListSalesOrders(ctx context.Context, status scheduling.OrderStatus) ([]scheduling.SalesOrder, error)
	GetProducts(ctx context.Context) (map[string]scheduling.Product, error)
	UpdateSalesOrderPriority(ctx context.Context, id string, priority int) error
	UpdateSalesOrderStatus(ctx context.Context, id string, status scheduling.OrderStatus) error
	CreateProductionOrder(ctx context.Context, productID string, quantity int, start, end time.Time) (*scheduling.ProductionOrder, error)
	GetProductionOrder(ctx context.Context, id string) (*scheduling.ProductionOrder, error)
	ScheduleProductionOrder(ctx context.Context, id string) (*scheduling.ProductionOrder, error)
	ConfirmProductionOrder(ctx context.Context, id string) error
	DeleteProductionOrder(ctx context.Context, id string) error
	UpdatePOWindow(ctx context.Context, id string, start, end time.Time) error
	UpdatePhaseWindow(ctx context.Context, phaseID string, start, end time.Time) error
}

var _ Gateway = (*gateway.Client)(nil)

// Adviser is the advisory surface used during revision. A nil Adviser
// means no model is configured and every revision falls back to EDF.
type Adviser interface {
	Propose(ctx context.Context, req advisor.Request) (*advisor.Output, error)
}

// Orchestrator owns the planning lifecycle: compute a proposal, hold it
// for the operator, then approve, reject or revise it. Every lifecycle
// operation, gateway writes included, runs under one mutex, so decisions
// are totally ordered: a reject can never interleave with an in-flight
// approve, and a replan arriving during another run waits its turn.
type Orchestrator struct {
	gw      Gateway
	st      store.Store
	clock   scheduling.WorkClock
	adviser Adviser
	channel operator.Channel
	emailer *notify.Emailer
	hub     *ScheduleHub

	now func() time.Time

	mu sync.Mutex
}

func NewOrchestrator(gw Gateway, st store.Store, clock scheduling.WorkClock, adviser Adviser, ch operator.Channel, em *notify.Emailer, hub *ScheduleHub) *Orchestrator {
	return &Orchestrator{
		gw:      gw,
		st:      st,
		clock:   clock,
		adviser: adviser,
		channel: ch,
		emailer: em,
		hub:     hub,
		now:     time.Now,
	}
}

// ComputeProposal builds, materialises and persists a new proposed
// schedule. Any outstanding proposal is rejected first; its production
// orders are removed from the external system. The hint, when present,
// pins a prefix of the order sequence (advisor output); remaining
// orders follow the policy.
func (o *Orchestrator) ComputeProposal(ctx context.Context, policy scheduling.Policy, hint []string, comment string) (*scheduling.Schedule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.computeProposal(ctx, policy, hint, comment)
}

func (o *Orchestrator) computeProposal(ctx context.Context, policy scheduling.Policy, hint []string, comment string) (*scheduling.Schedule, error) {
	started := time.Now()
	s, err := o.planAndPersist(ctx, policy, hint, comment)
	observability.ProposalDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		observability.ProposalsGenerated.WithLabelValues(string(policy), "error").Inc()
		return nil, err
	}
	observability.ProposalsGenerated.WithLabelValues(string(policy), "ok").Inc()
	return s, nil
}

func (o *Orchestrator) planAndPersist(ctx context.Context, policy scheduling.Policy, hint []string, comment string) (*scheduling.Schedule, error) {
	now := o.now().UTC()

	// One proposal slot: anything still pending is rejected first.
	if prev, err := o.st.LatestByStatus(ctx, scheduling.ScheduleProposed); err != nil {
		return nil, fmt.Errorf("load pending proposal: %w", err)
	} else if prev != nil {
		if err := o.rejectSchedule(ctx, prev, "superseded by a new planning run"); err != nil {
			return nil, err
		}
	}

	products, err := o.gw.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	orders, err := o.gw.ListSalesOrders(ctx, scheduling.OrderAccepted)
	if err != nil {
		return nil, fmt.Errorf("fetch sales orders: %w", err)
	}
	tracked, err := o.st.ListTracking(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracking: %w", err)
	}
	trackedBySO := make(map[string]*store.Tracking, len(tracked))
	for _, t := range tracked {
		trackedBySO[t.SalesOrderID] = t
	}

	// Carry tracked orders over untouched and plan the rest after them.
	existing, cursor := o.carryOver(ctx, orders, trackedBySO, now)

	var pending []scheduling.SalesOrder
	for _, so := range orders {
		if _, ok := trackedBySO[so.ID]; ok {
			continue
		}
		if !so.Deadline.After(now) {
			log.Printf("[PLAN] excluding %s: deadline %s already passed", so.InternalID, so.Deadline.Format(time.RFC3339))
			continue
		}
		pending = append(pending, so)
	}

	sorted := scheduling.SortOrders(pending, policy, now, o.clock, products)
	if len(hint) > 0 {
		sorted = scheduling.ReorderByHint(sorted, hint, now, o.clock, products)
	}

	planned, _, err := scheduling.PlanEntries(o.clock, sorted, products, cursor)
	if err != nil {
		return nil, err
	}

	entries, err := o.materialise(ctx, planned, products)
	if err != nil {
		return nil, err
	}
	entries = append(existing, entries...)

	analysis := scheduling.Analyze(entries)
	id, err := o.st.NextScheduleID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate schedule id: %w", err)
	}
	schedule := &scheduling.Schedule{
		ID:          id,
		GeneratedAt: now,
		Policy:      policy,
		Entries:     entries,
		LateIDs:     analysis.LateIDs,
		Status:      scheduling.ScheduleProposed,
		Comment:     comment,
	}

	if err := o.st.SaveSchedule(ctx, schedule); err != nil {
		o.rollback(ctx, entries)
		return nil, fmt.Errorf("persist schedule: %w", err)
	}

	o.publishMetrics(schedule, analysis)
	o.hub.Broadcast(scheduleEvent("proposed", schedule))
	o.notifyProposal(ctx, schedule, analysis)
	return schedule, nil
}

// carryOver builds the schedule entries for orders already in
// production and returns the line cursor: never before now's shift
// ceiling, never before the end of the latest tracked order.
func (o *Orchestrator) carryOver(ctx context.Context, orders []scheduling.SalesOrder, trackedBySO map[string]*store.Tracking, now time.Time) ([]scheduling.ScheduleEntry, time.Time) {
	cursor := o.clock.CeilToShift(now)
	var entries []scheduling.ScheduleEntry

	byID := make(map[string]scheduling.SalesOrder, len(orders))
	for _, so := range orders {
		byID[so.ID] = so
	}
	for _, t := range trackedBySO {
		so, ok := byID[t.SalesOrderID]
		if !ok {
			// Tracked but no longer an active order; leave the line
			// window reserved anyway, reconciliation is manual.
			so = scheduling.SalesOrder{ID: t.SalesOrderID, InternalID: t.SalesOrderCode}
		}
		po := scheduling.ProductionOrder{
			ID:         t.POID,
			InternalID: t.POCode,
			Status:     t.Status,
			Start:      t.Start,
			End:        t.End,
		}
		if full, err := o.gw.GetProductionOrder(ctx, t.POID); err == nil && full != nil {
			po = *full
		}
		slack := o.clock.SlackMinutes(t.End, so.Deadline)
		entries = append(entries, scheduling.ScheduleEntry{
			Order:        so,
			PO:           po,
			Start:        t.Start,
			End:          t.End,
			Deadline:     so.Deadline,
			SlackMinutes: slack,
			OnTime:       slack >= 0,
			Existing:     true,
		})
		if t.End.After(cursor) {
			cursor = t.End
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Start.Before(entries[j].Start) })
	return entries, cursor
}

// materialise creates one production order per planned entry in the
// external system: create, schedule, then date every phase (ending
// date first) and the order window. Any failure deletes everything
// created so far; a proposal is all or nothing.
func (o *Orchestrator) materialise(ctx context.Context, planned []scheduling.PlannedOrder, products map[string]scheduling.Product) ([]scheduling.ScheduleEntry, error) {
	entries := make([]scheduling.ScheduleEntry, 0, len(planned))

	for _, p := range planned {
		product := products[p.Order.ProductCode]
		po, err := o.gw.CreateProductionOrder(ctx, product.ID, p.Order.Quantity, p.Start, p.End)
		if err != nil {
			o.rollback(ctx, entries)
			return nil, fmt.Errorf("create PO for %s: %w", p.Order.InternalID, err)
		}
		po, err = o.gw.ScheduleProductionOrder(ctx, po.ID)
		if err != nil {
			o.gw.DeleteProductionOrder(ctx, po.ID)
			o.rollback(ctx, entries)
			return nil, fmt.Errorf("schedule PO for %s: %w", p.Order.InternalID, err)
		}

		if err := o.datePhases(ctx, po, p.Phases); err != nil {
			o.gw.DeleteProductionOrder(ctx, po.ID)
			o.rollback(ctx, entries)
			return nil, fmt.Errorf("date phases for %s: %w", p.Order.InternalID, err)
		}
		if err := o.gw.UpdatePOWindow(ctx, po.ID, p.Start, p.End); err != nil {
			o.gw.DeleteProductionOrder(ctx, po.ID)
			o.rollback(ctx, entries)
			return nil, fmt.Errorf("set window for %s: %w", p.Order.InternalID, err)
		}

		po.Start, po.End = p.Start, p.End
		entries = append(entries, scheduling.ScheduleEntry{
			Order:        p.Order,
			PO:           *po,
			Start:        p.Start,
			End:          p.End,
			Deadline:     p.Order.Deadline,
			SlackMinutes: p.SlackMinutes,
			OnTime:       p.OnTime,
		})
	}
	return entries, nil
}

// datePhases writes the planned windows onto the external phases,
// matching by phase type. Phases the plan skipped keep their defaults.
func (o *Orchestrator) datePhases(ctx context.Context, po *scheduling.ProductionOrder, planned []scheduling.PlannedPhase) error {
	byType := make(map[scheduling.PhaseType]scheduling.PlannedPhase, len(planned))
	for _, ph := range planned {
		byType[ph.Type] = ph
	}
	for i, ph := range po.Phases {
		want, ok := byType[ph.Type]
		if !ok {
			continue
		}
		if err := o.gw.UpdatePhaseWindow(ctx, ph.ID, want.Start, want.End); err != nil {
			return err
		}
		po.Phases[i].Start, po.Phases[i].End = want.Start, want.End
	}
	return nil
}

// rollback best-effort deletes the production orders already created
// for not-yet-committed entries.
func (o *Orchestrator) rollback(ctx context.Context, entries []scheduling.ScheduleEntry) {
	for _, e := range entries {
		if e.Existing || e.PO.ID == "" {
			continue
		}
		if err := o.gw.DeleteProductionOrder(ctx, e.PO.ID); err != nil {
			log.Printf("[PLAN] rollback: delete PO %s failed: %v", e.PO.InternalID, err)
		}
	}
}

// Approve confirms the proposed schedule: every new production order is
// started in the external system and enters the tracking map, then the
// snapshot supersedes the previously approved one. Approving an already
// approved schedule is a no-op.
func (o *Orchestrator) Approve(ctx context.Context, id int64) (*scheduling.Schedule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.st.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoProposal
	}
	switch s.Status {
	case scheduling.ScheduleApproved:
		return s, nil
	case scheduling.ScheduleProposed:
	default:
		return nil, fmt.Errorf("schedule #%d is %s, not awaiting a decision", id, s.Status)
	}

	now := o.now().UTC()
	for _, e := range s.Entries {
		if e.Existing {
			continue
		}
		if err := o.gw.ConfirmProductionOrder(ctx, e.PO.ID); err != nil {
			return nil, fmt.Errorf("confirm PO %s: %w", e.PO.InternalID, err)
		}
		if err := o.gw.UpdateSalesOrderStatus(ctx, e.Order.ID, scheduling.OrderInProgress); err != nil {
			log.Printf("[APPROVE] mark %s in progress failed: %v", e.Order.InternalID, err)
		}
		t := &store.Tracking{
			SalesOrderID:   e.Order.ID,
			SalesOrderCode: e.Order.InternalID,
			POID:           e.PO.ID,
			POCode:         e.PO.InternalID,
			Status:         scheduling.POReady,
			Start:          e.Start,
			End:            e.End,
			UpdatedAt:      now,
		}
		if err := o.st.SaveTracking(ctx, t); err != nil {
			return nil, fmt.Errorf("track %s: %w", e.Order.InternalID, err)
		}
	}

	if err := o.st.ApproveSchedule(ctx, id); err != nil {
		return nil, err
	}
	s.Status = scheduling.ScheduleApproved

	observability.ProposalDecisions.WithLabelValues("approve").Inc()
	o.hub.Broadcast(scheduleEvent("approved", s))
	go o.emailer.Send(
		fmt.Sprintf("Schedule #%d approved", s.ID),
		gantt.Summary(s),
	)
	log.Printf("[APPROVE] schedule #%d approved, %d orders", s.ID, len(s.Entries))
	return s, nil
}

// Reject discards the proposed schedule and deletes its production
// orders from the external system.
func (o *Orchestrator) Reject(ctx context.Context, id int64, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.st.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if s == nil || s.Status != scheduling.ScheduleProposed {
		return ErrNoProposal
	}
	if err := o.rejectSchedule(ctx, s, reason); err != nil {
		return err
	}
	observability.ProposalDecisions.WithLabelValues("reject").Inc()
	o.hub.Broadcast(scheduleEvent("rejected", s))
	return nil
}

func (o *Orchestrator) rejectSchedule(ctx context.Context, s *scheduling.Schedule, reason string) error {
	o.rollback(ctx, s.Entries)
	if err := o.st.UpdateScheduleStatus(ctx, s.ID, scheduling.ScheduleRejected); err != nil {
		return fmt.Errorf("mark schedule #%d rejected: %w", s.ID, err)
	}
	log.Printf("[REJECT] schedule #%d rejected: %s", s.ID, reason)
	return nil
}

// Revise runs the advisor over the pending proposal with the operator's
// feedback, applies any priority updates, then replans with the
// advisor's ordering as hint. Without an advisor, or on any advisor
// failure, the replan falls back to plain EDF and says so.
func (o *Orchestrator) Revise(ctx context.Context, feedback string) (*scheduling.Schedule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, err := o.st.LatestByStatus(ctx, scheduling.ScheduleProposed)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoProposal
	}

	var hint []string
	comment := ""
	out := o.consult(ctx, s, feedback)
	if out == nil {
		comment = "Advisor unavailable. Replanned with the default EDF order."
		observability.AdvisorCalls.WithLabelValues("fallback").Inc()
	} else {
		hint = out.ReorderedIDs
		comment = out.Comment
		for _, u := range out.PriorityUpdates {
			if err := o.gw.UpdateSalesOrderPriority(ctx, u.SalesOrderID, u.NewPriority); err != nil {
				log.Printf("[REVISE] priority update for %s failed: %v", u.SalesOrderID, err)
				continue
			}
			log.Printf("[REVISE] priority of %s -> %d (%s)", u.SalesOrderID, u.NewPriority, u.Reason)
		}
		if len(out.Conflicts) > 0 {
			comment += "\nConflicts: " + strings.Join(out.Conflicts, "; ")
		}
	}

	observability.ProposalDecisions.WithLabelValues("revise").Inc()
	return o.computeProposal(ctx, scheduling.PolicyEDF, hint, comment)
}

// consult runs the advisor, returning nil whenever its output is unusable.
func (o *Orchestrator) consult(ctx context.Context, s *scheduling.Schedule, feedback string) *advisor.Output {
	if o.adviser == nil {
		return nil
	}
	req := advisor.Request{Now: o.now().UTC(), Feedback: feedback}
	for _, e := range s.Entries {
		if e.Existing {
			req.Current = append(req.Current, advisor.OrderContextFromEntry(e))
		} else {
			req.Pending = append(req.Pending, advisor.OrderContextFromSO(e.Order))
		}
	}
	out, err := o.adviser.Propose(ctx, req)
	if err != nil {
		log.Printf("[REVISE] advisor failed, falling back to EDF: %v", err)
		return nil
	}
	return out
}

// CancelOrder handles the operator's decision after a factory failure:
// the sales order is cancelled, its production order deleted, and the
// remaining work replanned.
func (o *Orchestrator) CancelOrder(ctx context.Context, soID, poID string) (*scheduling.Schedule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.gw.UpdateSalesOrderStatus(ctx, soID, scheduling.OrderCancelled); err != nil {
		return nil, fmt.Errorf("cancel sales order: %w", err)
	}
	if err := o.gw.DeleteProductionOrder(ctx, poID); err != nil {
		log.Printf("[FAILURE] delete PO %s failed: %v", poID, err)
	}
	if err := o.st.DeleteTracking(ctx, soID); err != nil {
		return nil, fmt.Errorf("untrack %s: %w", soID, err)
	}
	log.Printf("[FAILURE] order %s cancelled after line failure", soID)
	return o.computeProposal(ctx, scheduling.PolicyEDF, nil, "Replanned after cancelling a failed order.")
}

// RestartOrder deletes the failed production order but keeps the sales
// order accepted, so the next plan schedules it from scratch.
func (o *Orchestrator) RestartOrder(ctx context.Context, soID, poID string) (*scheduling.Schedule, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.gw.DeleteProductionOrder(ctx, poID); err != nil {
		return nil, fmt.Errorf("delete production order: %w", err)
	}
	if err := o.st.DeleteTracking(ctx, soID); err != nil {
		return nil, fmt.Errorf("untrack %s: %w", soID, err)
	}
	log.Printf("[FAILURE] order %s will be restarted from scratch", soID)
	return o.computeProposal(ctx, scheduling.PolicyEDF, nil, "Replanned after restarting a failed order.")
}

// ResolveExecutingPO maps a factory failure report onto the production
// order that was running. Resolution order: the reported id if tracked
// and plausibly active, else the single in-progress order, else the
// order whose window contains now, else the earliest ready order.
func (o *Orchestrator) ResolveExecutingPO(ctx context.Context, reportedPOID string) (*store.Tracking, error) {
	tracked, err := o.st.ListTracking(ctx)
	if err != nil {
		return nil, err
	}
	active := func(t *store.Tracking) bool {
		return t.Status == scheduling.POReady || t.Status == scheduling.POInProgress
	}

	if reportedPOID != "" {
		for _, t := range tracked {
			if t.POID == reportedPOID && active(t) {
				return t, nil
			}
		}
	}

	var inProgress []*store.Tracking
	for _, t := range tracked {
		if t.Status == scheduling.POInProgress {
			inProgress = append(inProgress, t)
		}
	}
	if len(inProgress) == 1 {
		return inProgress[0], nil
	}

	now := o.now().UTC()
	for _, t := range tracked {
		if active(t) && !now.Before(t.Start) && now.Before(t.End) {
			return t, nil
		}
	}

	var earliest *store.Tracking
	for _, t := range tracked {
		if t.Status != scheduling.POReady {
			continue
		}
		if earliest == nil || t.Start.Before(earliest.Start) {
			earliest = t
		}
	}
	if earliest != nil {
		return earliest, nil
	}
	return nil, ErrPOUnresolved
}

// HandleFactoryFailure notifies the operator about a line failure with
// cancel/restart choices for the resolved order. The decision comes
// back later through the operator channel.
func (o *Orchestrator) HandleFactoryFailure(ctx context.Context, reportedPOID, description string, image []byte) (*store.Tracking, error) {
	t, err := o.ResolveExecutingPO(ctx, reportedPOID)
	if err != nil {
		observability.FactoryEvents.WithLabelValues("unresolved").Inc()
		o.channel.Send(ctx, operator.Message{
			Text: fmt.Sprintf("Line failure reported but no executing order could be resolved.\n%s", description),
		})
		return nil, err
	}
	observability.FactoryEvents.WithLabelValues("accepted").Inc()

	msg := operator.Message{
		Text: fmt.Sprintf("Line failure on %s (%s)\n%s\n\nCancel the order or restart it from scratch?",
			t.POCode, t.SalesOrderCode, description),
		Image:     image,
		ImageName: "failure.jpg",
		Buttons: [][]operator.Button{{
			{Label: "Cancel order", Data: operator.CancelOrderData(t.SalesOrderID, t.POID)},
			{Label: "Restart order", Data: operator.RestartOrderData(t.SalesOrderID, t.POID)},
		}},
	}
	if err := o.channel.Send(ctx, msg); err != nil {
		return t, fmt.Errorf("notify operator: %w", err)
	}
	go o.emailer.Send(
		fmt.Sprintf("Line failure on %s", t.POCode),
		fmt.Sprintf("Production order %s (sales order %s) failed on the line.\n\n%s", t.POCode, t.SalesOrderCode, description),
	)
	return t, nil
}

func (o *Orchestrator) publishMetrics(s *scheduling.Schedule, a scheduling.Analysis) {
	late := len(a.LateIDs)
	observability.ScheduledOrders.WithLabelValues("on_time").Set(float64(a.OnTimeCount))
	observability.ScheduledOrders.WithLabelValues("late").Set(float64(late))
	observability.WorstSlackMinutes.Set(float64(a.WorstSlackMin))
}

// notifyProposal pushes the proposal to the operator with the decision
// buttons and the timeline image.
func (o *Orchestrator) notifyProposal(ctx context.Context, s *scheduling.Schedule, a scheduling.Analysis) {
	text := gantt.Summary(s)
	if !a.Clean {
		text += fmt.Sprintf("\nWARNING: %d orders miss their deadline (worst slack %d min).\n", len(a.LateIDs), a.WorstSlackMin)
	}
	msg := operator.Message{
		Text:      text,
		Image:     gantt.SVG(s),
		ImageName: fmt.Sprintf("schedule-%d.svg", s.ID),
		Buttons: [][]operator.Button{{
			{Label: "Approve", Data: operator.ApproveData(s.ID)},
			{Label: "Reject", Data: operator.RejectData(s.ID)},
			{Label: "Revise", Data: operator.ReviseData(s.ID)},
		}},
	}
	if err := o.channel.Send(ctx, msg); err != nil {
		log.Printf("[PLAN] operator notification failed: %v", err)
	}
	go o.emailer.Send(fmt.Sprintf("Schedule proposal #%d", s.ID), text)
}

type scheduleEventPayload struct {
	Event    string               `json:"event"`
	Schedule *scheduling.Schedule `json:"schedule"`
}

func scheduleEvent(event string, s *scheduling.Schedule) scheduleEventPayload {
	return scheduleEventPayload{Event: event, Schedule: s}
}
