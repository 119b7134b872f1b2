// Package advisor wraps the Gemini replanning assistant. The advisor is
// strictly advisory: it returns an order permutation plus priority hints,
// and the deterministic planner remains the only writer. Every failure
// mode degrades to an empty output so callers can fall back to EDF.
package advisor

import (
	"context"
	"log"
	"time"

	"google.golang.org/genai"

	"github.com/novaboard/lineplan/planner/observability"
	"github.com/novaboard/lineplan/planner/scheduling"
)

const callTimeout = 60 * time.Second

// OrderContext is one order as presented to the model.
type OrderContext struct {
	SalesOrderID string `json:"sales_order_id"`
	InternalID   string `json:"sales_order_internal_id"`
	ProductCode  string `json:"product_internal_id"`
	Quantity     int    `json:"qty"`
	Priority     int    `json:"priority"`
	Deadline     string `json:"deadline"`
	Customer     string `json:"customer"`
	PlannedStart string `json:"planned_start,omitempty"`
	PlannedEnd   string `json:"planned_end,omitempty"`
	InProduction bool   `json:"is_existing,omitempty"`
}

// Request carries everything the model sees for one revision.
type Request struct {
	Now      time.Time
	Feedback string
	Current  []OrderContext // already in production, not reorderable
	Pending  []OrderContext
}

// PriorityUpdate is one priority change the advisor recommends.
type PriorityUpdate struct {
	SalesOrderID string `json:"sales_order_id"`
	NewPriority  int    `json:"new_priority"`
	Reason       string `json:"reason"`
}

// Output is the validated advisory result. ReorderedIDs holds internal
// order ids (e.g. "SO-005") drawn only from the pending set.
type Output struct {
	ReorderedIDs    []string         `json:"reordered_so_ids"`
	PriorityUpdates []PriorityUpdate `json:"priority_updates"`
	Comment         string           `json:"ai_comment"`
	Conflicts       []string         `json:"conflicts"`
}

// Advisor calls Gemini for schedule revisions.
type Advisor struct {
	client *genai.Client
	model  string
}

// New builds an Advisor. Returns nil (not an error) when apiKey is empty:
// the orchestrator treats a nil advisor as "always fall back to EDF".
func New(ctx context.Context, apiKey, model string) (*Advisor, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Advisor{client: client, model: model}, nil
}

// OrderContextFromSO converts a pending sales order for the model.
func OrderContextFromSO(so scheduling.SalesOrder) OrderContext {
	return OrderContext{
		SalesOrderID: so.ID,
		InternalID:   so.InternalID,
		ProductCode:  so.ProductCode,
		Quantity:     so.Quantity,
		Priority:     so.Priority,
		Deadline:     so.Deadline.UTC().Format("2006-01-02T15:04:05Z"),
		Customer:     so.Customer.Name,
	}
}

// OrderContextFromEntry converts an in-production schedule entry.
func OrderContextFromEntry(e scheduling.ScheduleEntry) OrderContext {
	oc := OrderContextFromSO(e.Order)
	oc.PlannedStart = e.Start.UTC().Format("2006-01-02T15:04:05Z")
	oc.PlannedEnd = e.End.UTC().Format("2006-01-02T15:04:05Z")
	oc.InProduction = true
	return oc
}

// Propose asks the model for a revision. The call is bounded at 60
// seconds; timeouts and transport failures return an error so the caller
// can fall back to pure EDF and tell the operator.
func (a *Advisor) Propose(ctx context.Context, req Request) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	temp := float32(0.1)
	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		genai.Text(buildUserPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       &temp,
		})
	if err != nil {
		if ctx.Err() != nil {
			observability.AdvisorCalls.WithLabelValues("timeout").Inc()
		} else {
			observability.AdvisorCalls.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	raw := resp.Text()
	log.Printf("[ADVISOR] model=%s response=%d chars", a.model, len(raw))

	pending := make(map[string]bool, len(req.Pending))
	pendingUUIDs := make(map[string]bool, len(req.Pending))
	for _, oc := range req.Pending {
		pending[oc.InternalID] = true
		pendingUUIDs[oc.SalesOrderID] = true
	}
	out := parseResponse(raw, pending, pendingUUIDs)
	observability.AdvisorCalls.WithLabelValues("ok").Inc()
	return out, nil
}
