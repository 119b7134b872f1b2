// Package operator is the boundary to the human approving schedules.
// The engine pushes text+image messages with labelled action buttons and
// receives back a small closed set of actions; everything else about the
// channel (framing, chat ids, markup) stays behind the Channel interface.
package operator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ActionKind enumerates everything an operator can ask for.
type ActionKind string

const (
	ActionApprove      ActionKind = "approve"
	ActionReject       ActionKind = "reject"
	ActionRevise       ActionKind = "revise"
	ActionCancelOrder  ActionKind = "cancel_order"
	ActionRestartOrder ActionKind = "restart_order"
	ActionNewSchedule  ActionKind = "new_schedule"
)

// Action is one parsed operator decision.
type Action struct {
	Kind       ActionKind
	ScheduleID int64  // approve / reject
	Text       string // revise feedback, or the policy for new_schedule
	SalesOrder string // cancel_order / restart_order
	PO         string // cancel_order / restart_order
}

// Button is one labelled action the operator can tap.
type Button struct {
	Label string
	Data  string // callback payload, round-trips through ParseAction
}

// Message is one push to the operator.
type Message struct {
	Text      string
	Image     []byte // optional PNG/JPEG/SVG payload
	ImageName string
	Buttons   [][]Button // rows of buttons
}

// Channel is the transport the orchestrator talks through.
type Channel interface {
	// Send pushes a message to the operator.
	Send(ctx context.Context, msg Message) error
	// Poll blocks for up to the transport's long-poll window and
	// returns any actions the operator took. An empty slice is normal.
	Poll(ctx context.Context) ([]Action, error)
}

// Callback payload helpers. The format is "kind:arg1:arg2"; ids never
// contain colons (UUIDs and numeric schedule ids).

func ApproveData(scheduleID int64) string {
	return fmt.Sprintf("approve:%d", scheduleID)
}

func RejectData(scheduleID int64) string {
	return fmt.Sprintf("reject:%d", scheduleID)
}

func ReviseData(scheduleID int64) string {
	return fmt.Sprintf("revise:%d", scheduleID)
}

func CancelOrderData(soID, poID string) string {
	return "cancel_order:" + soID + ":" + poID
}

func RestartOrderData(soID, poID string) string {
	return "restart_order:" + soID + ":" + poID
}

func NewScheduleData(policy string) string {
	return "new_schedule:" + policy
}

// ParseAction decodes a callback payload. Unknown or malformed payloads
// are rejected so bad button data never reaches the orchestrator.
func ParseAction(data string) (Action, error) {
	parts := strings.Split(data, ":")
	switch ActionKind(parts[0]) {
	case ActionApprove, ActionReject, ActionRevise:
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("malformed %s payload %q", parts[0], data)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("bad schedule id in %q: %w", data, err)
		}
		return Action{Kind: ActionKind(parts[0]), ScheduleID: id}, nil
	case ActionCancelOrder, ActionRestartOrder:
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return Action{}, fmt.Errorf("malformed %s payload %q", parts[0], data)
		}
		return Action{Kind: ActionKind(parts[0]), SalesOrder: parts[1], PO: parts[2]}, nil
	case ActionNewSchedule:
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("malformed new_schedule payload %q", data)
		}
		return Action{Kind: ActionNewSchedule, Text: parts[1]}, nil
	}
	return Action{}, fmt.Errorf("unknown action %q", data)
}
