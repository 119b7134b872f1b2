package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/novaboard/lineplan/planner/operator"
	"github.com/novaboard/lineplan/planner/scheduling"
)

// runOperatorLoop long-polls the operator channel and feeds decisions
// into the orchestrator until ctx is cancelled.
func runOperatorLoop(ctx context.Context, ch operator.Channel, orch *Orchestrator) {
	log.Println("Operator loop started")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		actions, err := ch.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[OPERATOR] poll failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		for _, act := range actions {
			dispatchAction(ctx, ch, orch, act)
		}
	}
}

func dispatchAction(ctx context.Context, ch operator.Channel, orch *Orchestrator, act operator.Action) {
	reply := func(format string, args ...any) {
		if err := ch.Send(ctx, operator.Message{Text: fmt.Sprintf(format, args...)}); err != nil {
			log.Printf("[OPERATOR] reply failed: %v", err)
		}
	}

	switch act.Kind {
	case operator.ActionApprove:
		s, err := orch.Approve(ctx, act.ScheduleID)
		if err != nil {
			reply("Approve failed: %v", err)
			return
		}
		reply("Schedule #%d approved. %d orders confirmed on the line.", s.ID, len(s.Entries))

	case operator.ActionReject:
		if err := orch.Reject(ctx, act.ScheduleID, "rejected by operator"); err != nil {
			reply("Reject failed: %v", err)
			return
		}
		reply("Schedule #%d rejected and its production orders removed.", act.ScheduleID)

	case operator.ActionRevise:
		// The revise button carries no feedback; ask for a text reply.
		// A plain message arrives as ActionRevise with the text set.
		if act.Text == "" {
			reply("Reply with your revision feedback as a plain message.")
			return
		}
		s, err := orch.Revise(ctx, act.Text)
		if err != nil {
			reply("Revision failed: %v", err)
			return
		}
		log.Printf("[OPERATOR] revision produced schedule #%d", s.ID)

	case operator.ActionCancelOrder:
		s, err := orch.CancelOrder(ctx, act.SalesOrder, act.PO)
		if err != nil {
			reply("Cancel failed: %v", err)
			return
		}
		log.Printf("[OPERATOR] order cancelled, new proposal #%d", s.ID)

	case operator.ActionRestartOrder:
		s, err := orch.RestartOrder(ctx, act.SalesOrder, act.PO)
		if err != nil {
			reply("Restart failed: %v", err)
			return
		}
		log.Printf("[OPERATOR] order restarted, new proposal #%d", s.ID)

	case operator.ActionNewSchedule:
		policy := scheduling.PolicyEDF
		if act.Text != "" {
			var err error
			if policy, err = scheduling.ParsePolicy(act.Text); err != nil {
				reply("%v", err)
				return
			}
		}
		s, err := orch.ComputeProposal(ctx, policy, nil, "")
		if err != nil {
			reply("Planning failed: %v", err)
			return
		}
		log.Printf("[OPERATOR] new %s proposal #%d", policy, s.ID)
	}
}
