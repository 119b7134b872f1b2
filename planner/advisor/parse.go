package advisor

import (
	"encoding/json"
	"log"
)

// parseResponse validates the model output against the pending set.
// Unknown ids are dropped, priorities outside 1..4 are discarded, and
// malformed JSON degrades to an empty output rather than an error: the
// caller's EDF fallback must always be reachable.
func parseResponse(raw string, pendingInternal, pendingUUIDs map[string]bool) *Output {
	var data struct {
		ReorderedSOIDs  []string `json:"reordered_so_ids"`
		PriorityUpdates []struct {
			SalesOrderID string `json:"sales_order_id"`
			NewPriority  int    `json:"new_priority"`
			Reason       string `json:"reason"`
		} `json:"priority_updates"`
		AIComment string   `json:"ai_comment"`
		Conflicts []string `json:"conflicts"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		log.Printf("[ADVISOR] invalid JSON from model: %v", err)
		return &Output{Comment: "AI response was not valid JSON. Using default EDF order."}
	}

	out := &Output{Comment: data.AIComment, Conflicts: data.Conflicts}
	seen := make(map[string]bool, len(data.ReorderedSOIDs))
	for _, id := range data.ReorderedSOIDs {
		if pendingInternal[id] && !seen[id] {
			seen[id] = true
			out.ReorderedIDs = append(out.ReorderedIDs, id)
		}
	}
	for _, u := range data.PriorityUpdates {
		if !pendingUUIDs[u.SalesOrderID] {
			continue
		}
		if u.NewPriority < 1 || u.NewPriority > 4 {
			continue
		}
		out.PriorityUpdates = append(out.PriorityUpdates, PriorityUpdate{
			SalesOrderID: u.SalesOrderID,
			NewPriority:  u.NewPriority,
			Reason:       u.Reason,
		})
	}
	return out
}
