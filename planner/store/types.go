package store

import (
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

// Tracking links one sales order to the production order currently
// fulfilling it. At most one live row exists per sales order.
type Tracking struct {
	SalesOrderID   string              `json:"sales_order_id"`
	SalesOrderCode string              `json:"sales_order_code"` // e.g. "SO-005"
	POID           string              `json:"po_id"`
	POCode         string              `json:"po_code"` // e.g. "PO-017"
	Status         scheduling.POStatus `json:"status"`
	Start          time.Time           `json:"start"`
	End            time.Time           `json:"end"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
