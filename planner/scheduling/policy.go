package scheduling

import (
	"sort"
	"time"
)

// customerRanks is the VIP tier table for the CUSTOMER policy.
// Lower rank is served first; unknown customers go last.
var customerRanks = map[string]int{
	"MedTec Devices":  0,
	"AgriBot Systems": 1,
	"SmartHome IoT":   2,
	"IndustrialCore":  3,
	"TechFlex":        4,
}

const unknownCustomerRank = 99

// CustomerRank looks up a customer's VIP tier.
func CustomerRank(name string) int {
	if r, ok := customerRanks[name]; ok {
		return r
	}
	return unknownCustomerRank
}

// SortOrders returns a new slice with orders arranged per the policy.
// The sort is stable and the input is never mutated. Products supplies the
// BOM lookup (keyed by product code) needed by the duration-based policies;
// orders with no known product sort as zero-minute jobs there.
func SortOrders(orders []SalesOrder, policy Policy, now time.Time, clock WorkClock, products map[string]Product) []SalesOrder {
	out := make([]SalesOrder, len(orders))
	copy(out, orders)

	minutes := func(o SalesOrder) int {
		p, ok := products[o.ProductCode]
		if !ok {
			return 0
		}
		return ProductionMinutes(p, o.Quantity)
	}

	less := func(a, b SalesOrder) bool {
		switch policy {
		case PolicyPriority:
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
			return a.InternalID < b.InternalID
		case PolicySJF:
			am, bm := minutes(a), minutes(b)
			if am != bm {
				return am < bm
			}
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
			return a.InternalID < b.InternalID
		case PolicyLJF:
			am, bm := minutes(a), minutes(b)
			if am != bm {
				return am > bm
			}
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
			return a.InternalID < b.InternalID
		case PolicySlack:
			as := clock.WorkingMinutesBetween(now, a.Deadline) - minutes(a)
			bs := clock.WorkingMinutesBetween(now, b.Deadline) - minutes(b)
			if as != bs {
				return as < bs
			}
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
			return a.InternalID < b.InternalID
		case PolicyCustomer:
			ar, br := CustomerRank(a.Customer.Name), CustomerRank(b.Customer.Name)
			if ar != br {
				return ar < br
			}
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
			return a.Priority < b.Priority
		default: // EDF
			if !a.Deadline.Equal(b.Deadline) {
				return a.Deadline.Before(b.Deadline)
			}
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			return a.InternalID < b.InternalID
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ReorderByHint arranges orders to follow the given id sequence; ids not in
// the hint keep their EDF position after the hinted prefix. Unknown hint ids
// are ignored. Used to apply an advisor permutation without letting it drop
// or invent orders.
func ReorderByHint(orders []SalesOrder, hint []string, now time.Time, clock WorkClock, products map[string]Product) []SalesOrder {
	byID := make(map[string]SalesOrder, len(orders))
	for _, o := range orders {
		byID[o.InternalID] = o
	}

	out := make([]SalesOrder, 0, len(orders))
	taken := make(map[string]bool, len(hint))
	for _, id := range hint {
		o, ok := byID[id]
		if !ok || taken[id] {
			continue
		}
		taken[id] = true
		out = append(out, o)
	}
	rest := make([]SalesOrder, 0, len(orders)-len(out))
	for _, o := range orders {
		if !taken[o.InternalID] {
			rest = append(rest, o)
		}
	}
	out = append(out, SortOrders(rest, PolicyEDF, now, clock, products)...)
	return out
}
