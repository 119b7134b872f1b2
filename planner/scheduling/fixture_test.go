package scheduling

import "time"

// Reference factory data used across the kernel tests: five products and
// the SO-001..SO-012 order book, planning day 2026-02-28.

func refDate(month, day, hour int) time.Time {
	return time.Date(2026, time.Month(month), day, hour, 0, 0, 0, time.UTC)
}

func refProducts() map[string]Product {
	bom := func(pairs ...any) []BOMPhase {
		out := make([]BOMPhase, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			out = append(out, BOMPhase{Type: pairs[i].(PhaseType), MinutesPerUnit: pairs[i+1].(int)})
		}
		return out
	}
	return map[string]Product{
		"PCB-IND-100": {ID: "pid-pcb-ind-100", Code: "PCB-IND-100", Name: "PCB-IND-100", BOM: bom(
			PhaseSMT, 30, PhaseReflow, 15, PhaseTHT, 45, PhaseAOI, 12, PhaseTest, 30, PhaseCoating, 9, PhasePack, 6)},
		"MED-300": {ID: "pid-med-300", Code: "MED-300", Name: "MED-300", BOM: bom(
			PhaseSMT, 45, PhaseReflow, 30, PhaseTHT, 60, PhaseAOI, 30, PhaseTest, 90, PhaseCoating, 15, PhasePack, 9)},
		"IOT-200": {ID: "pid-iot-200", Code: "IOT-200", Name: "IOT-200", BOM: bom(
			PhaseSMT, 18, PhaseReflow, 12, PhaseTHT, 0, PhaseAOI, 9, PhaseTest, 18, PhaseCoating, 0, PhasePack, 6)},
		"AGR-400": {ID: "pid-agr-400", Code: "AGR-400", Name: "AGR-400", BOM: bom(
			PhaseSMT, 30, PhaseReflow, 15, PhaseTHT, 30, PhaseAOI, 12, PhaseTest, 45, PhaseCoating, 12, PhasePack, 0)},
		"PCB-PWR-500": {ID: "pid-pcb-pwr-500", Code: "PCB-PWR-500", Name: "PCB-PWR-500", BOM: bom(
			PhaseSMT, 24, PhaseReflow, 12, PhaseTHT, 0, PhaseAOI, 9, PhaseTest, 24, PhaseCoating, 0, PhasePack, 6)},
	}
}

func refOrder(id, customer, product string, qty int, deadline time.Time, priority int) SalesOrder {
	return SalesOrder{
		ID:          "uuid-" + id,
		InternalID:  id,
		Customer:    Customer{ID: "cust-" + customer, Name: customer},
		ProductID:   "pid-" + product,
		ProductCode: product,
		Quantity:    qty,
		Deadline:    deadline,
		Priority:    priority,
		Status:      OrderAccepted,
	}
}

func refOrders() []SalesOrder {
	return []SalesOrder{
		refOrder("SO-001", "IndustrialCore", "PCB-IND-100", 2, refDate(3, 2, 8), 1),
		refOrder("SO-002", "MedTec Devices", "MED-300", 1, refDate(3, 3, 8), 1),
		refOrder("SO-003", "AgriBot Systems", "AGR-400", 5, refDate(3, 4, 8), 2),
		refOrder("SO-004", "TechFlex", "PCB-IND-100", 4, refDate(3, 6, 8), 2),
		refOrder("SO-005", "SmartHome IoT", "IOT-200", 10, refDate(3, 8, 8), 1),
		refOrder("SO-006", "IndustrialCore", "PCB-PWR-500", 8, refDate(3, 9, 8), 2),
		refOrder("SO-007", "TechFlex", "IOT-200", 12, refDate(3, 11, 8), 3),
		refOrder("SO-008", "SmartHome IoT", "PCB-PWR-500", 6, refDate(3, 12, 8), 3),
		refOrder("SO-009", "MedTec Devices", "MED-300", 3, refDate(3, 4, 8), 1),
		refOrder("SO-010", "IndustrialCore", "PCB-IND-100", 8, refDate(3, 14, 8), 2),
		refOrder("SO-011", "AgriBot Systems", "AGR-400", 4, refDate(3, 13, 8), 3),
		refOrder("SO-012", "TechFlex", "PCB-PWR-500", 6, refDate(3, 15, 8), 4),
	}
}

func orderIDs(orders []SalesOrder) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.InternalID
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
