package operator

import "testing"

func TestParseActionRoundTrips(t *testing.T) {
	cases := []struct {
		data string
		want Action
	}{
		{ApproveData(42), Action{Kind: ActionApprove, ScheduleID: 42}},
		{RejectData(7), Action{Kind: ActionReject, ScheduleID: 7}},
		{ReviseData(9), Action{Kind: ActionRevise, ScheduleID: 9}},
		{CancelOrderData("uuid-so-003", "uuid-po-003"), Action{Kind: ActionCancelOrder, SalesOrder: "uuid-so-003", PO: "uuid-po-003"}},
		{RestartOrderData("uuid-so-005", "uuid-po-005"), Action{Kind: ActionRestartOrder, SalesOrder: "uuid-so-005", PO: "uuid-po-005"}},
		{NewScheduleData("EDF"), Action{Kind: ActionNewSchedule, Text: "EDF"}},
	}
	for _, tc := range cases {
		got, err := ParseAction(tc.data)
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", tc.data, err)
		}
		if got != tc.want {
			t.Errorf("ParseAction(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestParseActionRejectsMalformed(t *testing.T) {
	for _, data := range []string{
		"",
		"approve",
		"approve:not-a-number",
		"cancel_order:only-one-arg",
		"cancel_order::",
		"launch_missiles:now",
	} {
		if _, err := ParseAction(data); err == nil {
			t.Errorf("ParseAction(%q) should fail", data)
		}
	}
}
