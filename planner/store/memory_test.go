package store

import (
	"context"
	"testing"
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

func TestTrackingRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if got, err := s.GetTracking(ctx, "uuid-so-005"); err != nil || got != nil {
		t.Fatalf("empty store GetTracking = %v, %v; want nil, nil", got, err)
	}

	tr := &Tracking{
		SalesOrderID:   "uuid-so-005",
		SalesOrderCode: "SO-005",
		POID:           "po-uuid-17",
		POCode:         "PO-017",
		Status:         scheduling.POReady,
		Start:          time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		End:            time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC),
	}
	if err := s.SaveTracking(ctx, tr); err != nil {
		t.Fatalf("SaveTracking: %v", err)
	}

	got, err := s.GetTracking(ctx, "uuid-so-005")
	if err != nil || got == nil {
		t.Fatalf("GetTracking = %v, %v", got, err)
	}
	if got.POCode != "PO-017" || got.Status != scheduling.POReady {
		t.Errorf("tracking came back wrong: %+v", got)
	}

	// Returned copies must not alias the stored record.
	got.Status = scheduling.POCancelled
	again, _ := s.GetTracking(ctx, "uuid-so-005")
	if again.Status != scheduling.POReady {
		t.Error("mutating a returned tracking leaked into the store")
	}

	if err := s.DeleteTracking(ctx, "uuid-so-005"); err != nil {
		t.Fatalf("DeleteTracking: %v", err)
	}
	if got, _ := s.GetTracking(ctx, "uuid-so-005"); got != nil {
		t.Error("tracking survived delete")
	}
}

func TestScheduleIDsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	prev := int64(0)
	for i := 0; i < 5; i++ {
		id, err := s.NextScheduleID(ctx)
		if err != nil {
			t.Fatalf("NextScheduleID: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		prev = id
	}
}

func TestScheduleLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	save := func(id int64, status scheduling.ScheduleStatus) {
		t.Helper()
		err := s.SaveSchedule(ctx, &scheduling.Schedule{
			ID:          id,
			GeneratedAt: time.Now(),
			Policy:      scheduling.PolicyEDF,
			Status:      status,
		})
		if err != nil {
			t.Fatalf("SaveSchedule(%d): %v", id, err)
		}
	}

	save(1, scheduling.ScheduleApproved)
	save(2, scheduling.ScheduleProposed)

	latest, err := s.LatestByStatus(ctx, scheduling.ScheduleProposed)
	if err != nil || latest == nil || latest.ID != 2 {
		t.Fatalf("LatestByStatus(proposed) = %v, %v; want id 2", latest, err)
	}

	// Approving 2 supersedes 1 in the same step.
	if err := s.ApproveSchedule(ctx, 2); err != nil {
		t.Fatalf("ApproveSchedule: %v", err)
	}
	approved, _ := s.LatestByStatus(ctx, scheduling.ScheduleApproved)
	if approved == nil || approved.ID != 2 {
		t.Fatalf("approved schedule = %v, want id 2", approved)
	}
	old, _ := s.GetSchedule(ctx, 1)
	if old.Status != scheduling.ScheduleSuperseded {
		t.Errorf("schedule 1 status = %s, want superseded", old.Status)
	}
	if p, _ := s.LatestByStatus(ctx, scheduling.ScheduleProposed); p != nil {
		t.Errorf("proposed slot still occupied by %d", p.ID)
	}

	if err := s.UpdateScheduleStatus(ctx, 99, scheduling.ScheduleRejected); err == nil {
		t.Error("UpdateScheduleStatus on a missing schedule should fail")
	}
}

func TestReplayCache(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	won, err := s.SetReplayNX(ctx, "evt-1", `{"status":"accepted"}`, time.Minute)
	if err != nil || !won {
		t.Fatalf("first SetReplayNX = %v, %v; want true", won, err)
	}
	won, err = s.SetReplayNX(ctx, "evt-1", "other", time.Minute)
	if err != nil || won {
		t.Fatalf("second SetReplayNX = %v, %v; want false", won, err)
	}

	val, ok, err := s.GetReplay(ctx, "evt-1")
	if err != nil || !ok || val != `{"status":"accepted"}` {
		t.Errorf("GetReplay = %q, %v, %v", val, ok, err)
	}

	// Expired records behave as absent.
	if _, err := s.SetReplayNX(ctx, "evt-2", "x", -time.Second); err != nil {
		t.Fatalf("SetReplayNX: %v", err)
	}
	if _, ok, _ := s.GetReplay(ctx, "evt-2"); ok {
		t.Error("expired replay record still visible")
	}
	if won, _ := s.SetReplayNX(ctx, "evt-2", "y", time.Minute); !won {
		t.Error("SetReplayNX should win over an expired record")
	}
}
