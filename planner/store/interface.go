package store

import (
	"context"
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

// Store is the persistence contract for the planner's durable state: the
// SO-to-PO tracking map, schedule snapshots, and the intake replay cache.
// It abstracts over Postgres (durable), Redis (fast) and memory (dev).
//
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	// Tracking operations.
	SaveTracking(ctx context.Context, t *Tracking) error
	GetTracking(ctx context.Context, salesOrderID string) (*Tracking, error)
	DeleteTracking(ctx context.Context, salesOrderID string) error
	ListTracking(ctx context.Context) ([]*Tracking, error)

	// Schedule snapshot operations. NextScheduleID is monotonic and
	// durable across restarts.
	NextScheduleID(ctx context.Context) (int64, error)
	SaveSchedule(ctx context.Context, s *scheduling.Schedule) error
	GetSchedule(ctx context.Context, id int64) (*scheduling.Schedule, error)
	LatestByStatus(ctx context.Context, status scheduling.ScheduleStatus) (*scheduling.Schedule, error)
	UpdateScheduleStatus(ctx context.Context, id int64, status scheduling.ScheduleStatus) error

	// ApproveSchedule marks id approved and atomically supersedes any
	// previously approved schedule.
	ApproveSchedule(ctx context.Context, id int64) error

	// Replay cache for the factory intake. SetReplayNX stores value under
	// key only if absent, reporting whether the write won.
	GetReplay(ctx context.Context, key string) (string, bool, error)
	SetReplayNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	Close()
}
