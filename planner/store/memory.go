package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

// MemoryStore holds the planner state in process memory. Single-node dev
// mode only: nothing survives a restart. It implements the Store interface.
type MemoryStore struct {
	mu        sync.RWMutex
	tracking  map[string]*Tracking
	schedules map[int64]*scheduling.Schedule
	replay    map[string]replayRecord
	nextID    int64
}

type replayRecord struct {
	value   string
	expires time.Time
}

// NewMemoryStore initializes a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tracking:  make(map[string]*Tracking),
		schedules: make(map[int64]*scheduling.Schedule),
		replay:    make(map[string]replayRecord),
	}
}

// --- Tracking Operations ---

func (s *MemoryStore) SaveTracking(ctx context.Context, t *Tracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tracking[t.SalesOrderID] = &cp
	return nil
}

func (s *MemoryStore) GetTracking(ctx context.Context, salesOrderID string) (*Tracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracking[salesOrderID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) DeleteTracking(ctx context.Context, salesOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracking, salesOrderID)
	return nil
}

func (s *MemoryStore) ListTracking(ctx context.Context) ([]*Tracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Tracking, 0, len(s.tracking))
	for _, t := range s.tracking {
		cp := *t
		result = append(result, &cp)
	}
	return result, nil
}

// --- Schedule Operations ---

func (s *MemoryStore) NextScheduleID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *MemoryStore) SaveSchedule(ctx context.Context, sched *scheduling.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sched
	cp.Entries = append([]scheduling.ScheduleEntry(nil), sched.Entries...)
	s.schedules[sched.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSchedule(ctx context.Context, id int64) (*scheduling.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copySchedule(id), nil
}

func (s *MemoryStore) LatestByStatus(ctx context.Context, status scheduling.ScheduleStatus) (*scheduling.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best int64 = -1
	for id, sched := range s.schedules {
		if sched.Status == status && id > best {
			best = id
		}
	}
	if best < 0 {
		return nil, nil
	}
	return s.copySchedule(best), nil
}

func (s *MemoryStore) UpdateScheduleStatus(ctx context.Context, id int64, status scheduling.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, ok := s.schedules[id]
	if !ok {
		return errors.New("schedule not found")
	}
	sched.Status = status
	return nil
}

func (s *MemoryStore) ApproveSchedule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.schedules[id]
	if !ok {
		return errors.New("schedule not found")
	}
	for other, sched := range s.schedules {
		if other != id && sched.Status == scheduling.ScheduleApproved {
			sched.Status = scheduling.ScheduleSuperseded
		}
	}
	target.Status = scheduling.ScheduleApproved
	return nil
}

// copySchedule must be called with at least the read lock held.
func (s *MemoryStore) copySchedule(id int64) *scheduling.Schedule {
	sched, ok := s.schedules[id]
	if !ok {
		return nil
	}
	cp := *sched
	cp.Entries = append([]scheduling.ScheduleEntry(nil), sched.Entries...)
	return &cp
}

// --- Replay Cache Operations ---

func (s *MemoryStore) GetReplay(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.replay[key]
	if !ok || time.Now().After(rec.expires) {
		return "", false, nil
	}
	return rec.value, true, nil
}

func (s *MemoryStore) SetReplayNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.replay[key]; ok && time.Now().Before(rec.expires) {
		return false, nil
	}
	s.replay[key] = replayRecord{value: value, expires: time.Now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Close() {}
