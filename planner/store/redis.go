package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novaboard/lineplan/planner/observability"
	"github.com/novaboard/lineplan/planner/scheduling"
)

// RedisStore implements the Store interface using Redis. Records are JSON
// values; the schedule id counter is a plain INCR key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr string, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() {
	s.client.Close()
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	start := time.Now()
	defer func() {
		observability.StoreLatency.Observe(time.Since(start).Seconds())
	}()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) (bool, error) {
	start := time.Now()
	defer func() {
		observability.StoreLatency.Observe(time.Since(start).Seconds())
	}()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// --- Tracking Operations ---

func (s *RedisStore) SaveTracking(ctx context.Context, t *Tracking) error {
	return s.setJSON(ctx, Key(ResourceTracking, t.SalesOrderID), t)
}

func (s *RedisStore) GetTracking(ctx context.Context, salesOrderID string) (*Tracking, error) {
	var t Tracking
	ok, err := s.getJSON(ctx, Key(ResourceTracking, salesOrderID), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

func (s *RedisStore) DeleteTracking(ctx context.Context, salesOrderID string) error {
	return s.client.Del(ctx, Key(ResourceTracking, salesOrderID)).Err()
}

func (s *RedisStore) ListTracking(ctx context.Context) ([]*Tracking, error) {
	var result []*Tracking
	iter := s.client.Scan(ctx, 0, Prefix(ResourceTracking)+"*", 100).Iterator()
	for iter.Next(ctx) {
		var t Tracking
		ok, err := s.getJSON(ctx, iter.Val(), &t)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, &t)
		}
	}
	return result, iter.Err()
}

// --- Schedule Operations ---

func (s *RedisStore) NextScheduleID(ctx context.Context) (int64, error) {
	return s.client.Incr(ctx, scheduleSeqKey).Result()
}

func (s *RedisStore) SaveSchedule(ctx context.Context, sched *scheduling.Schedule) error {
	id := strconv.FormatInt(sched.ID, 10)
	if err := s.setJSON(ctx, Key(ResourceSchedule, id), sched); err != nil {
		return err
	}
	return s.client.Set(ctx, latestKey(string(sched.Status)), id, 0).Err()
}

func (s *RedisStore) GetSchedule(ctx context.Context, id int64) (*scheduling.Schedule, error) {
	var sched scheduling.Schedule
	ok, err := s.getJSON(ctx, Key(ResourceSchedule, strconv.FormatInt(id, 10)), &sched)
	if err != nil || !ok {
		return nil, err
	}
	return &sched, nil
}

func (s *RedisStore) LatestByStatus(ctx context.Context, status scheduling.ScheduleStatus) (*scheduling.Schedule, error) {
	idStr, err := s.client.Get(ctx, latestKey(string(status))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, err
	}
	sched, err := s.GetSchedule(ctx, id)
	if err != nil || sched == nil {
		return nil, err
	}
	// The pointer may be stale if the schedule moved on since it was set.
	if sched.Status != status {
		return nil, nil
	}
	return sched, nil
}

func (s *RedisStore) UpdateScheduleStatus(ctx context.Context, id int64, status scheduling.ScheduleStatus) error {
	sched, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if sched == nil {
		return errors.New("schedule not found")
	}
	prev := sched.Status
	sched.Status = status
	if err := s.SaveSchedule(ctx, sched); err != nil {
		return err
	}
	// Clear the old status pointer if it still names this schedule.
	idStr := strconv.FormatInt(id, 10)
	if cur, err := s.client.Get(ctx, latestKey(string(prev))).Result(); err == nil && cur == idStr {
		s.client.Del(ctx, latestKey(string(prev)))
	}
	return nil
}

func (s *RedisStore) ApproveSchedule(ctx context.Context, id int64) error {
	prev, err := s.LatestByStatus(ctx, scheduling.ScheduleApproved)
	if err != nil {
		return err
	}
	if prev != nil && prev.ID != id {
		if err := s.UpdateScheduleStatus(ctx, prev.ID, scheduling.ScheduleSuperseded); err != nil {
			return err
		}
	}
	return s.UpdateScheduleStatus(ctx, id, scheduling.ScheduleApproved)
}

// --- Replay Cache Operations ---

func (s *RedisStore) GetReplay(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, Key(ResourceReplay, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) SetReplayNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, Key(ResourceReplay, key), value, ttl).Result()
}
