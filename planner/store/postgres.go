package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaboard/lineplan/planner/scheduling"
)

// PostgresStore implements Store using a PostgreSQL backend. Schedule
// entries are kept as a JSONB payload; tracking rows are relational.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS so_tracking (
	sales_order_id   TEXT PRIMARY KEY,
	sales_order_code TEXT NOT NULL,
	po_id            TEXT NOT NULL,
	po_code          TEXT NOT NULL,
	status           TEXT NOT NULL,
	starts_at        TIMESTAMPTZ NOT NULL,
	ends_at          TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS schedules (
	id           BIGINT PRIMARY KEY,
	generated_at TIMESTAMPTZ NOT NULL,
	policy       TEXT NOT NULL,
	status       TEXT NOT NULL,
	comment      TEXT NOT NULL DEFAULT '',
	payload      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS schedules_status_idx ON schedules (status, id DESC);
CREATE SEQUENCE IF NOT EXISTS schedule_ids;
CREATE TABLE IF NOT EXISTS replay_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore initializes a PostgresStore with a connection pool and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- Tracking Operations ---

func (s *PostgresStore) SaveTracking(ctx context.Context, t *Tracking) error {
	query := `
		INSERT INTO so_tracking (sales_order_id, sales_order_code, po_id, po_code, status, starts_at, ends_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (sales_order_id) DO UPDATE SET
			po_id = EXCLUDED.po_id,
			po_code = EXCLUDED.po_code,
			status = EXCLUDED.status,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at,
			updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, query,
		t.SalesOrderID, t.SalesOrderCode, t.POID, t.POCode, t.Status, t.Start, t.End,
	)
	return err
}

func (s *PostgresStore) GetTracking(ctx context.Context, salesOrderID string) (*Tracking, error) {
	query := `
		SELECT sales_order_id, sales_order_code, po_id, po_code, status, starts_at, ends_at, updated_at
		FROM so_tracking WHERE sales_order_id = $1
	`
	var t Tracking
	err := s.pool.QueryRow(ctx, query, salesOrderID).Scan(
		&t.SalesOrderID, &t.SalesOrderCode, &t.POID, &t.POCode, &t.Status, &t.Start, &t.End, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) DeleteTracking(ctx context.Context, salesOrderID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM so_tracking WHERE sales_order_id = $1`, salesOrderID)
	return err
}

func (s *PostgresStore) ListTracking(ctx context.Context) ([]*Tracking, error) {
	query := `
		SELECT sales_order_id, sales_order_code, po_id, po_code, status, starts_at, ends_at, updated_at
		FROM so_tracking ORDER BY starts_at
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Tracking
	for rows.Next() {
		var t Tracking
		if err := rows.Scan(
			&t.SalesOrderID, &t.SalesOrderCode, &t.POID, &t.POCode, &t.Status, &t.Start, &t.End, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

// --- Schedule Operations ---

func (s *PostgresStore) NextScheduleID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('schedule_ids')`).Scan(&id)
	return id, err
}

func (s *PostgresStore) SaveSchedule(ctx context.Context, sched *scheduling.Schedule) error {
	payload, err := json.Marshal(sched)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO schedules (id, generated_at, policy, status, comment, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, payload = EXCLUDED.payload
	`
	_, err = s.pool.Exec(ctx, query,
		sched.ID, sched.GeneratedAt, sched.Policy, sched.Status, sched.Comment, payload,
	)
	return err
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id int64) (*scheduling.Schedule, error) {
	return s.scanSchedule(s.pool.QueryRow(ctx,
		`SELECT payload, status FROM schedules WHERE id = $1`, id))
}

func (s *PostgresStore) LatestByStatus(ctx context.Context, status scheduling.ScheduleStatus) (*scheduling.Schedule, error) {
	return s.scanSchedule(s.pool.QueryRow(ctx,
		`SELECT payload, status FROM schedules WHERE status = $1 ORDER BY id DESC LIMIT 1`, status))
}

func (s *PostgresStore) scanSchedule(row pgx.Row) (*scheduling.Schedule, error) {
	var payload []byte
	var status string
	err := row.Scan(&payload, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sched scheduling.Schedule
	if err := json.Unmarshal(payload, &sched); err != nil {
		return nil, err
	}
	// The status column is authoritative; the payload may predate the
	// latest transition.
	sched.Status = scheduling.ScheduleStatus(status)
	return &sched, nil
}

func (s *PostgresStore) UpdateScheduleStatus(ctx context.Context, id int64, status scheduling.ScheduleStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET status = $2, payload = jsonb_set(payload, '{status}', to_jsonb($2::text)) WHERE id = $1`,
		id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("schedule not found")
	}
	return nil
}

func (s *PostgresStore) ApproveSchedule(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE schedules SET status = 'superseded', payload = jsonb_set(payload, '{status}', '"superseded"') WHERE status = 'approved' AND id <> $1`,
		id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE schedules SET status = 'approved', payload = jsonb_set(payload, '{status}', '"approved"') WHERE id = $1`,
		id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("schedule not found")
	}
	return tx.Commit(ctx)
}

// --- Replay Cache Operations ---

func (s *PostgresStore) GetReplay(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM replay_cache WHERE key = $1 AND expires_at > NOW()`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *PostgresStore) SetReplayNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO replay_cache (key, value, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE replay_cache.expires_at <= NOW()
	`, key, value, ttl.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
