package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// metricsTable is the table PostgresSink writes to.
const metricsTable = "frame_metrics"

const createTableSQL = `CREATE TABLE IF NOT EXISTS frame_metrics (
	run_id                UUID             NOT NULL,
	frame                 INTEGER          NOT NULL,
	name                  TEXT             NOT NULL,
	detector              TEXT             NOT NULL,
	descriptor            TEXT             NOT NULL,
	matcher               TEXT             NOT NULL,
	selector              TEXT             NOT NULL,
	started_at            TIMESTAMPTZ      NOT NULL,
	detection_ms          DOUBLE PRECISION NOT NULL,
	description_ms        DOUBLE PRECISION NOT NULL,
	match_ms              DOUBLE PRECISION NOT NULL,
	detected              INTEGER          NOT NULL,
	keypoints             INTEGER          NOT NULL,
	matches_before_filter INTEGER          NOT NULL,
	match_count           INTEGER          NOT NULL,
	cap_mode              TEXT             NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, frame)
)`

var metricsColumns = []string{
	"run_id", "frame", "name",
	"detector", "descriptor", "matcher", "selector", "started_at",
	"detection_ms", "description_ms", "match_ms",
	"detected", "keypoints", "matches_before_filter", "match_count", "cap_mode",
}

// DB is the subset of a pgx connection or pool the sink uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresSink bulk-loads records into the frame_metrics table.
type PostgresSink struct {
	db   DB
	pool *pgxpool.Pool
}

// NewPostgresSink connects to the database at connString and verifies the
// connection.
func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresSink{db: pool, pool: pool}, nil
}

// NewPostgresSinkFromDB wraps an existing connection. The caller keeps
// ownership of db.
func NewPostgresSinkFromDB(db DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// Close releases the pool opened by NewPostgresSink.
func (s *PostgresSink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresSink) Export(ctx context.Context, run Run, records []Record) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create %s table: %w", metricsTable, err)
	}
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			run.ID, r.Frame, r.Name,
			run.Detector, run.Descriptor, run.Matcher, run.Selector, run.Started,
			milliseconds(r.DetectionTime), milliseconds(r.DescriptionTime), milliseconds(r.MatchTime),
			r.Detected, r.Keypoints, r.MatchesBeforeFilter, r.MatchCount, r.CapMode,
		}
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{metricsTable}, metricsColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy metrics: %w", err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d metric rows", n, len(rows))
	}
	return nil
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
