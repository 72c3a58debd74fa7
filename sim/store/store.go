// Package store persists annotated traces and their agent graphs in SQLite so
// plotting and analysis tools can query them without re-parsing CSV.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ds2os-caching/cachetrace/sim/freshness"
	"github.com/ds2os-caching/cachetrace/sim/topology"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is a SQLite database of annotated traces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	migrations, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const insertRequestSQL = `INSERT INTO requests (
    trace_id, seq, source_id, source_address, source_type, source_location,
    destination_address, destination_type, destination_location,
    object_address, object_type, operation, value, timestamp, normality,
    version, last_write, next_write
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveTrace stores an annotated trace under name, together with its edge set
// when edges is non-nil, and returns the trace id. Sentinels are stored as
// NULL. The write is a single transaction; a failure leaves no partial trace.
func (s *Store) SaveTrace(ctx context.Context, name string, t *trace.Trace, policy trace.HorizonPolicy, edges *topology.EdgeSet) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("trace name is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save trace: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	res, err := tx.ExecContext(ctx,
		"INSERT INTO traces (name, horizon_policy, created_at) VALUES (?, ?, ?)",
		name, string(policy.OrDefault()), time.Now().UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert trace %s: %w", name, err)
	}
	traceID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("trace id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertRequestSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare request insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	for i := range t.Records {
		r := &t.Records[i]
		if _, err := stmt.ExecContext(ctx,
			traceID, i, r.SourceID, r.SourceAddress, r.SourceType, r.SourceLocation,
			r.DestinationAddress, r.DestinationType, r.DestinationLocation,
			r.ObjectAddress, r.ObjectType, string(r.Operation), r.Value, r.Timestamp, r.Normality,
			r.Version, nullable(r.LastWrite), nullable(r.NextWrite),
		); err != nil {
			return 0, fmt.Errorf("insert request %d: %w", i, err)
		}
	}

	if edges != nil {
		for _, e := range edges.Edges() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO edges (trace_id, agent_a, agent_b) VALUES (?, ?, ?)",
				traceID, e.A, e.B,
			); err != nil {
				return 0, fmt.Errorf("insert edge %d-%d: %w", e.A, e.B, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit trace %s: %w", name, err)
	}
	return traceID, nil
}

// TraceID looks up a stored trace by name. Returns sql.ErrNoRows (wrapped)
// when it does not exist.
func (s *Store) TraceID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.sqlDB.QueryRowContext(ctx, "SELECT id FROM traces WHERE name = ?", name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup trace %s: %w", name, err)
	}
	return id, nil
}

// LoadRecords returns the records of a stored trace in their original order.
// Raw fields are not stored; the returned records carry typed fields only.
func (s *Store) LoadRecords(ctx context.Context, traceID int64) ([]trace.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT
    source_id, source_address, source_type, source_location,
    destination_address, destination_type, destination_location,
    object_address, object_type, operation, value, timestamp, normality,
    version, last_write, next_write
FROM requests WHERE trace_id = ? ORDER BY seq`, traceID)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var records []trace.Record
	for rows.Next() {
		var (
			r         trace.Record
			op        string
			lastWrite sql.NullInt64
			nextWrite sql.NullInt64
		)
		if err := rows.Scan(
			&r.SourceID, &r.SourceAddress, &r.SourceType, &r.SourceLocation,
			&r.DestinationAddress, &r.DestinationType, &r.DestinationLocation,
			&r.ObjectAddress, &r.ObjectType, &op, &r.Value, &r.Timestamp, &r.Normality,
			&r.Version, &lastWrite, &nextWrite,
		); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		r.Operation = trace.Operation(op)
		r.LastWrite = fromNullable(lastWrite)
		r.NextWrite = fromNullable(nextWrite)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return records, nil
}

// LoadEdges returns the edge set stored with a trace.
func (s *Store) LoadEdges(ctx context.Context, traceID int64) (*topology.EdgeSet, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT agent_a, agent_b FROM edges WHERE trace_id = ? ORDER BY agent_a, agent_b", traceID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	set := topology.NewEdgeSet()
	for rows.Next() {
		var a, b int
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		set.Add(a, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return set, nil
}

// VersionAt returns the generation of object that was current at instant at
// (see trace.Record.Generation), using the stored windows of the object's
// reads and subscribes. Instants before the first write yield trace.Unwritten.
// ok is false when no stored request covers the instant, or when the trace
// was stored with trace.HorizonObserved and at lies past its last timestamp.
func (s *Store) VersionAt(ctx context.Context, traceID int64, object string, at int64) (generation int, ok bool, err error) {
	var (
		policy  string
		horizon sql.NullInt64
	)
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT t.horizon_policy, MAX(r.timestamp)
FROM traces t LEFT JOIN requests r ON r.trace_id = t.id
WHERE t.id = ? GROUP BY t.id`, traceID).Scan(&policy, &horizon); err != nil {
		return 0, false, fmt.Errorf("lookup trace %d: %w", traceID, err)
	}

	var (
		r         trace.Record
		op        string
		lastWrite sql.NullInt64
		nextWrite sql.NullInt64
	)
	row := s.sqlDB.QueryRowContext(ctx, `SELECT operation, version, last_write, next_write FROM requests
WHERE trace_id = ? AND object_address = ? AND operation != 'write'
  AND (last_write IS NULL OR last_write <= ?)
  AND (next_write IS NULL OR next_write > ?)
ORDER BY seq LIMIT 1`, traceID, object, at, at)
	if err := row.Scan(&op, &r.Version, &lastWrite, &nextWrite); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query version of %s: %w", object, err)
	}
	r.Operation = trace.Operation(op)
	r.LastWrite = fromNullable(lastWrite)
	r.NextWrite = fromNullable(nextWrite)

	if freshness.ValidAt(r.Window(), at, trace.HorizonPolicy(policy), horizon.Int64) != freshness.Current {
		return 0, false, nil
	}
	return r.Generation(), true, nil
}

func nullable(ts int64) sql.NullInt64 {
	if ts == trace.NoWrite {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ts, Valid: true}
}

func fromNullable(v sql.NullInt64) int64 {
	if !v.Valid {
		return trace.NoWrite
	}
	return v.Int64
}
