package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/ethoflow/ethoflow/pkg/table"
)

// DuckDBSink stores sampling results in long format, one row per
// (observation, subject, time, behavior), for ad hoc SQL analysis.
type DuckDBSink struct {
	mu   sync.Mutex
	db   *sql.DB
	stmt *sql.Stmt
	rows int64
}

// OpenDuckDBSink opens or creates a DuckDB database. An empty path keeps
// the database in memory.
func OpenDuckDBSink(path string) (*DuckDBSink, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			observation_id VARCHAR NOT NULL,
			subject VARCHAR NOT NULL,
			time DOUBLE NOT NULL,
			behavior VARCHAR NOT NULL,
			active BOOLEAN NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	stmt, err := db.Prepare(`
		INSERT INTO samples (observation_id, subject, time, behavior, active)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &DuckDBSink{db: db, stmt: stmt}, nil
}

// Write inserts every table of result in one transaction. Existing rows for
// the same observations are replaced.
func (s *DuckDBSink) Write(ctx context.Context, result table.SamplingResult) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	for obsID := range result {
		if _, err := tx.ExecContext(ctx, `DELETE FROM samples WHERE observation_id = ?`, obsID); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to clear observation %s: %w", obsID, err)
		}
	}

	stmt := tx.StmtContext(ctx, s.stmt)
	var n int64
	for _, u := range result.Units() {
		t, _ := result.Get(u.ObservationID, u.Subject)
		subject := SubjectName(u.Subject)
		labels := t.Labels()
		for _, row := range t.Rows {
			at := row.Time.Seconds()
			for i, c := range row.Cells {
				if _, err := stmt.ExecContext(ctx, u.ObservationID, subject, at, labels[i], c == 1); err != nil {
					tx.Rollback()
					return 0, fmt.Errorf("failed to insert sample: %w", err)
				}
				n++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.rows += n
	return n, nil
}

// Count returns the number of stored samples.
func (s *DuckDBSink) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&count)
	return count, err
}

// ActiveCount returns how many samples of behavior were active for an
// observation and subject key.
func (s *DuckDBSink) ActiveCount(ctx context.Context, observationID, subject, behavior string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM samples
		WHERE observation_id = ? AND subject = ? AND behavior = ? AND active
	`, observationID, SubjectName(subject), behavior).Scan(&count)
	return count, err
}

// CopyToParquet exports the samples table to a Parquet file.
func (s *DuckDBSink) CopyToParquet(ctx context.Context, path string, c Compression) error {
	compression := c.String()
	if c == CompressionNone {
		compression = "uncompressed"
	}
	query := fmt.Sprintf(`COPY samples TO '%s' (FORMAT PARQUET, COMPRESSION '%s')`,
		strings.ReplaceAll(path, "'", "''"), compression)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to export parquet: %w", err)
	}
	return nil
}

// RowsWritten returns the number of rows inserted through this sink.
func (s *DuckDBSink) RowsWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Close releases the database.
func (s *DuckDBSink) Close() error {
	s.stmt.Close()
	return s.db.Close()
}
