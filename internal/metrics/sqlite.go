package metrics

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores records in a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path, creating its parent
// directory if needed.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating metrics directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Record implements Collector. The attempt and its parameters are written
// in one transaction.
func (s *SQLite) Record(ctx context.Context, rec *Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (id, action, encountered_error, duration_ms, started_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Action, rec.EncounteredError, rec.Duration.Milliseconds(), rec.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	names := make([]string, 0, len(rec.Parameters))
	for name := range rec.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO attempt_parameters (attempt_id, name, value) VALUES (?, ?, ?)`,
			rec.ID, name, rec.Parameters[name],
		)
		if err != nil {
			return fmt.Errorf("insert parameter %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit records, newest first.
func (s *SQLite) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, encountered_error, duration_ms, started_at FROM attempts ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var (
			rec        Record
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.EncounteredError, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range out {
		if rec.Parameters, err = s.parameters(ctx, rec.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLite) parameters(ctx context.Context, id string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM attempt_parameters WHERE attempt_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query parameters: %w", err)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		params[name] = value
	}
	return params, rows.Err()
}

// Close implements Collector.
func (s *SQLite) Close() error {
	return s.db.Close()
}
