package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Register SQLite3 driver

	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/entity"
)

// TableInvocations holds the journal.
const TableInvocations = "invocations"

const schema = `CREATE TABLE IF NOT EXISTS ` + TableInvocations + ` (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	command     TEXT NOT NULL,
	plugin      TEXT NOT NULL,
	success     INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invocations_command ON ` + TableInvocations + ` (command);`

// InvocationStore is a SQLite-backed invocation journal.
type InvocationStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(path string) (*InvocationStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=2000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &InvocationStore{db: db}, nil
}

// Close closes the database.
func (s *InvocationStore) Close() error {
	return s.db.Close()
}

func (s *InvocationStore) Append(ctx context.Context, inv *entity.Invocation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableInvocations+` (id, command, plugin, success, error, started_at, duration_ns) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Command, inv.Plugin, inv.Success, inv.Error, inv.StartedAt.UnixNano(), int64(inv.Duration))
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

func (s *InvocationStore) List(ctx context.Context, q entity.Query) ([]*entity.Invocation, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.Command != nil {
		where = append(where, "command = ?")
		args = append(args, *q.Command)
	}
	if q.FailedOnly {
		where = append(where, "success = 0")
	}

	query := `SELECT id, command, plugin, success, error, started_at, duration_ns FROM ` + TableInvocations
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var result []*entity.Invocation
	for rows.Next() {
		var (
			inv       entity.Invocation
			startedAt int64
			duration  int64
		)
		if err := rows.Scan(&inv.ID, &inv.Command, &inv.Plugin, &inv.Success, &inv.Error, &startedAt, &duration); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.StartedAt = time.Unix(0, startedAt)
		inv.Duration = time.Duration(duration)
		result = append(result, &inv)
	}
	return result, rows.Err()
}

func (s *InvocationStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableInvocations).Scan(&n)
	return n, err
}
