package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/actis-dev/actis/pkg/schema"
)

// LibSQLStore implements InvocationStore using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Append records a new invocation row.
func (s *LibSQLStore) Append(ctx context.Context, inv *Invocation) error {
	params, err := marshalMapOrDefault(inv.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, action, params, status, result, error, started_at, finished_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Action, string(params), string(inv.Status),
		nullRaw(inv.Result), nullStr(inv.Error),
		timeOrNow(inv.StartedAt), nullTime(inv.FinishedAt), inv.DurationMs,
	)
	return err
}

// Finish writes the terminal fields of an invocation.
func (s *LibSQLStore) Finish(ctx context.Context, id string, update InvocationUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invocations SET status = ?, result = ?, error = ?, finished_at = ?, duration_ms = ?
		 WHERE id = ?`,
		string(update.Status), nullRaw(update.Result), nullStr(update.Error),
		timeOrNow(update.FinishedAt), update.DurationMs, id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "invocation", id)
}

// Get fetches one invocation by id.
func (s *LibSQLStore) Get(ctx context.Context, id string) (*Invocation, error) {
	inv := &Invocation{}
	var (
		paramsJSON              string
		resultJSON, errMsg      sql.NullString
		finishedAt              sql.NullTime
		status                  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, action, params, status, result, error, started_at, finished_at, duration_ms
		 FROM invocations WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.Action, &paramsJSON, &status, &resultJSON, &errMsg,
		&inv.StartedAt, &finishedAt, &inv.DurationMs)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("invocation", id)
	}
	if err != nil {
		return nil, err
	}
	inv.Status = schema.InvocationStatus(status)
	if paramsJSON != "" {
		_ = json.Unmarshal([]byte(paramsJSON), &inv.Params)
	}
	inv.Result = rawOrNil(resultJSON)
	inv.Error = errMsg.String
	if finishedAt.Valid {
		inv.FinishedAt = &finishedAt.Time
	}
	return inv, nil
}

// List returns invocations matching the filter, newest first.
func (s *LibSQLStore) List(ctx context.Context, filter InvocationFilter) ([]*Invocation, error) {
	var where []string
	var args []any

	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "started_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, action, params, status, result, error, started_at, finished_at, duration_ms FROM invocations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite needs a LIMIT clause before OFFSET; -1 means unbounded.
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invocations []*Invocation
	for rows.Next() {
		inv := &Invocation{}
		var (
			paramsJSON         string
			resultJSON, errMsg sql.NullString
			finishedAt         sql.NullTime
			status             string
		)
		if err := rows.Scan(&inv.ID, &inv.Action, &paramsJSON, &status, &resultJSON, &errMsg,
			&inv.StartedAt, &finishedAt, &inv.DurationMs); err != nil {
			return nil, err
		}
		inv.Status = schema.InvocationStatus(status)
		if paramsJSON != "" {
			_ = json.Unmarshal([]byte(paramsJSON), &inv.Params)
		}
		inv.Result = rawOrNil(resultJSON)
		inv.Error = errMsg.String
		if finishedAt.Valid {
			inv.FinishedAt = &finishedAt.Time
		}
		invocations = append(invocations, inv)
	}
	return invocations, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.ActisError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}
