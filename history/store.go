package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/orchestrator"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// ErrSchemaMismatch indicates the database was written by another schema
// version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Attempt is one capture attempt as recorded in the journal.
type Attempt struct {
	ID         string
	SessionID  string
	StudentID  string
	Name       string
	Year       string
	Dept       string
	Outcome    string
	VideoBytes int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the SQLite-backed attempt journal. It satisfies
// orchestrator.Journal.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ orchestrator.Journal = (*Store)(nil)

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return tx.Commit()
}

// Begin records a new attempt for the session and returns its id.
func (s *Store) Begin(ctx context.Context, sess orchestrator.Session) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, session_id, student_id, name, year, dept, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sess.ID, sess.StudentID, sess.Name, sess.Year, sess.Dept,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return id, nil
}

// Finish closes an attempt. Finishing an attempt twice is an error.
func (s *Store) Finish(ctx context.Context, id, outcome string, size int, cause error) error {
	var msg sql.NullString
	if cause != nil {
		msg = sql.NullString{String: cause.Error(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET outcome = ?, video_bytes = ?, error_message = ?, finished_at = ?
        WHERE id = ? AND finished_at IS NULL`,
		outcome, size, msg, s.now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish attempt %s: not found or already finished", id)
	}
	return nil
}

// List returns the most recent attempts first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Attempt, error) {
	q := `SELECT id, session_id, student_id, name, year, dept, outcome, video_bytes,
        error_message, started_at, finished_at FROM attempts ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		a          Attempt
		outcome    sql.NullString
		errMsg     sql.NullString
		startedRaw string
		finished   sql.NullString
	)
	if err := scanner.Scan(&a.ID, &a.SessionID, &a.StudentID, &a.Name, &a.Year, &a.Dept,
		&outcome, &a.VideoBytes, &errMsg, &startedRaw, &finished); err != nil {
		return Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.Outcome = outcome.String
	a.Error = errMsg.String
	a.StartedAt = parseTime(startedRaw)
	if finished.Valid {
		a.FinishedAt = parseTime(finished.String)
	}
	return a, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
