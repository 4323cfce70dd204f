package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/qcal/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a
// Store. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// A single connection serializes counter increments and keeps the
	// in-memory database coherent across goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Session CRUD ---

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.ExecutionSession) error {
	s.logger.Debug("sql", "op", "insert", "table", "sessions", "execution_id", sess.ExecutionID)

	outcomesJSON, err := json.Marshal(sess.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (execution_id, username, chip_id, project_id, state, note, outcomes, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ExecutionID, sess.Username, sess.ChipID, sess.ProjectID, string(sess.State), sess.Note,
		string(outcomesJSON), sess.StartedAt.Format(time.RFC3339Nano), formatTimePtr(sess.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, executionID string) (*model.ExecutionSession, error) {
	s.logger.Debug("sql", "op", "select", "table", "sessions", "execution_id", executionID)

	row := s.db.QueryRowContext(ctx,
		`SELECT execution_id, username, chip_id, project_id, state, note, outcomes, started_at, completed_at
		 FROM sessions WHERE execution_id = ?`, executionID)

	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

func (s *SQLiteStore) ListSessions(ctx context.Context, opts model.ListOptions) ([]*model.ExecutionSession, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "sessions")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = model.DefaultListOptions().Limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, username, chip_id, project_id, state, note, outcomes, started_at, completed_at
		 FROM sessions ORDER BY started_at DESC, execution_id DESC LIMIT ? OFFSET ?`,
		limit, opts.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*model.ExecutionSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.ExecutionSession) error {
	s.logger.Debug("sql", "op", "update", "table", "sessions", "execution_id", sess.ExecutionID)

	outcomesJSON, err := json.Marshal(sess.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, note = ?, outcomes = ?, completed_at = ? WHERE execution_id = ?`,
		string(sess.State), sess.Note, string(outcomesJSON), formatTimePtr(sess.CompletedAt), sess.ExecutionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s not found", sess.ExecutionID)
	}
	return nil
}

// --- History sink ---

func (s *SQLiteStore) AppendTaskInstance(ctx context.Context, t *model.TaskInstance) error {
	s.logger.Debug("sql", "op", "append", "table", "task_instances", "task", t.TaskName, "target", t.Target, "state", t.State)

	inputJSON, err := json.Marshal(t.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	outputJSON, err := json.Marshal(t.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_instances (id, execution_id, task_name, task_type, backend, state, target, input, output, error_kind, message, retry_count, max_retries, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ExecutionID, t.TaskName, string(t.TaskType), t.Backend, string(t.State), t.Target,
		string(inputJSON), string(outputJSON), t.ErrorKind, t.Message, t.RetryCount, t.MaxRetries,
		t.CreatedAt.Format(time.RFC3339Nano), formatTimePtr(t.StartedAt), formatTimePtr(t.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) ListTaskInstances(ctx context.Context, executionID string) ([]*model.TaskInstance, error) {
	s.logger.Debug("sql", "op", "list", "table", "task_instances", "execution_id", executionID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, task_name, task_type, backend, state, target, input, output, error_kind, message, retry_count, max_retries, created_at, started_at, completed_at
		 FROM task_instances WHERE execution_id = ? ORDER BY seq`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*model.TaskInstance
	for rows.Next() {
		var t model.TaskInstance
		var taskType, state string
		var inputJSON, outputJSON string
		var createdAt string
		var startedAt, completedAt sql.NullString

		if err := rows.Scan(&t.ID, &t.ExecutionID, &t.TaskName, &taskType, &t.Backend, &state, &t.Target,
			&inputJSON, &outputJSON, &t.ErrorKind, &t.Message, &t.RetryCount, &t.MaxRetries,
			&createdAt, &startedAt, &completedAt); err != nil {
			return nil, err
		}

		t.TaskType = model.TaskType(taskType)
		t.State = model.TaskState(state)
		if err := json.Unmarshal([]byte(inputJSON), &t.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
		if err := json.Unmarshal([]byte(outputJSON), &t.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		t.StartedAt = parseTimePtr(startedAt)
		t.CompletedAt = parseTimePtr(completedAt)

		instances = append(instances, &t)
	}
	return instances, rows.Err()
}

// --- Project lock ---

func (s *SQLiteStore) AcquireLock(ctx context.Context, projectID, owner string) error {
	s.logger.Debug("sql", "op", "acquire_lock", "project_id", projectID, "owner", owner)

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_locks (project_id, owner, acquired_at) VALUES (?, ?, ?)`,
		projectID, owner, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var holder string
		if err := s.db.QueryRowContext(ctx,
			`SELECT owner FROM project_locks WHERE project_id = ?`, projectID).Scan(&holder); err != nil && err != sql.ErrNoRows {
			return err
		}
		return &model.LockContentionError{ProjectID: projectID, Owner: holder}
	}
	return nil
}

func (s *SQLiteStore) ReleaseLock(ctx context.Context, projectID string) error {
	s.logger.Debug("sql", "op", "release_lock", "project_id", projectID)

	_, err := s.db.ExecContext(ctx, `DELETE FROM project_locks WHERE project_id = ?`, projectID)
	return err
}

func (s *SQLiteStore) IsLocked(ctx context.Context, projectID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_locks WHERE project_id = ?`, projectID).Scan(&n)
	return n > 0, err
}

// --- Execution counter ---

// NextIndex performs an atomic find-or-create and increment. The UPSERT keeps
// the read-modify-write inside a single statement so concurrent session
// starts for the same key can never observe a duplicate value.
func (s *SQLiteStore) NextIndex(ctx context.Context, key model.CounterKey) (int, error) {
	s.logger.Debug("sql", "op", "next_index", "date", key.Date, "project_id", key.ProjectID)

	var value int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO execution_counters (date, username, chip_id, project_id, value)
		 VALUES (?, ?, ?, ?, 0)
		 ON CONFLICT(date, username, chip_id, project_id) DO UPDATE SET value = value + 1
		 RETURNING value`,
		key.Date, key.Username, key.ChipID, key.ProjectID).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next index for %s/%s: %w", key.Date, key.ProjectID, err)
	}
	return value, nil
}

// --- Topology snapshots ---

func (s *SQLiteStore) SaveTopology(ctx context.Context, topo *model.Topology) error {
	s.logger.Debug("sql", "op", "upsert", "table", "topologies", "chip_id", topo.ChipID)

	doc, err := json.Marshal(topo)
	if err != nil {
		return fmt.Errorf("marshal topology: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO topologies (chip_id, document, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(chip_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		topo.ChipID, string(doc), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteStore) GetTopology(ctx context.Context, chipID string) (*model.Topology, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM topologies WHERE chip_id = ?`, chipID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var topo model.Topology
	if err := json.Unmarshal([]byte(doc), &topo); err != nil {
		return nil, fmt.Errorf("unmarshal topology %s: %w", chipID, err)
	}
	return &topo, nil
}

func (s *SQLiteStore) ListTopologies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chip_id FROM topologies ORDER BY chip_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.ExecutionSession, error) {
	var sess model.ExecutionSession
	var state, outcomesJSON, startedAt string
	var completedAt sql.NullString

	if err := row.Scan(&sess.ExecutionID, &sess.Username, &sess.ChipID, &sess.ProjectID,
		&state, &sess.Note, &outcomesJSON, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	sess.State = model.SessionState(state)
	if err := json.Unmarshal([]byte(outcomesJSON), &sess.Outcomes); err != nil {
		return nil, fmt.Errorf("unmarshal outcomes: %w", err)
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	sess.CompletedAt = parseTimePtr(completedAt)
	return &sess, nil
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
