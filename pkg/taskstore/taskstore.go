// ///////////////////////////////////////////////////////////////////////////
//
// # MPTT - Nested-set tree maintenance
//
// Copyright (C) 2023 - 2026, pgEdge (https://www.pgedge.com/)
//
// This software is released under the PostgreSQL License:
// https://opensource.org/license/postgresql
//
// ///////////////////////////////////////////////////////////////////////////

package taskstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

const (
	TaskTypeCreateRoot = "CREATE_ROOT"
	TaskTypeInsert     = "INSERT"
	TaskTypeImport     = "IMPORT"
	TaskTypeMove       = "MOVE"
	TaskTypeDelete     = "DELETE"
	TaskTypeValidate   = "VALIDATE"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS mptt_tasks (
    task_id      TEXT PRIMARY KEY,
    task_type    TEXT NOT NULL,
    task_status  TEXT NOT NULL,
    tree_table   TEXT NOT NULL,
    scope        TEXT,
    task_context TEXT,
    error        TEXT,
    started_at   TEXT,
    finished_at  TEXT,
    time_taken   REAL
);`

const selectColumns = `task_id, task_type, task_status, tree_table, scope,
        task_context, error, started_at, finished_at, time_taken`

var ErrNotFound = errors.New("task not found")

type Store struct {
	db *sql.DB
}

// Record is one tree operation as it was requested and how it ended.
type Record struct {
	TaskID         string
	TaskType       string
	Status         string
	TreeTable      string
	Scope          string
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
	TimeTaken      float64
	TaskContext    map[string]any
	RawTaskContext string
}

// Recorder writes task records when a store is configured and is a no-op
// otherwise, so callers never need to branch on it.
type Recorder struct {
	store     *Store
	ownsStore bool
	created   bool
}

func NewRecorder(existing *Store, path string) (*Recorder, error) {
	if existing != nil {
		return &Recorder{store: existing}, nil
	}
	store, err := New(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: store, ownsStore: true}, nil
}

func (r *Recorder) Store() *Store {
	if r == nil {
		return nil
	}
	return r.store
}

func (r *Recorder) HasStore() bool {
	return r != nil && r.store != nil
}

func (r *Recorder) Create(rec Record) error {
	if !r.HasStore() {
		return nil
	}
	if err := r.store.Create(rec); err != nil {
		return err
	}
	r.created = true
	return nil
}

func (r *Recorder) Update(rec Record) error {
	if !r.HasStore() || !r.created {
		return nil
	}
	return r.store.Update(rec)
}

func (r *Recorder) Close() error {
	if r == nil || !r.ownsStore || r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}

func New(path string) (*Store, error) {
	sqlitePath := resolvePath(path)
	if err := ensureDir(sqlitePath); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite3", sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
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

func (s *Store) Get(taskID string) (Record, error) {
	if strings.TrimSpace(taskID) == "" {
		return Record{}, fmt.Errorf("task id is required")
	}
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM mptt_tasks WHERE task_id = ?`, taskID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("fetch task %s: %w", taskID, err)
	}
	return rec, nil
}

// Filter narrows Query. Empty fields match everything; Scope "-" matches
// tasks on the global tree only.
type Filter struct {
	Table  string
	Scope  string
	Type   string
	Status string
	Limit  int
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		conds = append(conds, cond)
		args = append(args, v)
	}
	if f.Table != "" {
		add("tree_table = ?", f.Table)
	}
	switch f.Scope {
	case "":
	case "-":
		conds = append(conds, "scope IS NULL")
	default:
		add("scope = ?", f.Scope)
	}
	if f.Type != "" {
		add("task_type = ?", strings.ToUpper(f.Type))
	}
	if f.Status != "" {
		add("task_status = ?", strings.ToUpper(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns the newest tasks matching f, at most f.Limit (default 20).
func (s *Store) Query(f Filter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	where, args := f.where()
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM mptt_tasks`+where+
		` ORDER BY started_at DESC LIMIT ?`, append(args, f.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// List returns the most recent tasks for treeTable (all tables when empty),
// newest first.
func (s *Store) List(treeTable string, limit int) ([]Record, error) {
	return s.Query(Filter{Table: treeTable, Limit: limit})
}

// Prune deletes finished tasks that started before cutoff. Running tasks are
// kept.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM mptt_tasks
        WHERE started_at < ? AND task_status IN (?, ?)`,
		cutoff.UTC().Format(time.RFC3339Nano), StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Create(rec Record) error {
	if err := rec.validateForCreate(); err != nil {
		return err
	}
	ctxVal, err := rec.contextValue()
	if err != nil {
		return fmt.Errorf("marshal task context: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO mptt_tasks (
            task_id, task_type, task_status, tree_table, scope,
            task_context, error, started_at, finished_at, time_taken
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID,
		rec.TaskType,
		rec.Status,
		rec.TreeTable,
		nullableString(rec.Scope),
		ctxVal,
		nullableString(rec.Error),
		timeOrNil(rec.StartedAt),
		timeOrNil(rec.FinishedAt),
		rec.TimeTaken,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *Store) Update(rec Record) error {
	if strings.TrimSpace(rec.TaskID) == "" {
		return errors.New("task id is required")
	}
	ctxVal, err := rec.contextValue()
	if err != nil {
		return fmt.Errorf("marshal task context: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE mptt_tasks SET
            task_status = ?,
            task_context = ?,
            error = ?,
            finished_at = ?,
            time_taken = ?
        WHERE task_id = ?`,
		rec.Status,
		ctxVal,
		nullableString(rec.Error),
		timeOrNil(rec.FinishedAt),
		rec.TimeTaken,
		rec.TaskID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("ensure mptt_tasks schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		scope      sql.NullString
		ctxVal     sql.NullString
		errText    sql.NullString
		startedAt  sql.NullString
		finishedAt sql.NullString
		timeTaken  sql.NullFloat64
	)
	if err := row.Scan(
		&rec.TaskID,
		&rec.TaskType,
		&rec.Status,
		&rec.TreeTable,
		&scope,
		&ctxVal,
		&errText,
		&startedAt,
		&finishedAt,
		&timeTaken,
	); err != nil {
		return Record{}, err
	}

	rec.Scope = scope.String
	rec.Error = errText.String
	rec.TimeTaken = timeTaken.Float64
	if startedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAt.String); err == nil {
			rec.StartedAt = t
		}
	}
	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			rec.FinishedAt = t
		}
	}
	if ctxVal.Valid && strings.TrimSpace(ctxVal.String) != "" {
		rec.RawTaskContext = ctxVal.String
		var taskContext map[string]any
		if err := json.Unmarshal([]byte(ctxVal.String), &taskContext); err == nil {
			rec.TaskContext = taskContext
		}
	}
	return rec, nil
}

func (r Record) validateForCreate() error {
	if strings.TrimSpace(r.TaskID) == "" {
		return errors.New("task id is required")
	}
	if strings.TrimSpace(r.TaskType) == "" {
		return errors.New("task type is required")
	}
	if strings.TrimSpace(r.Status) == "" {
		return errors.New("task status is required")
	}
	if strings.TrimSpace(r.TreeTable) == "" {
		return errors.New("tree table is required")
	}
	return nil
}

func (r Record) contextValue() (any, error) {
	if len(r.TaskContext) > 0 {
		blob, err := json.Marshal(r.TaskContext)
		if err != nil {
			return nil, err
		}
		return string(blob), nil
	}
	if strings.TrimSpace(r.RawTaskContext) != "" {
		return r.RawTaskContext, nil
	}
	return nil, nil
}

func resolvePath(path string) string {
	if strings.TrimSpace(path) != "" {
		return path
	}
	if env := os.Getenv("MPTT_TASKS_DB"); strings.TrimSpace(env) != "" {
		return env
	}
	return filepath.Join(".", "mptt_tasks.db")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func nullableString(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}

func timeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
