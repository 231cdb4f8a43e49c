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

// Package sqlitestore keeps trees in a SQLite file. Either the cgo driver
// (mattn/go-sqlite3, "sqlite3") or the pure Go one (modernc.org/sqlite,
// "sqlite") can be selected.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/pgedge/mptt/db/queries"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

type Options struct {
	// Driver is DriverCgo (default) or DriverPureGo.
	Driver string
	// Attributes maps extra columns to their SQL type.
	Attributes map[string]string
	// MaxRetries bounds how often a busy transaction is retried.
	MaxRetries int
}

type Store struct {
	db   *sql.DB
	opts Options

	mu     sync.Mutex
	tables map[string]*queries.TreeTable
}

var _ store.Backend = (*Store)(nil)

// Open opens (creating when needed) the database at path. Writers are
// serialised: the pool holds a single connection and every transaction
// starts with BEGIN IMMEDIATE.
func Open(path string, opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverCgo
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	var dsn string
	switch opts.Driver {
	case DriverCgo:
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path)
	case DriverPureGo:
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", path)
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", opts.Driver)
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	return &Store{db: db, opts: opts, tables: make(map[string]*queries.TreeTable)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) table(name string) (*queries.TreeTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t, err := queries.NewTreeTable(queries.SQLite, name, s.opts.Attributes)
	if err != nil {
		return nil, err
	}
	s.tables[name] = t
	return t, nil
}

func (s *Store) EnsureTable(ctx context.Context, name string) error {
	t, err := s.table(name)
	if err != nil {
		return err
	}
	stmts, err := t.CreateSQL()
	if err != nil {
		return err
	}
	return s.exec(ctx, stmts...)
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	t, err := s.table(name)
	if err != nil {
		return err
	}
	stmt, err := t.DropSQL()
	if err != nil {
		return err
	}
	return s.exec(ctx, stmt)
}

func (s *Store) exec(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrapErr(store.OpSchema, err)
		}
	}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	return store.Retry(ctx, s.opts.MaxRetries, func() error {
		return s.runOnce(ctx, fn)
	})
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(store.OpBegin, err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &sqliteTx{s: s, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return wrapErr(store.OpCommit, err)
	}
	return nil
}

type sqliteTx struct {
	s  *Store
	tx *sql.Tx
}

func (t *sqliteTx) SelectOne(ctx context.Context, name string, f nestedset.Filter) (nestedset.Node, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return nestedset.Node{}, err
	}
	query, args, err := tbl.SelectSQL(f, nestedset.OrderBy{Column: nestedset.ColLeft}, 1)
	if err != nil {
		return nestedset.Node{}, err
	}
	n, err := tbl.ScanNode(t.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nestedset.Node{}, nestedset.ErrNodeNotFound
	}
	if err != nil {
		return nestedset.Node{}, wrapErr(store.OpSelectOne, err)
	}
	return n, nil
}

func (t *sqliteTx) SelectMany(ctx context.Context, name string, f nestedset.Filter, order nestedset.OrderBy) ([]nestedset.Node, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return nil, err
	}
	query, args, err := tbl.SelectSQL(f, order, 0)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(store.OpSelectMany, err)
	}
	defer rows.Close()

	var out []nestedset.Node
	for rows.Next() {
		n, err := tbl.ScanNode(rows)
		if err != nil {
			return nil, wrapErr(store.OpSelectMany, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(store.OpSelectMany, err)
	}
	return out, nil
}

func (t *sqliteTx) Insert(ctx context.Context, name string, n nestedset.Node) (int64, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return 0, err
	}
	query, args, err := tbl.InsertSQL(n)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, wrapErr(store.OpInsert, err)
	}
	return id, nil
}

func (t *sqliteTx) BulkUpdate(ctx context.Context, name string, deltas []nestedset.ColumnDelta, f nestedset.Filter) (int64, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return 0, err
	}
	query, args, err := tbl.UpdateSQL(deltas, f)
	if err != nil {
		return 0, err
	}
	return t.exec(ctx, store.OpBulkUpdate, query, args)
}

func (t *sqliteTx) BulkDelete(ctx context.Context, name string, f nestedset.Filter) (int64, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return 0, err
	}
	query, args, err := tbl.DeleteSQL(f)
	if err != nil {
		return 0, err
	}
	return t.exec(ctx, store.OpBulkDelete, query, args)
}

func (t *sqliteTx) exec(ctx context.Context, op, query string, args []any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}

func wrapErr(op string, err error) error {
	return nestedset.NewStoreError(op, err, isBusy(err))
}

// isBusy reports SQLITE_BUSY and SQLITE_LOCKED from either driver.
func isBusy(err error) bool {
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		return cgoErr.Code == sqlite3.ErrBusy || cgoErr.Code == sqlite3.ErrLocked
	}
	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) {
		code := pureErr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	return false
}
