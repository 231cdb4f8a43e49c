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

// Package pgstore keeps trees in PostgreSQL tables. Every tree operation runs
// in a SERIALIZABLE transaction; serialization failures and deadlocks are
// retried here, never in the tree algorithm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgedge/mptt/db/queries"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type Options struct {
	Attributes map[string]string
	MaxRetries int
}

type Store struct {
	pool *pgxpool.Pool
	opts Options

	mu     sync.Mutex
	tables map[string]*queries.TreeTable
}

var _ store.Backend = (*Store)(nil)

// New wraps an existing pool. Close closes the pool.
func New(pool *pgxpool.Pool, opts Options) *Store {
	return &Store{pool: pool, opts: opts, tables: make(map[string]*queries.TreeTable)}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) table(name string) (*queries.TreeTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t, err := queries.NewTreeTable(queries.Postgres, name, s.opts.Attributes)
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
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return wrapErr(store.OpSchema, fmt.Errorf("create tree table %s: %w", name, err))
		}
	}
	return nil
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
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return wrapErr(store.OpSchema, fmt.Errorf("drop tree table %s: %w", name, err))
	}
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	return store.Retry(ctx, s.opts.MaxRetries, func() error {
		return s.runOnce(ctx, fn)
	})
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return wrapErr(store.OpBegin, err)
	}
	defer pgTx.Rollback(context.Background())

	if err := fn(ctx, &pgTxn{s: s, db: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return wrapErr(store.OpCommit, err)
	}
	return nil
}

type pgTxn struct {
	s  *Store
	db queries.DBTX
}

func (t *pgTxn) SelectOne(ctx context.Context, name string, f nestedset.Filter) (nestedset.Node, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return nestedset.Node{}, err
	}
	query, args, err := tbl.SelectSQL(f, nestedset.OrderBy{Column: nestedset.ColLeft}, 1)
	if err != nil {
		return nestedset.Node{}, err
	}
	n, err := tbl.ScanNode(t.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nestedset.Node{}, nestedset.ErrNodeNotFound
	}
	if err != nil {
		return nestedset.Node{}, wrapErr(store.OpSelectOne, err)
	}
	return n, nil
}

func (t *pgTxn) SelectMany(ctx context.Context, name string, f nestedset.Filter, order nestedset.OrderBy) ([]nestedset.Node, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return nil, err
	}
	query, args, err := tbl.SelectSQL(f, order, 0)
	if err != nil {
		return nil, err
	}
	rows, err := t.db.Query(ctx, query, args...)
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

func (t *pgTxn) Insert(ctx context.Context, name string, n nestedset.Node) (int64, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return 0, err
	}
	query, args, err := tbl.InsertSQL(n)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := t.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, wrapErr(store.OpInsert, err)
	}
	return id, nil
}

func (t *pgTxn) BulkUpdate(ctx context.Context, name string, deltas []nestedset.ColumnDelta, f nestedset.Filter) (int64, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return 0, err
	}
	query, args, err := tbl.UpdateSQL(deltas, f)
	if err != nil {
		return 0, err
	}
	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(store.OpBulkUpdate, err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTxn) BulkDelete(ctx context.Context, name string, f nestedset.Filter) (int64, error) {
	tbl, err := t.s.table(name)
	if err != nil {
		return 0, err
	}
	query, args, err := tbl.DeleteSQL(f)
	if err != nil {
		return 0, err
	}
	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, wrapErr(store.OpBulkDelete, err)
	}
	return tag.RowsAffected(), nil
}

func wrapErr(op string, err error) error {
	return nestedset.NewStoreError(op, err, isRetryable(err))
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
