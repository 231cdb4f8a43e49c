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

// Package memstore is an in-process store.Backend. Transactions are
// serialised by a single lock and rolled back from a snapshot taken at
// begin. It backs the unit tests and the "memory" backend of the CLI.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
)

type table struct {
	rows   map[int64]nestedset.Node
	nextID int64
}

func (t *table) clone() *table {
	out := &table{rows: make(map[int64]nestedset.Node, len(t.rows)), nextID: t.nextID}
	for id, n := range t.rows {
		out.rows[id] = n.Clone()
	}
	return out
}

type Store struct {
	mu     sync.Mutex
	tables map[string]*table
	// failures holds errors injected with FailNext, keyed by operation.
	failures map[string]error
	writes   int
}

var _ store.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		tables:   make(map[string]*table),
		failures: make(map[string]error),
	}
}

// FailNext makes the next call of op (one of the store.Op* names) fail with
// err. Retryable errors are reported as such.
func (s *Store) FailNext(op string, err error, retryable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = nestedset.NewStoreError(op, err, retryable)
}

// Writes counts the write statements (insert, bulk update, bulk delete)
// that were committed.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Rows returns a copy of every row of name ordered by id.
func (s *Store) Rows(name string) []nestedset.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	out := make([]nestedset.Node, 0, len(t.rows))
	for _, n := range t.rows {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Put stores n as is, bypassing the tree algorithm. Tests use it to build
// corrupt trees.
func (s *Store) Put(name string, n nestedset.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(name)
	t.rows[n.ID] = n.Clone()
	if n.ID > t.nextID {
		t.nextID = n.ID
	}
}

func (s *Store) EnsureTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table(name)
	return nil
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return nestedset.NewStoreError(store.OpBegin, err, false)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail(store.OpBegin); err != nil {
		return err
	}

	snapshot := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		snapshot[name] = t.clone()
	}

	tx := &memTx{s: s}
	err := fn(ctx, tx)
	if err == nil {
		err = s.fail(store.OpCommit)
	}
	if err != nil {
		s.tables = snapshot
		return err
	}
	s.writes += tx.writes
	return nil
}

// fail pops an injected failure for op. Caller holds s.mu.
func (s *Store) fail(op string) error {
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

// table returns name, creating it on first use. Caller holds s.mu.
func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[int64]nestedset.Node)}
		s.tables[name] = t
	}
	return t
}

// memTx runs with s.mu held by RunInTx.
type memTx struct {
	s      *Store
	writes int
}

func (tx *memTx) match(name string, f nestedset.Filter, order nestedset.OrderBy) []nestedset.Node {
	t, ok := tx.s.tables[name]
	if !ok {
		return nil
	}
	var out []nestedset.Node
	for _, n := range t.rows {
		if f.Match(n) {
			out = append(out, n)
		}
	}
	store.SortNodes(out, order)
	return out
}

func (tx *memTx) SelectOne(ctx context.Context, name string, f nestedset.Filter) (nestedset.Node, error) {
	if err := tx.s.fail(store.OpSelectOne); err != nil {
		return nestedset.Node{}, err
	}
	rows := tx.match(name, f, nestedset.OrderBy{Column: nestedset.ColLeft})
	if len(rows) == 0 {
		return nestedset.Node{}, nestedset.ErrNodeNotFound
	}
	return rows[0].Clone(), nil
}

func (tx *memTx) SelectMany(ctx context.Context, name string, f nestedset.Filter, order nestedset.OrderBy) ([]nestedset.Node, error) {
	if err := tx.s.fail(store.OpSelectMany); err != nil {
		return nil, err
	}
	rows := tx.match(name, f, order)
	out := make([]nestedset.Node, len(rows))
	for i, n := range rows {
		out[i] = n.Clone()
	}
	return out, nil
}

func (tx *memTx) Insert(ctx context.Context, name string, n nestedset.Node) (int64, error) {
	if err := tx.s.fail(store.OpInsert); err != nil {
		return 0, err
	}
	t := tx.s.table(name)
	t.nextID++
	row := n.Clone()
	row.ID = t.nextID
	t.rows[row.ID] = row
	tx.writes++
	return row.ID, nil
}

func (tx *memTx) BulkUpdate(ctx context.Context, name string, deltas []nestedset.ColumnDelta, f nestedset.Filter) (int64, error) {
	if err := tx.s.fail(store.OpBulkUpdate); err != nil {
		return 0, err
	}
	t, ok := tx.s.tables[name]
	if !ok {
		return 0, nil
	}

	// The predicate sees the rows as they were before the statement.
	var ids []int64
	for id, n := range t.rows {
		if f.Match(n) {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		n := t.rows[id]
		for _, d := range deltas {
			switch d.Column {
			case nestedset.ColLeft:
				n.Left += d.Delta
			case nestedset.ColRight:
				n.Right += d.Delta
			default:
				return 0, nestedset.NewStoreError(store.OpBulkUpdate,
					fmt.Errorf("column %q cannot be shifted", d.Column), false)
			}
		}
		t.rows[id] = n
	}
	tx.writes++
	return int64(len(ids)), nil
}

func (tx *memTx) BulkDelete(ctx context.Context, name string, f nestedset.Filter) (int64, error) {
	if err := tx.s.fail(store.OpBulkDelete); err != nil {
		return 0, err
	}
	t, ok := tx.s.tables[name]
	if !ok {
		return 0, nil
	}
	var count int64
	for id, n := range t.rows {
		if f.Match(n) {
			delete(t.rows, id)
			count++
		}
	}
	tx.writes++
	return count, nil
}
