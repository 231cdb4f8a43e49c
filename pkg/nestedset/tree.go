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

package nestedset

import (
	"context"
	"errors"
	"fmt"
)

// Tree is one nested-set tree: a table in a Store, optionally narrowed to a
// single scope. A Tree holds no row state; it is safe for concurrent use as
// long as the Store is.
type Tree struct {
	store Store
	table string
	scope *string
}

type Option func(*Tree)

// WithScope restricts every query and shift to rows whose scope equals s.
// Without it the whole table is one global tree.
func WithScope(s string) Option {
	return func(t *Tree) {
		t.scope = &s
	}
}

func New(store Store, table string, opts ...Option) *Tree {
	t := &Tree{store: store, table: table}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tree) Table() string {
	return t.table
}

// Scope returns the tree's scope and whether it has one.
func (t *Tree) Scope() (string, bool) {
	if t.scope == nil {
		return "", false
	}
	return *t.scope, true
}

// InScope returns a tree over the same table and store restricted to s.
func (t *Tree) InScope(s string) *Tree {
	return New(t.store, t.table, WithScope(s))
}

func (t *Tree) String() string {
	if t.scope == nil {
		return t.table
	}
	return fmt.Sprintf("%s[%s]", t.table, *t.scope)
}

func (t *Tree) scoped(conds ...Cond) Filter {
	f := make(Filter, 0, len(conds)+1)
	if t.scope != nil {
		f = append(f, Eq(ColScope, *t.scope))
	}
	return append(f, conds...)
}

func (t *Tree) lookup(ctx context.Context, tx Tx, id int64) (Node, error) {
	return tx.SelectOne(ctx, t.table, t.scoped(Eq(ColID, id)))
}

func (t *Tree) root(ctx context.Context, tx Tx) (Node, error) {
	return tx.SelectOne(ctx, t.table, t.scoped(Eq(ColLeft, int64(1))))
}

// shift adds delta to col on every row whose col is greater than threshold.
func (t *Tree) shift(ctx context.Context, tx Tx, col Column, threshold, delta int64) error {
	_, err := tx.BulkUpdate(ctx, t.table,
		[]ColumnDelta{{Column: col, Delta: delta}},
		t.scoped(Gt(col, threshold)),
	)
	return err
}

// shiftBoundaries shifts lft and rgt independently past threshold.
func (t *Tree) shiftBoundaries(ctx context.Context, tx Tx, threshold, delta int64) error {
	if err := t.shift(ctx, tx, ColLeft, threshold, delta); err != nil {
		return err
	}
	return t.shift(ctx, tx, ColRight, threshold, delta)
}

func (t *Tree) newRow(left, right int64, attrs map[string]any) Node {
	n := Node{Left: left, Right: right, Attrs: attrs}
	if t.scope != nil {
		s := *t.scope
		n.Scope = &s
	}
	return n
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}
