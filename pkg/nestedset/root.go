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

	"github.com/pgedge/mptt/pkg/logger"
)

// HasRoot reports whether the scope already has a root node.
func (t *Tree) HasRoot(ctx context.Context) (bool, error) {
	_, ok, err := t.GetRootNode(ctx)
	return ok, err
}

// CreateRoot inserts the root of an empty scope and returns its id. It fails
// with ErrConflict when a root already exists.
func (t *Tree) CreateRoot(ctx context.Context, attrs map[string]any) (int64, error) {
	var id int64
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := t.root(ctx, tx)
		switch {
		case err == nil:
			return ErrConflict
		case !isNotFound(err):
			return err
		}

		id, err = tx.Insert(ctx, t.table, t.newRow(1, 2, attrs))
		return err
	})
	if err != nil {
		return 0, err
	}

	logger.Debug("%s: created root %d", t, id)
	return id, nil
}

// GetRootNode returns the root, or false when the scope is empty.
func (t *Tree) GetRootNode(ctx context.Context) (Node, bool, error) {
	var root Node
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		root, err = t.root(ctx, tx)
		return err
	})
	if isNotFound(err) {
		return Node{}, false, nil
	}
	if err != nil {
		return Node{}, false, err
	}
	return root, true, nil
}

func (t *Tree) GetRootID(ctx context.Context) (int64, bool, error) {
	root, ok, err := t.GetRootNode(ctx)
	return root.ID, ok, err
}
