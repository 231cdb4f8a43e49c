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

// Move relocates nodeID together with its whole subtree so that it ends up
// rel targetID. The relative order inside the moved subtree is preserved.
//
// Move reports false with ErrNodeNotFound when either node is missing from
// the scope; nothing is written in that case or on any other error.
func (t *Tree) Move(ctx context.Context, nodeID int64, rel Relationship, targetID int64) (bool, error) {
	if nodeID == targetID {
		return false, ErrSelfMove
	}
	if !rel.Valid() {
		return false, ErrUnsupportedRelationship
	}

	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		node, err := t.lookup(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		target, err := t.lookup(ctx, tx, targetID)
		if err != nil {
			return err
		}

		if node.IsRoot() {
			return ErrRootImmovable
		}
		// Covers both relationships: a node can neither become a child nor a
		// sibling of one of its own descendants.
		if node.Contains(target) {
			return ErrCyclicMove
		}

		width := node.Width()
		if width%2 != 0 {
			width++
		}

		threshold, err := rel.threshold(target)
		if err != nil {
			return err
		}
		gap, err := t.createGap(ctx, tx, rel, target, width)
		if err != nil {
			return err
		}

		// The gap pushed everything after threshold up by width, including
		// the moved subtree when it sits after the insertion point (this is
		// also the case when target is one of its ancestors).
		left, right := node.Left, node.Right
		if left > threshold {
			left += width
			right += width
		}

		increment := gap - left
		if _, err := tx.BulkUpdate(ctx, t.table,
			[]ColumnDelta{{Column: ColLeft, Delta: increment}, {Column: ColRight, Delta: increment}},
			t.scoped(Between(ColLeft, left, right)),
		); err != nil {
			return err
		}

		// [left, right] is empty now; close it.
		return t.shiftBoundaries(ctx, tx, right, -width)
	})
	if err != nil {
		return false, err
	}

	logger.Debug("%s: moved node %d %s %d", t, nodeID, rel, targetID)
	return true, nil
}
