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

// InsertNode inserts a single leaf. ok is false when the reference node does
// not exist, in which case nothing was written.
func (t *Tree) InsertNode(ctx context.Context, attrs map[string]any, rel Relationship, referenceID int64) (id int64, ok bool, err error) {
	ids, err := t.Insert(ctx, []NodeInput{{Attrs: attrs}}, rel, referenceID)
	if err != nil || len(ids) == 0 {
		return 0, false, err
	}
	return ids[0], true, nil
}

// Insert places a pre-shaped subtree relative to referenceID. nodes are in
// relative nested-set coordinates with the subtree root first at Left == 1;
// a single node without coordinates becomes a leaf. The gap is sized once for
// the whole batch and every row is offset by the same amount.
//
// The returned ids follow the order of nodes. A missing reference node is not
// an error: the result is simply empty.
func (t *Tree) Insert(ctx context.Context, nodes []NodeInput, rel Relationship, referenceID int64) ([]int64, error) {
	if !rel.Valid() {
		return nil, ErrUnsupportedRelationship
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	shaped, err := normalizeShape(nodes)
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		ids = ids[:0]

		if _, err := t.root(ctx, tx); err != nil {
			if isNotFound(err) {
				return ErrNoRoot
			}
			return err
		}

		ref, err := t.lookup(ctx, tx, referenceID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		gap, err := t.createGap(ctx, tx, rel, ref, int64(2*len(shaped)))
		if err != nil {
			return err
		}

		offset := gap - 1
		for _, n := range shaped {
			id, err := tx.Insert(ctx, t.table, t.newRow(n.Left+offset, n.Right+offset, n.Attrs))
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		logger.Debug("%s: reference node %d not found; nothing inserted", t, referenceID)
		return nil, nil
	}

	logger.Debug("%s: inserted %d node(s) %s %d", t, len(ids), rel, referenceID)
	return ids, nil
}
