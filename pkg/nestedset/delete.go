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

// Delete removes every listed node together with its subtree and returns the
// ids that were actually removed, each at most once. Ids that do not exist
// (including descendants already removed through an earlier id of the same
// call) are skipped, which makes repeated deletes idempotent.
func (t *Tree) Delete(ctx context.Context, ids ...int64) ([]int64, error) {
	var removed []int64
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		removed = removed[:0]
		seen := make(map[int64]struct{})

		for _, id := range ids {
			if _, done := seen[id]; done {
				continue
			}
			node, err := t.lookup(ctx, tx, id)
			if isNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}

			span := t.scoped(Between(ColLeft, node.Left, node.Right))
			rows, err := tx.SelectMany(ctx, t.table, span, OrderBy{Column: ColLeft})
			if err != nil {
				return err
			}
			subtree := make([]int64, 0, len(rows))
			for _, r := range rows {
				subtree = append(subtree, r.ID)
			}

			// The span filter keeps the statement size independent of the
			// subtree size; an id list would hit bind-parameter limits.
			count, err := tx.BulkDelete(ctx, t.table, span)
			if err != nil {
				return err
			}
			if count == 0 {
				continue
			}

			// Each removed row freed one lft and one rgt slot.
			if err := t.shiftBoundaries(ctx, tx, node.Right, -2*count); err != nil {
				return err
			}

			for _, rid := range subtree {
				if _, dup := seen[rid]; dup {
					continue
				}
				seen[rid] = struct{}{}
				removed = append(removed, rid)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, nil
	}

	logger.Debug("%s: deleted %d node(s)", t, len(removed))
	return removed, nil
}
