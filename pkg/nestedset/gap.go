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
	"fmt"
)

// createGap reserves size free boundary slots next to ref and returns the
// first free boundary. FirstChildOf opens the gap right after ref.Left,
// After right after ref.Right. Every lft and rgt past that point moves up by
// size, so the reserved slots are exactly [start, start+size-1].
//
// It must run inside the caller's transaction; the caller writes rows into
// the gap (or moves a subtree into it) before committing.
func (t *Tree) createGap(ctx context.Context, tx Tx, rel Relationship, ref Node, size int64) (int64, error) {
	threshold, err := rel.threshold(ref)
	if err != nil {
		return 0, err
	}
	if rel.sibling() && ref.IsRoot() {
		return 0, ErrSiblingOfRoot
	}
	if size <= 0 || size%2 != 0 {
		return 0, fmt.Errorf("gap size must be a positive even number, got %d", size)
	}

	if err := t.shiftBoundaries(ctx, tx, threshold, size); err != nil {
		return 0, err
	}
	return threshold + 1, nil
}
