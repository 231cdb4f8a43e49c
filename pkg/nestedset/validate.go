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

// maxProblems caps Report.Problems; validation keeps counting past it.
const maxProblems = 50

// Problem is one invariant violation found by ValidateReport.
type Problem struct {
	NodeID int64  `json:"node_id"`
	Reason string `json:"reason"`
}

// Report is the outcome of a validation walk.
type Report struct {
	Valid    bool      `json:"valid"`
	Nodes    int       `json:"nodes"`
	Problems []Problem `json:"problems,omitempty"`
	// Truncated is set when more than maxProblems violations were found.
	Truncated bool `json:"truncated,omitempty"`
}

func (r *Report) add(id int64, format string, args ...any) {
	r.Valid = false
	if len(r.Problems) >= maxProblems {
		r.Truncated = true
		return
	}
	r.Problems = append(r.Problems, Problem{NodeID: id, Reason: fmt.Sprintf(format, args...)})
}

// Validate reports whether the scope satisfies every nested-set invariant.
// It does not repair anything.
func (t *Tree) Validate(ctx context.Context) (bool, error) {
	rep, err := t.ValidateReport(ctx)
	if err != nil {
		return false, err
	}
	return rep.Valid, nil
}

// ValidateReport walks the scope in preorder and checks that every interval
// is well formed, that no boundary repeats, that every node lies strictly
// inside its parent, that there is a single top-level node, and that the
// boundaries are packed as 1..2n. The parent of each node is taken from an
// ancestor stack driven by depth transitions. An empty tree is valid.
func (t *Tree) ValidateReport(ctx context.Context) (Report, error) {
	return t.ValidateWithProgress(ctx, nil)
}

// ValidateWithProgress is ValidateReport with a per-node callback, used to
// drive progress output on large trees.
func (t *Tree) ValidateWithProgress(ctx context.Context, progress func()) (Report, error) {
	rep := Report{Valid: true}
	seen := make(map[int64]int64)

	var (
		ancestors []TreeNode
		prev      *TreeNode
		minB      int64
		maxB      int64
	)

	err := t.Walk(ctx, nil, func(n TreeNode) error {
		rep.Nodes++
		if progress != nil {
			progress()
		}

		if n.Left >= n.Right {
			rep.add(n.ID, "lft %d is not below rgt %d", n.Left, n.Right)
		}
		for _, b := range [2]int64{n.Left, n.Right} {
			if owner, dup := seen[b]; dup {
				rep.add(n.ID, "boundary %d already used by node %d", b, owner)
				continue
			}
			if len(seen) == 0 || b < minB {
				minB = b
			}
			if len(seen) == 0 || b > maxB {
				maxB = b
			}
			seen[b] = n.ID
		}

		if prev != nil {
			switch {
			case n.Depth > prev.Depth:
				ancestors = append(ancestors, *prev)
			case n.Depth < prev.Depth:
				pop := prev.Depth - n.Depth
				if pop > len(ancestors) {
					pop = len(ancestors)
				}
				ancestors = ancestors[:len(ancestors)-pop]
			}
		}

		if len(ancestors) > 0 {
			parent := ancestors[len(ancestors)-1]
			if !parent.Contains(n.Node) {
				rep.add(n.ID, "interval [%d, %d] is not inside parent %d [%d, %d]",
					n.Left, n.Right, parent.ID, parent.Left, parent.Right)
			}
		} else if prev != nil {
			rep.add(n.ID, "second top-level node next to %d", prev.ID)
		}

		cur := n
		prev = &cur
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	if rep.Nodes > 0 {
		want := int64(2 * rep.Nodes)
		if minB != 1 || maxB != want || int64(len(seen)) != want {
			rep.add(0, "boundaries are not packed: expected 1..%d, found %d distinct values in %d..%d",
				want, len(seen), minB, maxB)
		}
	}
	return rep, nil
}
