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

import "context"

// GetNode looks up a node in the tree's scope.
func (t *Tree) GetNode(ctx context.Context, id int64) (Node, bool, error) {
	var node Node
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		node, err = t.lookup(ctx, tx, id)
		return err
	})
	if isNotFound(err) {
		return Node{}, false, nil
	}
	if err != nil {
		return Node{}, false, err
	}
	return node, true, nil
}

// Walk calls fn for every node of the subtree rooted at rootID (the whole
// scope when rootID is nil) in preorder, i.e. ascending lft. Depth is
// absolute: the scope root has depth 0 even when walking a subtree.
//
// The subtree is read as one snapshot in a single range scan and fn runs
// after that transaction has closed, so fn may call back into the tree;
// memory grows with the subtree size. Depth is the number of enclosing
// intervals, tracked with a stack of the open ancestors' rgt values. A
// missing rootID yields no calls. An error from fn stops the walk and is
// returned.
func (t *Tree) Walk(ctx context.Context, rootID *int64, fn func(TreeNode) error) error {
	var nodes []Node
	baseDepth := 0
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		filter := t.scoped()
		if rootID != nil {
			root, err := t.lookup(ctx, tx, *rootID)
			if err != nil {
				return err
			}
			ancestors, err := tx.SelectMany(ctx, t.table,
				t.scoped(Lt(ColLeft, root.Left), Gt(ColRight, root.Right)), OrderBy{})
			if err != nil {
				return err
			}
			baseDepth = len(ancestors)
			filter = filter.And(Between(ColLeft, root.Left, root.Right))
		}

		var err error
		nodes, err = tx.SelectMany(ctx, t.table, filter, OrderBy{Column: ColLeft})
		return err
	})
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var open []int64
	for _, n := range nodes {
		for len(open) > 0 && open[len(open)-1] < n.Left {
			open = open[:len(open)-1]
		}
		if err := fn(TreeNode{Node: n, Depth: baseDepth + len(open)}); err != nil {
			return err
		}
		open = append(open, n.Right)
	}
	return nil
}

// GetTree materialises Walk.
func (t *Tree) GetTree(ctx context.Context, rootID *int64) ([]TreeNode, error) {
	var out []TreeNode
	err := t.Walk(ctx, rootID, func(n TreeNode) error {
		out = append(out, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Children returns the direct children of id in sibling order.
func (t *Tree) Children(ctx context.Context, id int64) ([]Node, error) {
	var children []Node
	depth := -1
	err := t.Walk(ctx, &id, func(n TreeNode) error {
		if depth < 0 {
			depth = n.Depth
			return nil
		}
		if n.Depth == depth+1 {
			children = append(children, n.Node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// Ancestors returns the path from the scope root down to id's parent.
func (t *Tree) Ancestors(ctx context.Context, id int64) ([]Node, error) {
	var out []Node
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		node, err := t.lookup(ctx, tx, id)
		if err != nil {
			return err
		}
		out, err = tx.SelectMany(ctx, t.table,
			t.scoped(Lt(ColLeft, node.Left), Gt(ColRight, node.Right)),
			OrderBy{Column: ColLeft},
		)
		return err
	})
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Parent returns id's parent, or false for the root and for unknown ids.
func (t *Tree) Parent(ctx context.Context, id int64) (Node, bool, error) {
	ancestors, err := t.Ancestors(ctx, id)
	if err != nil || len(ancestors) == 0 {
		return Node{}, false, err
	}
	return ancestors[len(ancestors)-1], true, nil
}

// Count returns the number of nodes in the scope.
func (t *Tree) Count(ctx context.Context) (int, error) {
	var n int
	err := t.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		rows, err := tx.SelectMany(ctx, t.table, t.scoped(), OrderBy{})
		n = len(rows)
		return err
	})
	return n, err
}
