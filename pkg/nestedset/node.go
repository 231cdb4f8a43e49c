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

// Node is one row of a tree table.
type Node struct {
	ID    int64          `json:"id"`
	Left  int64          `json:"lft"`
	Right int64          `json:"rgt"`
	Scope *string        `json:"scope,omitempty"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// TreeNode is a Node annotated with its depth; the root has depth 0.
type TreeNode struct {
	Node
	Depth int `json:"depth"`
}

// NodeInput describes one node of a subtree to insert. Left and Right are
// relative coordinates inside the subtree being inserted; the subtree root is
// always at Left == 1. A lone input with zero coordinates is a leaf.
type NodeInput struct {
	Left  int64          `json:"lft,omitempty" yaml:"lft,omitempty"`
	Right int64          `json:"rgt,omitempty" yaml:"rgt,omitempty"`
	Attrs map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// Width is the number of boundary slots the node's subtree occupies.
func (n Node) Width() int64 {
	return n.Right - n.Left + 1
}

// IsRoot reports whether n sits at the top of its scope.
func (n Node) IsRoot() bool {
	return n.Left == 1
}

func (n Node) IsLeaf() bool {
	return n.Right == n.Left+1
}

// DescendantCount is derived from the interval alone.
func (n Node) DescendantCount() int64 {
	return (n.Right - n.Left - 1) / 2
}

// Contains reports whether o lies strictly inside n's interval.
func (n Node) Contains(o Node) bool {
	return n.Left < o.Left && o.Right < n.Right
}

// Clone returns a copy of n that shares no maps or pointers with it.
func (n Node) Clone() Node {
	out := n
	if n.Scope != nil {
		s := *n.Scope
		out.Scope = &s
	}
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}
