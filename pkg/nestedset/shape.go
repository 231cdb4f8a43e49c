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
	"fmt"
	"sort"
)

// NodeSpec is a nested description of a subtree, as found in import files
// and API payloads.
type NodeSpec struct {
	Attrs    map[string]any `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Children []NodeSpec     `json:"children,omitempty" yaml:"children,omitempty"`
}

// Flatten converts spec into preorder NodeInputs with relative coordinates,
// ready for Tree.Insert.
func Flatten(spec NodeSpec) []NodeInput {
	var out []NodeInput
	var counter int64
	var walk func(s NodeSpec)
	walk = func(s NodeSpec) {
		counter++
		idx := len(out)
		out = append(out, NodeInput{Left: counter, Attrs: s.Attrs})
		for _, child := range s.Children {
			walk(child)
		}
		counter++
		out[idx].Right = counter
	}
	walk(spec)
	return out
}

// normalizeShape copies nodes, fills in leaf coordinates for a lone node and
// checks that the batch is a single well-formed subtree rooted at 1..2n.
func normalizeShape(nodes []NodeInput) ([]NodeInput, error) {
	out := make([]NodeInput, len(nodes))
	copy(out, nodes)
	if len(out) == 1 && out[0].Left == 0 && out[0].Right == 0 {
		out[0].Left, out[0].Right = 1, 2
	}

	n := int64(len(out))
	if out[0].Left != 1 || out[0].Right != 2*n {
		return nil, fmt.Errorf("%w: subtree root must span 1..%d, got %d..%d",
			ErrInvalidShape, 2*n, out[0].Left, out[0].Right)
	}

	bounds := make([]int64, 0, 2*n)
	for i, node := range out {
		if node.Left >= node.Right {
			return nil, fmt.Errorf("%w: node %d has lft %d >= rgt %d", ErrInvalidShape, i, node.Left, node.Right)
		}
		if i > 0 && !(out[0].Left < node.Left && node.Right < out[0].Right) {
			return nil, fmt.Errorf("%w: node %d lies outside the subtree root", ErrInvalidShape, i)
		}
		bounds = append(bounds, node.Left, node.Right)
	}

	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
	for i, b := range bounds {
		if b != int64(i+1) {
			return nil, fmt.Errorf("%w: boundaries must be exactly 1..%d", ErrInvalidShape, 2*n)
		}
	}

	// Intervals must nest; a partial overlap would survive the checks above.
	var stack []int64
	for i, node := range out {
		if i > 0 && node.Left <= out[i-1].Left {
			return nil, fmt.Errorf("%w: nodes must be listed in preorder", ErrInvalidShape)
		}
		for len(stack) > 0 && stack[len(stack)-1] < node.Left {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 && node.Right > stack[len(stack)-1] {
			return nil, fmt.Errorf("%w: node %d overlaps its parent", ErrInvalidShape, i)
		}
		stack = append(stack, node.Right)
	}
	return out, nil
}
