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

package nestedset_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/stretchr/testify/require"
)

func TestValidateCorruptTrees(t *testing.T) {
	tests := []struct {
		name   string
		nodes  [][2]int64
		valid  bool
		reason string
	}{
		{name: "empty", valid: true},
		{name: "root only", nodes: [][2]int64{{1, 2}}, valid: true},
		{name: "nested", nodes: [][2]int64{{1, 8}, {2, 5}, {3, 4}, {6, 7}}, valid: true},
		{name: "partial overlap", nodes: [][2]int64{{1, 8}, {2, 5}, {4, 7}, {3, 6}}, reason: "not inside parent"},
		{name: "unused boundary", nodes: [][2]int64{{1, 6}, {2, 3}}, reason: "not packed"},
		{name: "duplicate boundary", nodes: [][2]int64{{1, 6}, {2, 3}, {3, 5}}, reason: "already used"},
		{name: "two roots", nodes: [][2]int64{{1, 2}, {3, 4}}, reason: "second top-level"},
		{name: "inverted interval", nodes: [][2]int64{{1, 4}, {3, 2}}, reason: "not below"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tree, s := newTree(t)
			for i, b := range tc.nodes {
				s.Put(table, nestedset.Node{ID: int64(i + 1), Left: b[0], Right: b[1]})
			}

			rep, err := tree.ValidateReport(context.Background())
			require.NoError(t, err)
			require.Equal(t, tc.valid, rep.Valid, "%+v", rep.Problems)
			require.Equal(t, len(tc.nodes), rep.Nodes)
			if tc.valid {
				require.Empty(t, rep.Problems)
				return
			}
			var reasons []string
			for _, p := range rep.Problems {
				reasons = append(reasons, p.Reason)
			}
			require.NotEmpty(t, reasons)
			found := false
			for _, r := range reasons {
				if strings.Contains(r, tc.reason) {
					found = true
				}
			}
			require.True(t, found, "want %q in %v", tc.reason, reasons)

			ok, err := tree.Validate(context.Background())
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestValidateCapsProblems(t *testing.T) {
	tree, s := newTree(t)
	for i := int64(0); i < 60; i++ {
		s.Put(table, nestedset.Node{ID: i + 1, Left: 2*i + 1, Right: 2*i + 2})
	}

	var calls int
	rep, err := tree.ValidateWithProgress(context.Background(), func() { calls++ })
	require.NoError(t, err)
	require.False(t, rep.Valid)
	require.Equal(t, 60, rep.Nodes)
	require.Equal(t, 60, calls)
	require.Len(t, rep.Problems, 50)
	require.True(t, rep.Truncated)
}
