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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	scope := "s1"
	n := Node{ID: 7, Left: 4, Right: 9, Scope: &scope}
	global := Node{ID: 7, Left: 4, Right: 9}

	tests := []struct {
		name string
		f    Filter
		node Node
		want bool
	}{
		{"empty matches everything", nil, n, true},
		{"id eq", Filter{Eq(ColID, int64(7))}, n, true},
		{"id eq int", Filter{Eq(ColID, 7)}, n, true},
		{"id in", Filter{IDIn(1, 7, 9)}, n, true},
		{"id not in", Filter{IDIn(1, 2)}, n, false},
		{"lft gt", Filter{Gt(ColLeft, 3)}, n, true},
		{"lft gt boundary", Filter{Gt(ColLeft, 4)}, n, false},
		{"rgt lte", Filter{Lte(ColRight, 9)}, n, true},
		{"lft between inclusive", Filter{Between(ColLeft, 4, 9)}, n, true},
		{"lft outside between", Filter{Between(ColLeft, 5, 9)}, n, false},
		{"scope eq", Filter{Eq(ColScope, "s1")}, n, true},
		{"other scope", Filter{Eq(ColScope, "s2")}, n, false},
		{"scoped filter on global row", Filter{Eq(ColScope, "s1")}, global, false},
		{"conjunction", Filter{Eq(ColScope, "s1"), Gte(ColLeft, 4), Lt(ColRight, 10)}, n, true},
		{"conjunction fails", Filter{Eq(ColScope, "s1"), Lt(ColRight, 9)}, n, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.f.Match(tc.node))
		})
	}
}

func TestFilterAndDoesNotAlias(t *testing.T) {
	base := make(Filter, 1, 4)
	base[0] = Eq(ColScope, "s")
	a := base.And(Gt(ColLeft, 1))
	b := base.And(Gt(ColRight, 2))
	require.Equal(t, ColLeft, a[1].Column)
	require.Equal(t, ColRight, b[1].Column)
	require.Len(t, base, 1)
}

func TestNodeHelpers(t *testing.T) {
	scope := "s"
	n := Node{ID: 1, Left: 2, Right: 7, Scope: &scope, Attrs: map[string]any{"k": "v"}}
	require.Equal(t, int64(6), n.Width())
	require.Equal(t, int64(2), n.DescendantCount())
	require.False(t, n.IsLeaf())
	require.False(t, n.IsRoot())
	require.True(t, n.Contains(Node{Left: 3, Right: 4}))
	require.False(t, n.Contains(n))

	c := n.Clone()
	*c.Scope = "other"
	c.Attrs["k"] = "changed"
	require.Equal(t, "s", *n.Scope)
	require.Equal(t, "v", n.Attrs["k"])
}
