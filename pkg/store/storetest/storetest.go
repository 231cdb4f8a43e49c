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

// Package storetest is the conformance suite every store.Backend runs. It
// drives nestedset.Tree end to end, so a backend passes only when its
// filters, ordering, bulk statements and rollback behave exactly like the
// tree algorithm expects.
package storetest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Table is the tree table the suite works on.
const Table = "tree_nodes"

// Factory returns an empty backend whose tree tables carry a text attribute
// column called "name".
type Factory func(t *testing.T) store.Backend

// Run executes the whole suite against backends produced by newBackend.
func Run(t *testing.T, newBackend Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b store.Backend)
	}{
		{"CreateRoot", testCreateRoot},
		{"InsertFirstChild", testInsertFirstChild},
		{"InsertPreconditions", testInsertPreconditions},
		{"InsertSubtree", testInsertSubtree},
		{"MoveAfterSibling", testMoveAfterSibling},
		{"MoveCases", testMoveCases},
		{"MoveRejected", testMoveRejected},
		{"Delete", testDelete},
		{"DeleteOverlapping", testDeleteOverlapping},
		{"InsertDeleteRoundTrip", testRoundTrip},
		{"Queries", testQueries},
		{"Scopes", testScopes},
		{"RandomOperations", testRandomOperations},
		{"ConcurrentWriters", testConcurrentWriters},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newBackend(t)
			require.NoError(t, b.EnsureTable(context.Background(), Table))
			tc.fn(t, b)
		})
	}
}

// Bounds maps the "name" attribute of every node to its [lft, rgt].
func Bounds(t *testing.T, tree *nestedset.Tree) map[string][2]int64 {
	t.Helper()
	nodes, err := tree.GetTree(context.Background(), nil)
	require.NoError(t, err)
	out := make(map[string][2]int64, len(nodes))
	for _, n := range nodes {
		out[Name(n.Node)] = [2]int64{n.Left, n.Right}
	}
	return out
}

// Name returns the "name" attribute of n as a string.
func Name(n nestedset.Node) string {
	switch v := n.Attrs["name"].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func named(name string) map[string]any {
	return map[string]any{"name": name}
}

// sample builds
//
//	R
//	├── A
//	│   ├── A1
//	│   └── A2
//	├── B
//	│   └── B1
//	└── C
//
// and returns the ids by name.
func sample(t *testing.T, tree *nestedset.Tree) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	ids := map[string]int64{}

	root, err := tree.CreateRoot(ctx, named("R"))
	require.NoError(t, err)
	ids["R"] = root

	steps := []struct {
		name string
		rel  nestedset.Relationship
		ref  string
	}{
		{"A", nestedset.FirstChildOf, "R"},
		{"B", nestedset.After, "A"},
		{"C", nestedset.After, "B"},
		{"A1", nestedset.FirstChildOf, "A"},
		{"A2", nestedset.After, "A1"},
		{"B1", nestedset.FirstChildOf, "B"},
	}
	for _, s := range steps {
		id, ok, err := tree.InsertNode(ctx, named(s.name), s.rel, ids[s.ref])
		require.NoError(t, err)
		require.True(t, ok, "insert %s", s.name)
		ids[s.name] = id
	}

	require.Equal(t, map[string][2]int64{
		"R": {1, 14}, "A": {2, 7}, "A1": {3, 4}, "A2": {5, 6},
		"B": {8, 11}, "B1": {9, 10}, "C": {12, 13},
	}, Bounds(t, tree))
	return ids
}

func requireValid(t *testing.T, tree *nestedset.Tree) {
	t.Helper()
	rep, err := tree.ValidateReport(context.Background())
	require.NoError(t, err)
	require.True(t, rep.Valid, "problems: %+v", rep.Problems)
}

func testCreateRoot(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)

	ok, err := tree.HasRoot(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	id, err := tree.CreateRoot(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	root, ok, err := tree.GetRootNode(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), root.Left)
	require.Equal(t, int64(2), root.Right)

	ok, err = tree.HasRoot(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = tree.CreateRoot(ctx, nil)
	require.ErrorIs(t, err, nestedset.ErrConflict)

	rootID, ok, err := tree.GetRootID(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, rootID)
}

func testInsertFirstChild(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)

	root, err := tree.CreateRoot(ctx, named("R"))
	require.NoError(t, err)

	id, ok, err := tree.InsertNode(ctx, named("A"), nestedset.FirstChildOf, root)
	require.NoError(t, err)
	require.True(t, ok)

	a, found, err := tree.GetNode(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "A", Name(a))
	require.Equal(t, [2]int64{2, 3}, [2]int64{a.Left, a.Right})

	r, _, err := tree.GetNode(ctx, root)
	require.NoError(t, err)
	require.Equal(t, [2]int64{1, 4}, [2]int64{r.Left, r.Right})
}

func testInsertPreconditions(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)

	_, err := tree.Insert(ctx, []nestedset.NodeInput{{Attrs: named("x")}}, nestedset.FirstChildOf, 1)
	require.ErrorIs(t, err, nestedset.ErrNoRoot)

	ids := sample(t, tree)
	before := Bounds(t, tree)

	_, _, err = tree.InsertNode(ctx, named("x"), nestedset.After, ids["R"])
	require.ErrorIs(t, err, nestedset.ErrSiblingOfRoot)

	_, _, err = tree.InsertNode(ctx, named("x"), nestedset.Relationship(0), ids["A"])
	require.ErrorIs(t, err, nestedset.ErrUnsupportedRelationship)

	id, ok, err := tree.InsertNode(ctx, named("x"), nestedset.FirstChildOf, 9999)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, id)

	require.Equal(t, before, Bounds(t, tree))
}

func testInsertSubtree(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)
	ids := sample(t, tree)

	spec := nestedset.NodeSpec{
		Attrs: named("D"),
		Children: []nestedset.NodeSpec{
			{Attrs: named("D1"), Children: []nestedset.NodeSpec{{Attrs: named("D11")}}},
			{Attrs: named("D2")},
		},
	}
	inserted, err := tree.Insert(ctx, nestedset.Flatten(spec), nestedset.After, ids["A"])
	require.NoError(t, err)
	require.Len(t, inserted, 4)

	got := Bounds(t, tree)
	require.Equal(t, [2]int64{8, 15}, got["D"])
	require.Equal(t, [2]int64{9, 12}, got["D1"])
	require.Equal(t, [2]int64{10, 11}, got["D11"])
	require.Equal(t, [2]int64{13, 14}, got["D2"])
	require.Equal(t, [2]int64{16, 19}, got["B"])
	require.Equal(t, [2]int64{1, 22}, got["R"])

	d, _, err := tree.GetNode(ctx, inserted[0])
	require.NoError(t, err)
	require.Equal(t, "D", Name(d))
	requireValid(t, tree)
}

func testMoveAfterSibling(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)

	root, err := tree.CreateRoot(ctx, named("R"))
	require.NoError(t, err)
	a, _, err := tree.InsertNode(ctx, named("A"), nestedset.FirstChildOf, root)
	require.NoError(t, err)
	bID, _, err := tree.InsertNode(ctx, named("B"), nestedset.After, a)
	require.NoError(t, err)
	require.Equal(t, map[string][2]int64{"R": {1, 6}, "A": {2, 3}, "B": {4, 5}}, Bounds(t, tree))

	moved, err := tree.Move(ctx, a, nestedset.After, bID)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, map[string][2]int64{"R": {1, 6}, "B": {2, 3}, "A": {4, 5}}, Bounds(t, tree))
}

func testMoveCases(t *testing.T, b store.Backend) {
	tests := []struct {
		name   string
		node   string
		rel    nestedset.Relationship
		target string
		want   map[string][2]int64
	}{
		{
			name: "target before node", node: "C", rel: nestedset.FirstChildOf, target: "A",
			want: map[string][2]int64{
				"R": {1, 14}, "A": {2, 9}, "C": {3, 4}, "A1": {5, 6}, "A2": {7, 8},
				"B": {10, 13}, "B1": {11, 12},
			},
		},
		{
			name: "target after node", node: "A", rel: nestedset.After, target: "B",
			want: map[string][2]int64{
				"R": {1, 14}, "B": {2, 5}, "B1": {3, 4}, "A": {6, 11}, "A1": {7, 8},
				"A2": {9, 10}, "C": {12, 13},
			},
		},
		{
			name: "target after node as first child", node: "A1", rel: nestedset.FirstChildOf, target: "C",
			want: map[string][2]int64{
				"R": {1, 14}, "A": {2, 5}, "A2": {3, 4}, "B": {6, 9}, "B1": {7, 8},
				"C": {10, 13}, "A1": {11, 12},
			},
		},
		{
			name: "target is a strict ancestor", node: "A2", rel: nestedset.FirstChildOf, target: "R",
			want: map[string][2]int64{
				"R": {1, 14}, "A2": {2, 3}, "A": {4, 7}, "A1": {5, 6},
				"B": {8, 11}, "B1": {9, 10}, "C": {12, 13},
			},
		},
		{
			name: "after own parent", node: "B1", rel: nestedset.After, target: "B",
			want: map[string][2]int64{
				"R": {1, 14}, "A": {2, 7}, "A1": {3, 4}, "A2": {5, 6},
				"B": {8, 9}, "B1": {10, 11}, "C": {12, 13},
			},
		},
		{
			name: "adjacent sibling swap", node: "A1", rel: nestedset.After, target: "A2",
			want: map[string][2]int64{
				"R": {1, 14}, "A": {2, 7}, "A2": {3, 4}, "A1": {5, 6},
				"B": {8, 11}, "B1": {9, 10}, "C": {12, 13},
			},
		},
		{
			name: "already in place", node: "B", rel: nestedset.After, target: "A",
			want: map[string][2]int64{
				"R": {1, 14}, "A": {2, 7}, "A1": {3, 4}, "A2": {5, 6},
				"B": {8, 11}, "B1": {9, 10}, "C": {12, 13},
			},
		},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Each case gets its own scope so they share the backend.
			tree := nestedset.New(b, Table, nestedset.WithScope(fmt.Sprintf("move-%d", i)))
			ids := sample(t, tree)

			moved, err := tree.Move(context.Background(), ids[tc.node], tc.rel, ids[tc.target])
			require.NoError(t, err)
			require.True(t, moved)
			require.Equal(t, tc.want, Bounds(t, tree))
			requireValid(t, tree)
		})
	}
}

func testMoveRejected(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)
	ids := sample(t, tree)
	before := Bounds(t, tree)

	tests := []struct {
		name   string
		node   int64
		rel    nestedset.Relationship
		target int64
		err    error
	}{
		{"self", ids["A"], nestedset.FirstChildOf, ids["A"], nestedset.ErrSelfMove},
		{"root", ids["R"], nestedset.FirstChildOf, ids["A"], nestedset.ErrRootImmovable},
		{"into own child", ids["A"], nestedset.FirstChildOf, ids["A1"], nestedset.ErrCyclicMove},
		{"after own child", ids["A"], nestedset.After, ids["A2"], nestedset.ErrCyclicMove},
		{"sibling of root", ids["A"], nestedset.After, ids["R"], nestedset.ErrSiblingOfRoot},
		{"missing node", 9999, nestedset.FirstChildOf, ids["A"], nestedset.ErrNodeNotFound},
		{"missing target", ids["A"], nestedset.FirstChildOf, 9999, nestedset.ErrNodeNotFound},
		{"bad relationship", ids["A"], nestedset.Relationship(7), ids["B"], nestedset.ErrUnsupportedRelationship},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			moved, err := tree.Move(ctx, tc.node, tc.rel, tc.target)
			require.ErrorIs(t, err, tc.err)
			require.False(t, moved)
			require.Equal(t, before, Bounds(t, tree))
		})
	}
}

func testDelete(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)
	ids := sample(t, tree)

	removed, err := tree.Delete(ctx, ids["A"])
	require.NoError(t, err)
	require.Equal(t, []int64{ids["A"], ids["A1"], ids["A2"]}, removed)
	require.Equal(t, map[string][2]int64{
		"R": {1, 8}, "B": {2, 5}, "B1": {3, 4}, "C": {6, 7},
	}, Bounds(t, tree))
	requireValid(t, tree)

	removed, err = tree.Delete(ctx, ids["A"])
	require.NoError(t, err)
	require.Empty(t, removed)

	_, found, err := tree.GetNode(ctx, ids["A1"])
	require.NoError(t, err)
	require.False(t, found)
}

func testDeleteOverlapping(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)
	ids := sample(t, tree)

	removed, err := tree.Delete(ctx, ids["A1"], ids["A"], ids["A2"], ids["A"], 9999, ids["B1"])
	require.NoError(t, err)
	require.Equal(t, []int64{ids["A1"], ids["A"], ids["A2"], ids["B1"]}, removed)
	require.Equal(t, map[string][2]int64{"R": {1, 6}, "B": {2, 3}, "C": {4, 5}}, Bounds(t, tree))
	requireValid(t, tree)
}

func testRoundTrip(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)
	ids := sample(t, tree)
	before := Bounds(t, tree)

	spec := nestedset.NodeSpec{
		Attrs:    named("X"),
		Children: []nestedset.NodeSpec{{Attrs: named("X1")}, {Attrs: named("X2")}},
	}
	inserted, err := tree.Insert(ctx, nestedset.Flatten(spec), nestedset.FirstChildOf, ids["B1"])
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	requireValid(t, tree)

	removed, err := tree.Delete(ctx, inserted[0])
	require.NoError(t, err)
	require.ElementsMatch(t, inserted, removed)
	require.Equal(t, before, Bounds(t, tree))
}

func testQueries(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table)

	nodes, err := tree.GetTree(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, nodes)
	requireValid(t, tree)

	ids := sample(t, tree)

	nodes, err = tree.GetTree(ctx, nil)
	require.NoError(t, err)
	var order []string
	var depths []int
	for _, n := range nodes {
		order = append(order, Name(n.Node))
		depths = append(depths, n.Depth)
	}
	require.Equal(t, []string{"R", "A", "A1", "A2", "B", "B1", "C"}, order)
	require.Equal(t, []int{0, 1, 2, 2, 1, 2, 1}, depths)

	aID := ids["A"]
	sub, err := tree.GetTree(ctx, &aID)
	require.NoError(t, err)
	require.Len(t, sub, 3)
	require.Equal(t, 1, sub[0].Depth)
	require.Equal(t, 2, sub[1].Depth)

	missing := int64(9999)
	none, err := tree.GetTree(ctx, &missing)
	require.NoError(t, err)
	require.Empty(t, none)

	children, err := tree.Children(ctx, ids["R"])
	require.NoError(t, err)
	var childNames []string
	for _, c := range children {
		childNames = append(childNames, Name(c))
	}
	require.Equal(t, []string{"A", "B", "C"}, childNames)

	ancestors, err := tree.Ancestors(ctx, ids["A1"])
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	require.Equal(t, ids["R"], ancestors[0].ID)
	require.Equal(t, ids["A"], ancestors[1].ID)

	parent, ok, err := tree.Parent(ctx, ids["B1"])
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ids["B"], parent.ID)

	_, ok, err = tree.Parent(ctx, ids["R"])
	require.NoError(t, err)
	require.False(t, ok)

	count, err := tree.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, count)

	a, _, err := tree.GetNode(ctx, ids["A"])
	require.NoError(t, err)
	require.Equal(t, int64(2), a.DescendantCount())
	require.False(t, a.IsLeaf())
}

func testScopes(t *testing.T, b store.Backend) {
	ctx := context.Background()
	x := nestedset.New(b, Table, nestedset.WithScope("x"))
	y := x.InScope("y")

	xIDs := sample(t, x)
	yRoot, err := y.CreateRoot(ctx, named("R"))
	require.NoError(t, err)
	_, _, err = y.InsertNode(ctx, named("Y"), nestedset.FirstChildOf, yRoot)
	require.NoError(t, err)

	require.Equal(t, map[string][2]int64{"R": {1, 4}, "Y": {2, 3}}, Bounds(t, y))

	_, err = x.Delete(ctx, xIDs["A"])
	require.NoError(t, err)
	_, err = x.Move(ctx, xIDs["C"], nestedset.FirstChildOf, xIDs["B"])
	require.NoError(t, err)

	require.Equal(t, map[string][2]int64{"R": {1, 4}, "Y": {2, 3}}, Bounds(t, y))
	requireValid(t, x)
	requireValid(t, y)

	// A node of another scope is invisible.
	_, found, err := y.GetNode(ctx, xIDs["B"])
	require.NoError(t, err)
	require.False(t, found)

	s, ok := y.Scope()
	require.True(t, ok)
	require.Equal(t, "y", s)
}

// model is an explicit parent/children tree the random test compares the
// nested-set encoding against.
type model struct {
	root     int64
	parent   map[int64]int64
	children map[int64][]int64
}

func (m *model) place(id int64, rel nestedset.Relationship, ref int64) {
	if rel == nestedset.FirstChildOf {
		m.parent[id] = ref
		m.children[ref] = append([]int64{id}, m.children[ref]...)
		return
	}
	p := m.parent[ref]
	m.parent[id] = p
	kids := m.children[p]
	out := make([]int64, 0, len(kids)+1)
	for _, k := range kids {
		out = append(out, k)
		if k == ref {
			out = append(out, id)
		}
	}
	m.children[p] = out
}

func (m *model) detach(id int64) {
	p := m.parent[id]
	kids := m.children[p]
	out := kids[:0:0]
	for _, k := range kids {
		if k != id {
			out = append(out, k)
		}
	}
	m.children[p] = out
	delete(m.parent, id)
}

func (m *model) subtree(id int64) []int64 {
	out := []int64{id}
	for _, c := range m.children[id] {
		out = append(out, m.subtree(c)...)
	}
	return out
}

func (m *model) preorder() ([]int64, []int) {
	var ids []int64
	var depths []int
	var walk func(id int64, depth int)
	walk = func(id int64, depth int) {
		ids = append(ids, id)
		depths = append(depths, depth)
		for _, c := range m.children[id] {
			walk(c, depth+1)
		}
	}
	walk(m.root, 0)
	return ids, depths
}

func (m *model) contains(ancestor, id int64) bool {
	for p, ok := m.parent[id]; ok; p, ok = m.parent[p] {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (m *model) nodes() []int64 {
	ids, _ := m.preorder()
	return ids
}

func testRandomOperations(t *testing.T, b store.Backend) {
	ctx := context.Background()
	tree := nestedset.New(b, Table, nestedset.WithScope("random"))
	rng := rand.New(rand.NewSource(42))

	root, err := tree.CreateRoot(ctx, named("root"))
	require.NoError(t, err)
	m := &model{root: root, parent: map[int64]int64{}, children: map[int64][]int64{}}

	pick := func() int64 {
		ids := m.nodes()
		return ids[rng.Intn(len(ids))]
	}
	rel := func() nestedset.Relationship {
		if rng.Intn(2) == 0 {
			return nestedset.FirstChildOf
		}
		return nestedset.After
	}

	for step := 0; step < 120; step++ {
		switch op := rng.Intn(10); {
		case op < 5:
			ref, r := pick(), rel()
			if r == nestedset.After && ref == root {
				r = nestedset.FirstChildOf
			}
			id, ok, err := tree.InsertNode(ctx, named(fmt.Sprintf("n%d", step)), r, ref)
			require.NoError(t, err)
			require.True(t, ok)
			m.place(id, r, ref)

		case op < 8:
			node, target, r := pick(), pick(), rel()
			moved, err := tree.Move(ctx, node, r, target)
			switch {
			case node == target:
				require.ErrorIs(t, err, nestedset.ErrSelfMove)
			case node == root:
				require.ErrorIs(t, err, nestedset.ErrRootImmovable)
			case m.contains(node, target):
				require.ErrorIs(t, err, nestedset.ErrCyclicMove)
			case r == nestedset.After && target == root:
				require.ErrorIs(t, err, nestedset.ErrSiblingOfRoot)
			default:
				require.NoError(t, err)
				require.True(t, moved)
				m.detach(node)
				m.place(node, r, target)
			}

		default:
			id := pick()
			if id == root {
				continue
			}
			want := m.subtree(id)
			removed, err := tree.Delete(ctx, id)
			require.NoError(t, err)
			require.ElementsMatch(t, want, removed)
			for _, gone := range want[1:] {
				delete(m.parent, gone)
				delete(m.children, gone)
			}
			m.detach(id)
			delete(m.children, id)
		}

		requireValid(t, tree)

		nodes, err := tree.GetTree(ctx, nil)
		require.NoError(t, err)
		wantIDs, wantDepths := m.preorder()
		gotIDs := make([]int64, len(nodes))
		gotDepths := make([]int, len(nodes))
		bounds := make([]int64, 0, 2*len(nodes))
		for i, n := range nodes {
			gotIDs[i], gotDepths[i] = n.ID, n.Depth
			bounds = append(bounds, n.Left, n.Right)
		}
		require.Equal(t, wantIDs, gotIDs, "step %d", step)
		require.Equal(t, wantDepths, gotDepths, "step %d", step)

		sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
		for i, v := range bounds {
			require.Equal(t, int64(i+1), v, "step %d: boundaries are not packed", step)
		}

		// Containment matches ancestry for every pair.
		for _, a := range nodes {
			for _, d := range nodes {
				if a.ID == d.ID {
					continue
				}
				require.Equal(t, m.contains(a.ID, d.ID), a.Contains(d.Node),
					"step %d: %d contains %d", step, a.ID, d.ID)
			}
		}
	}
}

// writer works only on its own branch below the root, so its preconditions
// never depend on the other writers while every statement still shifts the
// shared boundaries of the scope.
type writer struct {
	tree  *nestedset.Tree
	root  int64
	name  string
	steps int
	nodes int
}

// applied reports whether err left the operation committed. A retryable
// error that outlived the store's retries rolled the transaction back.
func applied(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case nestedset.IsRetryable(err):
		return false, nil
	default:
		return false, err
	}
}

func (w *writer) run(ctx context.Context) error {
	branch, _, err := w.tree.InsertNode(ctx, named(w.name), nestedset.FirstChildOf, w.root)
	if ok, err := applied(err); !ok {
		return err
	}
	w.nodes++

	for i := 0; i < w.steps; i++ {
		a, _, err := w.tree.InsertNode(ctx, named(fmt.Sprintf("%s-a%d", w.name, i)), nestedset.FirstChildOf, branch)
		if ok, err := applied(err); err != nil {
			return err
		} else if !ok {
			continue
		}
		w.nodes++

		b, _, err := w.tree.InsertNode(ctx, named(fmt.Sprintf("%s-b%d", w.name, i)), nestedset.After, a)
		if ok, err := applied(err); err != nil {
			return err
		} else if !ok {
			continue
		}
		w.nodes++

		if _, err := w.tree.Move(ctx, b, nestedset.FirstChildOf, a); err != nil {
			if _, err := applied(err); err != nil {
				return err
			}
		}

		if i%2 == 1 {
			removed, err := w.tree.Delete(ctx, a)
			if ok, err := applied(err); err != nil {
				return err
			} else if ok {
				w.nodes -= len(removed)
			}
		}
	}
	return nil
}

func requirePacked(t *testing.T, tree *nestedset.Tree, want int) {
	t.Helper()
	nodes, err := tree.GetTree(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, nodes, want)

	bounds := make([]int64, 0, 2*len(nodes))
	for _, n := range nodes {
		bounds = append(bounds, n.Left, n.Right)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })
	for i, v := range bounds {
		require.Equal(t, int64(i+1), v, "%s: boundaries are not packed", tree)
	}
}

// testConcurrentWriters runs several writers against one scope while others
// write to a second scope at the same time.
func testConcurrentWriters(t *testing.T, b store.Backend) {
	const (
		perScope = 4
		steps    = 6
	)
	ctx := context.Background()
	trees := []*nestedset.Tree{
		nestedset.New(b, Table, nestedset.WithScope("busy")),
		nestedset.New(b, Table, nestedset.WithScope("quiet")),
	}

	var writers []*writer
	for _, tree := range trees {
		root, err := tree.CreateRoot(ctx, named("root"))
		require.NoError(t, err)
		scope, _ := tree.Scope()
		for i := 0; i < perScope; i++ {
			writers = append(writers, &writer{
				tree:  tree,
				root:  root,
				name:  fmt.Sprintf("%s-w%d", scope, i),
				steps: steps,
			})
		}
	}

	var g errgroup.Group
	for _, w := range writers {
		g.Go(func() error { return w.run(ctx) })
	}
	require.NoError(t, g.Wait())

	for _, tree := range trees {
		want := 1
		for _, w := range writers {
			if w.tree == tree {
				want += w.nodes
			}
		}
		requireValid(t, tree)
		requirePacked(t, tree, want)

		count, err := tree.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, want, count)
	}
}
