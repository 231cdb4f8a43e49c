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

package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/store/storetest"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, Options{Attributes: map[string]string{"name": "text", "rank": "integer"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return open(t, filepath.Join(t.TempDir(), "tree.bolt"))
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "tree.bolt")

	s, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, s.EnsureTable(ctx, "menu"))
	tree := nestedset.New(s, "menu", nestedset.WithScope("main"))
	root, err := tree.CreateRoot(ctx, map[string]any{"name": "root", "rank": 7})
	require.NoError(t, err)
	_, _, err = tree.InsertNode(ctx, map[string]any{"name": "child"}, nestedset.FirstChildOf, root)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = open(t, path)
	tree = nestedset.New(s, "menu", nestedset.WithScope("main"))
	nodes, err := tree.GetTree(ctx, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, int64(7), nodes[0].Attrs["rank"])
	require.Equal(t, "child", nodes[1].Attrs["name"])
	require.Equal(t, "main", *nodes[1].Scope)
	require.Equal(t, [2]int64{2, 3}, [2]int64{nodes[1].Left, nodes[1].Right})
}

func TestRollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "tree.bolt"))
	require.NoError(t, s.EnsureTable(ctx, storetest.Table))
	tree := nestedset.New(s, storetest.Table)
	root, err := tree.CreateRoot(ctx, map[string]any{"name": "R"})
	require.NoError(t, err)

	_, _, err = tree.InsertNode(ctx, map[string]any{"colour": "red"}, nestedset.FirstChildOf, root)
	require.Error(t, err)

	node, ok, err := tree.GetNode(ctx, root)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), node.Left)
	require.Equal(t, int64(2), node.Right)

	n, err := tree.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMissingTable(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "tree.bolt"))
	_, err := nestedset.New(s, "nope").HasRoot(context.Background())
	require.Error(t, err)
	var se *nestedset.StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, store.OpSelectOne, se.Op)
}

func TestDropTable(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "tree.bolt"))
	require.NoError(t, s.EnsureTable(ctx, "t"))
	require.NoError(t, s.DropTable(ctx, "t"))
	require.NoError(t, s.DropTable(ctx, "t"))
}
