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

package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/store/storetest"
	"github.com/stretchr/testify/require"
)

func factory(driver string) storetest.Factory {
	return func(t *testing.T) store.Backend {
		s, err := Open(filepath.Join(t.TempDir(), "tree.db"), Options{
			Driver:     driver,
			Attributes: map[string]string{"name": "TEXT"},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
}

func TestConformanceCgoDriver(t *testing.T) {
	storetest.Run(t, factory(DriverCgo))
}

func TestConformancePureGoDriver(t *testing.T) {
	storetest.Run(t, factory(DriverPureGo))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tree.db")
	opts := Options{Attributes: map[string]string{"name": "TEXT"}}

	s, err := Open(path, opts)
	require.NoError(t, err)
	require.NoError(t, s.EnsureTable(ctx, "cats"))
	tree := nestedset.New(s, "cats", nestedset.WithScope("shop"))
	root, err := tree.CreateRoot(ctx, map[string]any{"name": "root"})
	require.NoError(t, err)
	_, _, err = tree.InsertNode(ctx, map[string]any{"name": "child"}, nestedset.FirstChildOf, root)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	tree = nestedset.New(s, "cats", nestedset.WithScope("shop"))

	nodes, err := tree.GetTree(ctx, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, "child", nodes[1].Attrs["name"])
	require.Equal(t, "shop", *nodes[1].Scope)
}

func TestRollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := factory(DriverPureGo)(t)
	require.NoError(t, s.EnsureTable(ctx, storetest.Table))
	tree := nestedset.New(s, storetest.Table)
	_, err := tree.CreateRoot(ctx, map[string]any{"name": "R"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTx(ctx, func(ctx context.Context, tx nestedset.Tx) error {
		if _, err := tx.BulkUpdate(ctx, storetest.Table,
			[]nestedset.ColumnDelta{{Column: nestedset.ColRight, Delta: 10}}, nil); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	root, ok, err := tree.GetRootNode(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2), root.Right)
}

func TestUnknownAttributeIsRejected(t *testing.T) {
	ctx := context.Background()
	s := factory(DriverCgo)(t)
	require.NoError(t, s.EnsureTable(ctx, "t"))

	_, err := nestedset.New(s, "t").CreateRoot(ctx, map[string]any{"colour": "red"})
	require.ErrorContains(t, err, "unknown attribute")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), Options{Driver: "sqlite4"})
	require.Error(t, err)
}

// SQLite caps a statement at 32766 bind parameters, so the subtree here is
// larger than any id list the driver could accept.
func TestDeleteLargeSubtree(t *testing.T) {
	const size = 33000

	for _, driver := range []string{DriverCgo, DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := factory(driver)(t)
			require.NoError(t, s.EnsureTable(ctx, storetest.Table))
			tree := nestedset.New(s, storetest.Table, nestedset.WithScope("bulk"))

			root, err := tree.CreateRoot(ctx, map[string]any{"name": "R"})
			require.NoError(t, err)
			keep, _, err := tree.InsertNode(ctx, map[string]any{"name": "keep"}, nestedset.FirstChildOf, root)
			require.NoError(t, err)

			spec := nestedset.NodeSpec{Attrs: map[string]any{"name": "big"}}
			spec.Children = make([]nestedset.NodeSpec, size)
			for i := range spec.Children {
				spec.Children[i] = nestedset.NodeSpec{Attrs: map[string]any{"name": "leaf"}}
			}
			ids, err := tree.Insert(ctx, nestedset.Flatten(spec), nestedset.After, keep)
			require.NoError(t, err)
			require.Len(t, ids, size+1)

			removed, err := tree.Delete(ctx, ids[0])
			require.NoError(t, err)
			require.ElementsMatch(t, ids, removed)

			count, err := tree.Count(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, count)
			require.Equal(t, map[string][2]int64{"R": {1, 4}, "keep": {2, 3}}, storetest.Bounds(t, tree))
		})
	}
}
