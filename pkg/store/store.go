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

// Package store holds the backends a nestedset.Tree can run against.
package store

import (
	"context"
	"sort"

	"github.com/pgedge/mptt/pkg/nestedset"
)

// Backend is a nestedset.Store that also owns the lifecycle of its tree
// tables.
type Backend interface {
	nestedset.Store
	// EnsureTable creates table (and its indexes) when it does not exist.
	EnsureTable(ctx context.Context, table string) error
	DropTable(ctx context.Context, table string) error
	Close() error
}

// Operation names used in StoreError.Op by every backend.
const (
	OpBegin      = "begin"
	OpCommit     = "commit"
	OpSelectOne  = "select_one"
	OpSelectMany = "select_many"
	OpInsert     = "insert"
	OpBulkUpdate = "bulk_update"
	OpBulkDelete = "bulk_delete"
	OpSchema     = "schema"
)

// SortNodes orders nodes in place the way an ORDER BY on order.Column
// would. Unknown columns sort by id.
func SortNodes(nodes []nestedset.Node, order nestedset.OrderBy) {
	key := func(n nestedset.Node) int64 {
		switch order.Column {
		case nestedset.ColLeft:
			return n.Left
		case nestedset.ColRight:
			return n.Right
		default:
			return n.ID
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		if order.Desc {
			return key(nodes[i]) > key(nodes[j])
		}
		return key(nodes[i]) < key(nodes[j])
	})
}
