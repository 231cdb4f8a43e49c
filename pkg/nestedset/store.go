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

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/pgedge/mptt/pkg/nestedset Store,Tx

// Store is the transactional table store a Tree runs against.
//
// RunInTx runs fn inside one transaction and commits when fn returns nil;
// any error rolls everything back. Implementations must isolate concurrent
// transactions at least as strongly as serializable reads on the rows they
// touch. A store may call fn more than once when it retries a conflicting
// transaction, so fn must not leak state between attempts.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the minimal set of statements the tree algorithm issues. Backend
// failures are reported as *StoreError.
type Tx interface {
	// SelectOne returns the first row matching f, or ErrNodeNotFound.
	SelectOne(ctx context.Context, table string, f Filter) (Node, error)
	SelectMany(ctx context.Context, table string, f Filter, order OrderBy) ([]Node, error)
	// Insert stores n (its ID is ignored) and returns the generated id.
	Insert(ctx context.Context, table string, n Node) (int64, error)
	// BulkUpdate applies column = column + delta for every delta, to all
	// rows matching f, as one statement.
	BulkUpdate(ctx context.Context, table string, deltas []ColumnDelta, f Filter) (int64, error)
	BulkDelete(ctx context.Context, table string, f Filter) (int64, error)
}
