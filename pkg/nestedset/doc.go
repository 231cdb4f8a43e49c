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

// Package nestedset maintains a tree inside a flat table using the nested-set
// (modified preorder tree traversal) encoding.
//
// Every node carries a pair of boundaries, lft and rgt. A node B is a
// descendant of A exactly when A.lft < B.lft and B.rgt < A.rgt, so ancestry,
// sibling order and subtree membership are answered with integer comparisons.
// Per scope, the boundaries of all nodes form the contiguous run 1..2n.
//
// Mutations never rewrite the tree row by row. Each one is expressed as a few
// bulk shifts of the form
//
//	col = col + delta WHERE col > threshold [AND scope = s]
//
// issued through a Store inside a single transaction, followed by row inserts
// or deletes where needed. The Store is the only shared resource; two trees
// with different scopes never touch the same rows.
package nestedset
