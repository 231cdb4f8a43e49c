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

package cdc

import (
	"testing"

	"github.com/jackc/pglogrepl"
	"github.com/stretchr/testify/require"
)

func relation(id uint32, schema, table string) *pglogrepl.RelationMessage {
	return &pglogrepl.RelationMessage{
		RelationID:   id,
		Namespace:    schema,
		RelationName: table,
		ColumnNum:    5,
		Columns: []*pglogrepl.RelationMessageColumn{
			{Name: "id"}, {Name: "lft"}, {Name: "rgt"}, {Name: "scope"}, {Name: "name"},
		},
	}
}

func text(s string) *pglogrepl.TupleDataColumn {
	return &pglogrepl.TupleDataColumn{DataType: pglogrepl.TupleDataTypeText, Length: uint32(len(s)), Data: []byte(s)}
}

func null() *pglogrepl.TupleDataColumn {
	return &pglogrepl.TupleDataColumn{DataType: pglogrepl.TupleDataTypeNull}
}

func tuple(id string, scope *pglogrepl.TupleDataColumn) *pglogrepl.TupleData {
	return &pglogrepl.TupleData{
		ColumnNum: 5,
		Columns:   []*pglogrepl.TupleDataColumn{text(id), text("1"), text("2"), scope, text("x")},
	}
}

func feed(t *testing.T, tr *tracker, msgs ...pglogrepl.Message) []*Batch {
	t.Helper()
	var out []*Batch
	for _, m := range msgs {
		b, err := tr.handle(m)
		require.NoError(t, err)
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func TestTrackerCollectsScopes(t *testing.T) {
	tr := newTracker("tree_nodes")
	batches := feed(t, tr,
		relation(10, "public", "tree_nodes"),
		relation(11, "public", "other"),
		&pglogrepl.BeginMessage{Xid: 7},
		&pglogrepl.InsertMessage{RelationID: 10, Tuple: tuple("1", text("music"))},
		&pglogrepl.UpdateMessage{RelationID: 10, NewTuple: tuple("2", null()), OldTuple: tuple("2", null())},
		&pglogrepl.DeleteMessage{RelationID: 10, OldTuple: tuple("3", text("books"))},
		&pglogrepl.InsertMessage{RelationID: 11, Tuple: tuple("9", text("ignored"))},
		&pglogrepl.CommitMessage{TransactionEndLSN: 0x100},
	)
	require.Len(t, batches, 1)

	b := batches[0]
	require.EqualValues(t, 7, b.XID)
	require.Equal(t, pglogrepl.LSN(0x100), b.LSN)
	require.Len(t, b.Changes, 4)
	require.Equal(t, Change{Op: OpInsert, ID: 1, Scope: ptr("music")}, b.Changes[0])
	require.Equal(t, OpDelete, b.Changes[3].Op)

	scopes := b.Scopes()
	require.Len(t, scopes, 3)
	require.Nil(t, scopes[0])
	require.Equal(t, "books", *scopes[1])
	require.Equal(t, "music", *scopes[2])
}

func TestTrackerSkipsUnrelatedTransactions(t *testing.T) {
	tr := newTracker("catalog.categories")
	batches := feed(t, tr,
		relation(1, "public", "categories"),
		relation(2, "catalog", "categories"),
		&pglogrepl.BeginMessage{Xid: 1},
		&pglogrepl.InsertMessage{RelationID: 1, Tuple: tuple("1", null())},
		&pglogrepl.CommitMessage{TransactionEndLSN: 0x10},
		&pglogrepl.BeginMessage{Xid: 2},
		&pglogrepl.TruncateMessage{RelationNum: 1, RelationIDs: []uint32{2}},
		&pglogrepl.CommitMessage{TransactionEndLSN: 0x20},
	)
	require.Len(t, batches, 1)
	require.EqualValues(t, 2, batches[0].XID)
	require.True(t, batches[0].Truncated)
	require.Empty(t, batches[0].Scopes())
}

func TestTrackerProtocolErrors(t *testing.T) {
	tr := newTracker("tree_nodes")
	_, err := tr.handle(&pglogrepl.CommitMessage{})
	require.Error(t, err)

	feed(t, tr, relation(1, "public", "tree_nodes"))
	_, err = tr.handle(&pglogrepl.InsertMessage{RelationID: 1, Tuple: tuple("1", null())})
	require.Error(t, err)

	feed(t, tr, &pglogrepl.BeginMessage{Xid: 3})
	_, err = tr.handle(&pglogrepl.InsertMessage{RelationID: 1, Tuple: tuple("nope", null())})
	require.ErrorContains(t, err, "decode id")
}

func ptr(s string) *string { return &s }
