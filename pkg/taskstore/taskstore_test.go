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

package taskstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorderLifecycle(t *testing.T) {
	rec, err := NewRecorder(nil, filepath.Join(t.TempDir(), "tasks", "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	started := time.Now().Add(-time.Second)
	require.NoError(t, rec.Create(Record{
		TaskID:      "t-1",
		TaskType:    TaskTypeMove,
		Status:      StatusRunning,
		TreeTable:   "categories",
		Scope:       "shop-1",
		StartedAt:   started,
		TaskContext: map[string]any{"node_id": 4},
	}))

	require.NoError(t, rec.Update(Record{
		TaskID:      "t-1",
		Status:      StatusFailed,
		Error:       "a node cannot be moved into its own subtree",
		FinishedAt:  time.Now(),
		TimeTaken:   1.5,
		TaskContext: map[string]any{"node_id": 4},
	}))

	got, err := rec.Store().Get("t-1")
	require.NoError(t, err)
	require.Equal(t, TaskTypeMove, got.TaskType)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "categories", got.TreeTable)
	require.Equal(t, "shop-1", got.Scope)
	require.Contains(t, got.Error, "own subtree")
	require.Equal(t, float64(4), got.TaskContext["node_id"])
	require.InDelta(t, 1.5, got.TimeTaken, 0.0001)
	require.False(t, got.FinishedAt.IsZero())
}

func TestGetUnknownTask(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.Update(Record{TaskID: "missing", Status: StatusCompleted})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListFiltersByTable(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	base := time.Now()
	for i, table := range []string{"a", "b", "a"} {
		require.NoError(t, s.Create(Record{
			TaskID:    string(rune('x' + i)),
			TaskType:  TaskTypeValidate,
			Status:    StatusCompleted,
			TreeTable: table,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := s.List("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "z", all[0].TaskID)

	onlyA, err := s.List("a", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
}

func TestQueryAndPrune(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	old := time.Now().Add(-48 * time.Hour)
	recs := []Record{
		{TaskID: "1", TaskType: TaskTypeInsert, Status: StatusCompleted, TreeTable: "t", Scope: "books", StartedAt: old},
		{TaskID: "2", TaskType: TaskTypeMove, Status: StatusFailed, TreeTable: "t", StartedAt: old},
		{TaskID: "3", TaskType: TaskTypeValidate, Status: StatusRunning, TreeTable: "t", StartedAt: old},
		{TaskID: "4", TaskType: TaskTypeInsert, Status: StatusCompleted, TreeTable: "t", Scope: "books", StartedAt: time.Now()},
	}
	for _, r := range recs {
		require.NoError(t, s.Create(r))
	}

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"scope", Filter{Scope: "books"}, []string{"4", "1"}},
		{"global only", Filter{Scope: "-"}, []string{"2", "3"}},
		{"status any case", Filter{Status: "failed"}, []string{"2"}},
		{"type and scope", Filter{Type: TaskTypeInsert, Scope: "books", Limit: 1}, []string{"4"}},
		{"other table", Filter{Table: "u"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Query(tc.f)
			require.NoError(t, err)
			var ids []string
			for _, r := range got {
				ids = append(ids, r.TaskID)
			}
			require.ElementsMatch(t, tc.want, ids)
		})
	}

	n, err := s.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	left, err := s.List("t", 10)
	require.NoError(t, err)
	require.Len(t, left, 2)
}

func TestRecorderWithoutStoreIsNoop(t *testing.T) {
	var rec *Recorder
	require.NoError(t, rec.Create(Record{TaskID: "x"}))
	require.NoError(t, rec.Update(Record{TaskID: "x"}))
	require.NoError(t, rec.Close())
}

func TestCreateValidation(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tests := []struct {
		name string
		rec  Record
	}{
		{"missing id", Record{TaskType: TaskTypeInsert, Status: StatusPending, TreeTable: "t"}},
		{"missing type", Record{TaskID: "1", Status: StatusPending, TreeTable: "t"}},
		{"missing status", Record{TaskID: "1", TaskType: TaskTypeInsert, TreeTable: "t"}},
		{"missing table", Record{TaskID: "1", TaskType: TaskTypeInsert, Status: StatusPending}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, s.Create(tc.rec))
		})
	}
}
