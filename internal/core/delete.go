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

package core

import (
	"fmt"

	"github.com/pgedge/mptt/pkg/taskstore"
)

// DeleteTask removes the given nodes with their subtrees. Deleted lists every
// removed id, descendants included.
type DeleteTask struct {
	TreeTask

	IDs []int64

	Deleted []int64
}

func NewDeleteTask() *DeleteTask {
	return &DeleteTask{TreeTask: newTreeTask(taskstore.TaskTypeDelete)}
}

func (t *DeleteTask) Validate() error {
	if err := t.validateTree(); err != nil {
		return err
	}
	if len(t.IDs) == 0 {
		return fmt.Errorf("at least one node id is required")
	}
	return nil
}

func (t *DeleteTask) ExecuteTask() error {
	return t.record("delete", map[string]any{"ids": t.IDs}, func() (map[string]any, error) {
		deleted, err := t.Tree().Delete(t.Ctx, t.IDs...)
		if err != nil {
			return nil, fmt.Errorf("delete from %s: %w", t.Tree(), err)
		}
		t.Deleted = deleted
		return map[string]any{"deleted": deleted}, nil
	})
}
