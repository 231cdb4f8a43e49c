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

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/taskstore"
)

type MoveTask struct {
	TreeTask

	NodeID       int64
	Relationship nestedset.Relationship
	Target       int64

	Moved bool
}

func NewMoveTask() *MoveTask {
	return &MoveTask{TreeTask: newTreeTask(taskstore.TaskTypeMove)}
}

func (t *MoveTask) Validate() error {
	if err := t.validateTree(); err != nil {
		return err
	}
	if !t.Relationship.Valid() {
		return fmt.Errorf("%w: %s", nestedset.ErrUnsupportedRelationship, t.Relationship)
	}
	if t.NodeID <= 0 || t.Target <= 0 {
		return fmt.Errorf("node and target ids must be positive")
	}
	return nil
}

func (t *MoveTask) ExecuteTask() error {
	taskCtx := map[string]any{
		"node":         t.NodeID,
		"relationship": t.Relationship.String(),
		"target":       t.Target,
	}
	return t.record("move", taskCtx, func() (map[string]any, error) {
		moved, err := t.Tree().Move(t.Ctx, t.NodeID, t.Relationship, t.Target)
		if err != nil {
			return nil, fmt.Errorf("move node %d in %s: %w", t.NodeID, t.Tree(), err)
		}
		t.Moved = moved
		return map[string]any{"moved": moved}, nil
	})
}
