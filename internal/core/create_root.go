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

type CreateRootTask struct {
	TreeTask

	Attrs map[string]any

	RootID int64
}

func NewCreateRootTask() *CreateRootTask {
	return &CreateRootTask{TreeTask: newTreeTask(taskstore.TaskTypeCreateRoot)}
}

func (t *CreateRootTask) Validate() error {
	return t.validateTree()
}

func (t *CreateRootTask) ExecuteTask() error {
	return t.record("create-root", map[string]any{"attrs": t.Attrs}, func() (map[string]any, error) {
		id, err := t.Tree().CreateRoot(t.Ctx, t.Attrs)
		if err != nil {
			return nil, fmt.Errorf("create root of %s: %w", t.Tree(), err)
		}
		t.RootID = id
		return map[string]any{"root_id": id}, nil
	})
}
