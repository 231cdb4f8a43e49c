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

// Package core wraps each tree operation in a task: validated up front,
// executed against a store backend, and recorded in the task store.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/pgedge/mptt/pkg/types"
)

// TreeTask holds what every task needs to reach its tree and to record
// itself.
type TreeTask struct {
	types.Task
	types.TreeRef

	Backend store.Backend

	TaskStore     *taskstore.Store
	TaskStorePath string
	SkipDBUpdate  bool

	QuietMode bool
	Ctx       context.Context
}

func newTreeTask(taskType string) TreeTask {
	return TreeTask{
		Task: types.Task{
			TaskID:     uuid.NewString(),
			TaskType:   taskType,
			TaskStatus: taskstore.StatusPending,
		},
		Ctx: context.Background(),
	}
}

// Tree returns the nestedset handle for the task's table and scope.
func (t *TreeTask) Tree() *nestedset.Tree {
	tree := nestedset.New(t.Backend, t.Table)
	if t.Scope != nil {
		tree = tree.InScope(*t.Scope)
	}
	return tree
}

func (t *TreeTask) ScopeName() string {
	if t.Scope == nil {
		return ""
	}
	return *t.Scope
}

func (t *TreeTask) validateTree() error {
	if t.Backend == nil {
		return fmt.Errorf("no store backend configured")
	}
	if strings.TrimSpace(t.Table) == "" {
		return fmt.Errorf("tree table is required")
	}
	if t.Ctx == nil {
		t.Ctx = context.Background()
	}
	return nil
}

// record runs fn between a RUNNING and a final COMPLETED/FAILED entry in the
// task store. Task store problems are logged and never fail the task.
func (t *TreeTask) record(label string, taskCtx map[string]any, fn func() (map[string]any, error)) (err error) {
	startTime := time.Now()
	if strings.TrimSpace(t.TaskID) == "" {
		t.TaskID = uuid.NewString()
	}
	t.StartedAt = startTime
	t.TaskStatus = taskstore.StatusRunning

	var recorder *taskstore.Recorder
	if !t.SkipDBUpdate {
		rec, recErr := taskstore.NewRecorder(t.TaskStore, t.TaskStorePath)
		if recErr != nil {
			logger.Warn("%s: unable to initialise task store (%v)", label, recErr)
		} else {
			recorder = rec
			createErr := recorder.Create(taskstore.Record{
				TaskID:      t.TaskID,
				TaskType:    t.TaskType,
				Status:      taskstore.StatusRunning,
				TreeTable:   t.Table,
				Scope:       t.ScopeName(),
				StartedAt:   startTime,
				TaskContext: taskCtx,
			})
			if createErr != nil {
				logger.Warn("%s: unable to write initial task status (%v)", label, createErr)
			}
		}
	}

	defer func() {
		if recorder == nil {
			return
		}
		if closeErr := recorder.Close(); closeErr != nil {
			logger.Warn("%s: failed to close task store (%v)", label, closeErr)
		}
	}()

	result, err := fn()

	finishedAt := time.Now()
	t.FinishedAt = finishedAt
	t.TimeTaken = finishedAt.Sub(startTime).Seconds()
	t.TaskStatus = taskstore.StatusFailed
	if err == nil {
		t.TaskStatus = taskstore.StatusCompleted
	}

	if recorder != nil {
		if result == nil {
			result = map[string]any{}
		}
		for k, v := range taskCtx {
			if _, ok := result[k]; !ok {
				result[k] = v
			}
		}
		final := taskstore.Record{
			TaskID:      t.TaskID,
			Status:      t.TaskStatus,
			FinishedAt:  finishedAt,
			TimeTaken:   t.TimeTaken,
			TaskContext: result,
		}
		if err != nil {
			final.Error = err.Error()
		}
		if updateErr := recorder.Update(final); updateErr != nil {
			logger.Warn("%s: unable to update task status (%v)", label, updateErr)
		}
	}

	if err != nil {
		logger.Debug("%s on %s failed after %.3fs: %v", label, t.Tree(), t.TimeTaken, err)
	} else {
		logger.Debug("%s on %s finished in %.3fs", label, t.Tree(), t.TimeTaken)
	}
	return err
}
