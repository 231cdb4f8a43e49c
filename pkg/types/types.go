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

package types

import (
	"time"

	"github.com/pgedge/mptt/pkg/nestedset"
)

// Task is the bookkeeping every tree operation carries.
type Task struct {
	TaskID      string
	TaskType    string
	TaskStatus  string
	TaskContext string
	StartedAt   time.Time
	FinishedAt  time.Time
	TimeTaken   float64
}

// TreeRef names one tree: a table and, optionally, a scope inside it. A nil
// Scope addresses the whole table as a single global tree.
type TreeRef struct {
	Table string  `json:"table"`
	Scope *string `json:"scope,omitempty"`
}

type CreateRootRequest struct {
	Attrs map[string]any `json:"attrs,omitempty"`
}

// InsertRequest places either a single node (Attrs) or a whole subtree
// (Subtree) relative to Reference.
type InsertRequest struct {
	Relationship nestedset.Relationship `json:"relationship,omitempty"`
	Reference    int64                  `json:"reference"`
	Attrs        map[string]any         `json:"attrs,omitempty"`
	Subtree      *nestedset.NodeSpec    `json:"subtree,omitempty"`
}

type MoveRequest struct {
	Relationship nestedset.Relationship `json:"relationship,omitempty"`
	Target       int64                  `json:"target"`
}

type DeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// TaskResponse is returned by every mutating call.
type TaskResponse struct {
	TaskID string  `json:"task_id"`
	Status string  `json:"status"`
	IDs    []int64 `json:"ids,omitempty"`
	Moved  *bool   `json:"moved,omitempty"`
}

type TreeResponse struct {
	TreeRef
	Nodes []nestedset.TreeNode `json:"nodes"`
}

type ValidateResponse struct {
	TreeRef
	TaskID string           `json:"task_id,omitempty"`
	Report nestedset.Report `json:"report"`
}

type TaskStatusResponse struct {
	TaskID      string         `json:"task_id"`
	TaskType    string         `json:"task_type"`
	Status      string         `json:"status"`
	TreeTable   string         `json:"tree_table"`
	Scope       string         `json:"scope,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	TimeTaken   float64        `json:"time_taken,omitempty"`
	TaskContext map[string]any `json:"task_context,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
