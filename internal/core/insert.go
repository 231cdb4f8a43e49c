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
	"os"
	"strings"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/taskstore"
	"gopkg.in/yaml.v3"
)

// InsertTask places one leaf (Attrs) or a whole subtree (Subtree, or the
// contents of SubtreeFile) relative to Reference.
type InsertTask struct {
	TreeTask

	Relationship nestedset.Relationship
	Reference    int64
	Attrs        map[string]any
	Subtree      *nestedset.NodeSpec
	SubtreeFile  string

	IDs []int64
}

func NewInsertTask() *InsertTask {
	return &InsertTask{
		TreeTask:     newTreeTask(taskstore.TaskTypeInsert),
		Relationship: nestedset.FirstChildOf,
	}
}

// NewImportTask is an InsertTask that reads its subtree from a YAML or JSON
// file.
func NewImportTask() *InsertTask {
	t := NewInsertTask()
	t.TaskType = taskstore.TaskTypeImport
	return t
}

func (t *InsertTask) Validate() error {
	if err := t.validateTree(); err != nil {
		return err
	}
	if !t.Relationship.Valid() {
		return fmt.Errorf("%w: %s", nestedset.ErrUnsupportedRelationship, t.Relationship)
	}
	if t.Reference <= 0 {
		return fmt.Errorf("reference node id must be positive, got %d", t.Reference)
	}
	if strings.TrimSpace(t.SubtreeFile) != "" {
		if t.Subtree != nil {
			return fmt.Errorf("subtree and subtree file are mutually exclusive")
		}
		spec, err := LoadSubtree(t.SubtreeFile)
		if err != nil {
			return err
		}
		t.Subtree = spec
	}
	if t.Subtree != nil && len(t.Attrs) > 0 {
		return fmt.Errorf("attributes and subtree are mutually exclusive")
	}
	return nil
}

func (t *InsertTask) ExecuteTask() error {
	taskCtx := map[string]any{
		"relationship": t.Relationship.String(),
		"reference":    t.Reference,
	}
	if t.SubtreeFile != "" {
		taskCtx["subtree_file"] = t.SubtreeFile
	}
	return t.record("insert", taskCtx, func() (map[string]any, error) {
		nodes := []nestedset.NodeInput{{Attrs: t.Attrs}}
		if t.Subtree != nil {
			nodes = nestedset.Flatten(*t.Subtree)
		}
		ids, err := t.Tree().Insert(t.Ctx, nodes, t.Relationship, t.Reference)
		if err != nil {
			return nil, fmt.Errorf("insert into %s: %w", t.Tree(), err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("reference node %d: %w", t.Reference, nestedset.ErrNodeNotFound)
		}
		t.IDs = ids
		return map[string]any{"ids": ids}, nil
	})
}

// LoadSubtree reads a nested subtree description. JSON is accepted too, being
// a subset of YAML.
func LoadSubtree(path string) (*nestedset.NodeSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtree file: %w", err)
	}
	var spec nestedset.NodeSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse subtree file %s: %w", path, err)
	}
	if len(spec.Attrs) == 0 && len(spec.Children) == 0 {
		return nil, fmt.Errorf("subtree file %s describes no node", path)
	}
	return &spec, nil
}
