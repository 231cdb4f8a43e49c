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

package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pgedge/mptt/internal/core"
	"github.com/pgedge/mptt/pkg/common"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/types"
)

func treeArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("table",
			mcp.Description("Tree table; defaults to the configured store table"),
		),
		mcp.WithString("scope",
			mcp.Description("Scope of the tree inside the table; defaults to the configured store scope, or the global tree"),
		),
	}
}

func newTool(name, description string, opts ...mcp.ToolOption) mcp.Tool {
	all := append([]mcp.ToolOption{mcp.WithDescription(description)}, treeArgs()...)
	return mcp.NewTool(name, append(all, opts...)...)
}

// bind fills the tree reference of t from the request.
func (d Deps) bind(ctx context.Context, t *core.TreeTask, req mcp.CallToolRequest) {
	t.Table = req.GetString("table", d.Table)
	if scope, ok := req.GetArguments()["scope"].(string); ok {
		t.Scope = &scope
	} else if d.Scope != "" {
		scope := d.Scope
		t.Scope = &scope
	}
	t.Backend = d.Backend
	t.TaskStore = d.Tasks
	t.QuietMode = true
	t.Ctx = ctx
}

func intArg(req mcp.CallToolRequest, key string) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return 0
	}
	return int64(v)
}

func relationshipArg(req mcp.CallToolRequest, def nestedset.Relationship) (nestedset.Relationship, error) {
	raw := req.GetString("relationship", "")
	if raw == "" {
		return def, nil
	}
	return nestedset.ParseRelationship(raw)
}

func attrsArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	attrs, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'%s' must be an object", key)
	}
	return attrs, nil
}

// toolError renders err for the model. Tree errors are expected outcomes,
// so they are results rather than protocol errors.
func toolError(action string, err error) *mcp.CallToolResult {
	hint := ""
	switch {
	case errors.Is(err, nestedset.ErrNodeNotFound):
		hint = " Use tree_show to list node ids."
	case nestedset.IsRetryable(err):
		hint = " The store was busy; retrying may succeed."
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v.%s", action, err, hint))
}

func run(action string, t interface {
	Validate() error
	ExecuteTask() error
}) *mcp.CallToolResult {
	if err := t.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid %s request: %v", action, err))
	}
	if err := t.ExecuteTask(); err != nil {
		return toolError(action, err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

type CreateRootTool struct{ deps Deps }

func (t *CreateRootTool) Definition() mcp.Tool {
	return newTool("tree_create_root",
		"Create the root node of an empty tree. Fails if the tree already has a root.",
		mcp.WithObject("attrs", mcp.Description("Attribute values of the root node")),
	)
}

func (t *CreateRootTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	attrs, err := attrsArg(req, "attrs")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task := core.NewCreateRootTask()
	t.deps.bind(ctx, &task.TreeTask, req)
	task.Attrs = attrs
	if res := run("create root", task); res != nil {
		return res, nil
	}
	return jsonResult(types.TaskResponse{TaskID: task.TaskID, Status: task.TaskStatus, IDs: []int64{task.RootID}})
}

type InsertTool struct{ deps Deps }

func (t *InsertTool) Definition() mcp.Tool {
	return newTool("tree_insert",
		"Insert a node, or a nested subtree, relative to an existing reference node. "+
			"relationship is 'first-child-of' (default) or 'after' (next sibling).",
		mcp.WithNumber("reference", mcp.Required(), mcp.Description("Id of the reference node")),
		mcp.WithString("relationship", mcp.Enum("first-child-of", "after")),
		mcp.WithObject("attrs", mcp.Description("Attributes of a single new node")),
		mcp.WithObject("subtree", mcp.Description(
			"Nested subtree to insert instead of a single node: {\"attrs\": {...}, \"children\": [...]}")),
	)
}

func (t *InsertTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rel, err := relationshipArg(req, nestedset.FirstChildOf)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	attrs, err := attrsArg(req, "attrs")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task := core.NewInsertTask()
	if raw, ok := req.GetArguments()["subtree"]; ok && raw != nil {
		var spec nestedset.NodeSpec
		data, _ := json.Marshal(raw)
		if err := json.Unmarshal(data, &spec); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'subtree' is malformed: %v", err)), nil
		}
		task = core.NewImportTask()
		task.Subtree = &spec
	}
	t.deps.bind(ctx, &task.TreeTask, req)
	task.Relationship = rel
	task.Reference = intArg(req, "reference")
	task.Attrs = attrs
	if res := run("insert", task); res != nil {
		return res, nil
	}
	return jsonResult(types.TaskResponse{TaskID: task.TaskID, Status: task.TaskStatus, IDs: task.IDs})
}

type MoveTool struct{ deps Deps }

func (t *MoveTool) Definition() mcp.Tool {
	return newTool("tree_move",
		"Move a node and its subtree relative to a target node. The root cannot be moved "+
			"and a node cannot be moved into its own subtree.",
		mcp.WithNumber("node", mcp.Required(), mcp.Description("Id of the node to move")),
		mcp.WithNumber("target", mcp.Required(), mcp.Description("Id of the target node")),
		mcp.WithString("relationship", mcp.Enum("first-child-of", "after")),
	)
}

func (t *MoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rel, err := relationshipArg(req, nestedset.FirstChildOf)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task := core.NewMoveTask()
	t.deps.bind(ctx, &task.TreeTask, req)
	task.NodeID = intArg(req, "node")
	task.Target = intArg(req, "target")
	task.Relationship = rel
	if res := run("move", task); res != nil {
		return res, nil
	}
	moved := task.Moved
	return jsonResult(types.TaskResponse{TaskID: task.TaskID, Status: task.TaskStatus, Moved: &moved})
}

type DeleteTool struct{ deps Deps }

func (t *DeleteTool) Definition() mcp.Tool {
	return newTool("tree_delete",
		"Delete nodes together with all of their descendants.",
		mcp.WithString("ids", mcp.Required(), mcp.Description("Comma separated node ids, e.g. \"4,7\"")),
	)
}

func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := common.ParseIDs(req.GetString("ids", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task := core.NewDeleteTask()
	t.deps.bind(ctx, &task.TreeTask, req)
	task.IDs = ids
	if res := run("delete", task); res != nil {
		return res, nil
	}
	return jsonResult(types.TaskResponse{TaskID: task.TaskID, Status: task.TaskStatus, IDs: task.Deleted})
}

type ShowTool struct{ deps Deps }

func (t *ShowTool) Definition() mcp.Tool {
	return newTool("tree_show",
		"Show a tree, or the subtree under one node, as an indented outline with node ids and bounds.",
		mcp.WithNumber("root", mcp.Description("Only show the subtree under this node")),
		mcp.WithString("label", mcp.Description("Attribute to print next to each node; all attributes when omitted")),
	)
}

func (t *ShowTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ref core.TreeTask
	t.deps.bind(ctx, &ref, req)
	if strings.TrimSpace(ref.Table) == "" {
		return mcp.NewToolResultError("'table' is required"), nil
	}
	var rootID *int64
	if id := intArg(req, "root"); id > 0 {
		rootID = &id
	}
	nodes, err := ref.Tree().GetTree(ctx, rootID)
	if err != nil {
		return toolError("show", err), nil
	}
	if rootID != nil && len(nodes) == 0 {
		return toolError("show", fmt.Errorf("node %d: %w", *rootID, nestedset.ErrNodeNotFound)), nil
	}
	return mcp.NewToolResultText(common.RenderTree(nodes, req.GetString("label", ""))), nil
}

type ValidateTool struct{ deps Deps }

func (t *ValidateTool) Definition() mcp.Tool {
	return newTool("tree_validate",
		"Check that a tree satisfies every nested-set invariant and list the problems found. Nothing is repaired.",
	)
}

func (t *ValidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task := core.NewValidateTask()
	t.deps.bind(ctx, &task.TreeTask, req)
	if res := run("validate", task); res != nil {
		return res, nil
	}
	return jsonResult(types.ValidateResponse{
		TreeRef: task.TreeRef,
		TaskID:  task.TaskID,
		Report:  task.Reports[task.ScopeName()],
	})
}
