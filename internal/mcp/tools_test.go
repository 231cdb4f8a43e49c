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
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pgedge/mptt/pkg/store/memstore"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/pgedge/mptt/pkg/types"
	"github.com/stretchr/testify/require"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	tasks, err := taskstore.New(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tasks.Close() })
	return Deps{Backend: memstore.New(), Tasks: tasks, Table: "categories"}
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func call(t *testing.T, tool Tool, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := tool.Handle(context.Background(), makeReq(args))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func callOK[T any](t *testing.T, tool Tool, args map[string]any) T {
	t.Helper()
	res := call(t, tool, args)
	require.False(t, res.IsError, resultText(res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &out))
	return out
}

func TestDefinitions(t *testing.T) {
	want := []string{"tree_create_root", "tree_insert", "tree_move", "tree_delete", "tree_show", "tree_validate"}
	var got []string
	for _, tool := range Tools(newDeps(t)) {
		def := tool.Definition()
		got = append(got, def.Name)
		require.NotEmpty(t, def.Description)
		require.Contains(t, def.InputSchema.Properties, "table")
		require.Contains(t, def.InputSchema.Properties, "scope")
	}
	require.Equal(t, want, got)

	insert := (&InsertTool{}).Definition()
	require.Contains(t, insert.InputSchema.Required, "reference")

	require.NotNil(t, New(newDeps(t)))
}

func TestToolsRoundTrip(t *testing.T) {
	deps := newDeps(t)

	root := callOK[types.TaskResponse](t, &CreateRootTool{deps}, map[string]any{
		"attrs": map[string]any{"name": "root"},
	}).IDs[0]

	ids := callOK[types.TaskResponse](t, &InsertTool{deps}, map[string]any{
		"reference": float64(root),
		"subtree": map[string]any{
			"attrs":    map[string]any{"name": "fiction"},
			"children": []any{map[string]any{"attrs": map[string]any{"name": "crime"}}},
		},
	}).IDs
	require.Len(t, ids, 2)

	poetry := callOK[types.TaskResponse](t, &InsertTool{deps}, map[string]any{
		"reference":    float64(ids[0]),
		"relationship": "after",
		"attrs":        map[string]any{"name": "poetry"},
	}).IDs[0]

	moved := callOK[types.TaskResponse](t, &MoveTool{deps}, map[string]any{
		"node":   float64(poetry),
		"target": float64(root),
	}).Moved
	require.True(t, *moved)

	res := call(t, &ShowTool{deps}, map[string]any{"label": "name"})
	require.False(t, res.IsError, resultText(res))
	out := resultText(res)
	require.True(t, strings.HasPrefix(out, "#1 [1, 8] root"), out)
	require.Less(t, strings.Index(out, "poetry"), strings.Index(out, "fiction"))

	deleted := callOK[types.TaskResponse](t, &DeleteTool{deps}, map[string]any{
		"ids": strconv.FormatInt(ids[0], 10),
	}).IDs
	require.ElementsMatch(t, ids, deleted)

	report := callOK[types.ValidateResponse](t, &ValidateTool{deps}, nil)
	require.True(t, report.Report.Valid)
	require.Equal(t, 2, report.Report.Nodes)

	rec, err := deps.Tasks.Get(report.TaskID)
	require.NoError(t, err)
	require.Equal(t, taskstore.StatusCompleted, rec.Status)
}

func TestToolErrors(t *testing.T) {
	deps := newDeps(t)
	root := callOK[types.TaskResponse](t, &CreateRootTool{deps}, nil).IDs[0]

	tests := []struct {
		name string
		tool Tool
		args map[string]any
		want string
	}{
		{"second root", &CreateRootTool{deps}, nil, "already has a root"},
		{"bad attrs", &CreateRootTool{deps}, map[string]any{"attrs": "x"}, "must be an object"},
		{"missing reference", &InsertTool{deps}, map[string]any{"reference": float64(42)}, "tree_show"},
		{"bad relationship", &InsertTool{deps}, map[string]any{"reference": float64(root), "relationship": "below"}, "unsupported relationship"},
		{"move root", &MoveTool{deps}, map[string]any{"node": float64(root), "target": float64(root)}, "move failed"},
		{"bad ids", &DeleteTool{deps}, map[string]any{"ids": "a,b"}, "invalid node id"},
		{"empty ids", &DeleteTool{deps}, map[string]any{"ids": ""}, "invalid delete request"},
		{"show missing subtree", &ShowTool{deps}, map[string]any{"root": float64(99)}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, tt.tool, tt.args)
			require.True(t, res.IsError)
			require.Contains(t, resultText(res), tt.want)
		})
	}
}

func TestScopeArgument(t *testing.T) {
	deps := newDeps(t)
	for _, scope := range []string{"a", "b"} {
		callOK[types.TaskResponse](t, &CreateRootTool{deps}, map[string]any{"scope": scope})
	}
	res := call(t, &ShowTool{deps}, map[string]any{"scope": "b"})
	require.False(t, res.IsError)
	require.Equal(t, 1, strings.Count(resultText(res), "#"))
}

func TestConfiguredScopeIsDefault(t *testing.T) {
	deps := newDeps(t)
	deps.Scope = "b"

	callOK[types.TaskResponse](t, &CreateRootTool{deps}, map[string]any{})
	callOK[types.TaskResponse](t, &CreateRootTool{deps}, map[string]any{"scope": "a"})

	res := call(t, &ShowTool{deps}, map[string]any{"scope": "b"})
	require.False(t, res.IsError, resultText(res))
	require.Equal(t, 1, strings.Count(resultText(res), "#"))

	// The default scope already has its root.
	res = call(t, &CreateRootTool{deps}, map[string]any{})
	require.True(t, res.IsError)
}
