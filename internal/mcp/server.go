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

// Package mcpserver exposes tree operations as MCP tools over stdio.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/taskstore"
)

const Version = "1.0.0"

const instructions = `Tools for maintaining nested-set (MPTT) trees.
Every tool takes the tree table and an optional scope; a table holds one
independent tree per scope. Node ids are the integers returned by
tree_create_root and tree_insert. Use tree_show to inspect a tree before
moving or deleting nodes and tree_validate to check its structure.`

// Deps is what every tool handler needs.
type Deps struct {
	Backend store.Backend
	Tasks   *taskstore.Store
	// Table is used when a call omits the table argument.
	Table string
	// Scope is used when a call omits the scope argument; empty means the
	// global tree.
	Scope string
}

// Tool is one MCP tool: its schema and its handler.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// New builds the MCP server with every tree tool registered.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"mptt",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(deps) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// Tools returns the handlers in registration order.
func Tools(deps Deps) []Tool {
	return []Tool{
		&CreateRootTool{deps: deps},
		&InsertTool{deps: deps},
		&MoveTool{deps: deps},
		&DeleteTool{deps: deps},
		&ShowTool{deps: deps},
		&ValidateTool{deps: deps},
	}
}

// ServeStdio blocks serving s on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
