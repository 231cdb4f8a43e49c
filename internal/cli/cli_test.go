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

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestParseAttrs(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]any
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"typed", []string{"name=Books", "rank=3", "active=true"},
			map[string]any{"name": "Books", "rank": 3, "active": true}, false},
		{"quoted number", []string{`code="007"`}, map[string]any{"code": "007"}, false},
		{"empty value", []string{"note="}, map[string]any{"note": nil}, false},
		{"value with equals", []string{"expr=a=b"}, map[string]any{"expr": "a=b"}, false},
		{"missing equals", []string{"name"}, nil, true},
		{"missing key", []string{"=x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAttrs(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

// useConfig points the commands at a pure Go SQLite file in a temp dir.
func useConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	cfg := config.Defaults()
	cfg.SQLite.Driver = "sqlite"
	cfg.SQLite.Path = filepath.Join(dir, "tree.db")
	cfg.Server.TaskStorePath = filepath.Join(dir, "tasks.db")
	cfg.Attributes = map[string]string{"name": "TEXT"}
	config.Cfg = cfg
	t.Cleanup(func() { config.Cfg = nil })
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := SetupCLI()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"mptt"}, args...))
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "mptt %s", strings.Join(args, " "))
	return strings.TrimSpace(out)
}

func TestCommandsEndToEnd(t *testing.T) {
	useConfig(t)

	mustRun(t, "init")
	root := mustRun(t, "root", "create", "-a", "name=Books")
	require.Equal(t, "1", root)

	_, err := runCLI(t, "root", "create")
	require.ErrorContains(t, err, "already has a root")

	fiction := mustRun(t, "insert", "--reference", root, "-a", "name=Fiction")
	poetry := mustRun(t, "insert", "--reference", fiction, "--relationship", "after", "-a", "name=Poetry")

	subtree := filepath.Join(t.TempDir(), "crime.yaml")
	require.NoError(t, os.WriteFile(subtree, []byte(`
attrs: {name: Crime}
children:
  - attrs: {name: Noir}
`), 0o644))
	imported := strings.Fields(mustRun(t, "import", "--reference", fiction, subtree))
	require.Len(t, imported, 2)

	mustRun(t, "move", "--target", root, poetry)

	out := mustRun(t, "show", "--label", "name")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "#1 [1, 10] Books", lines[0])
	require.Contains(t, lines[1], "Poetry")
	require.Contains(t, lines[4], "Noir")

	out = mustRun(t, "show", "--json")
	var tree types.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.Len(t, tree.Nodes, 5)
	require.Equal(t, "tree_nodes", tree.Table)

	mustRun(t, "validate")

	mustRun(t, "delete", fiction)
	out = mustRun(t, "show", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.Len(t, tree.Nodes, 2)

	_, err = runCLI(t, "move", "--target", root, "99")
	require.ErrorContains(t, err, "node not found")

	out = mustRun(t, "tasks", "list", "--limit", "50")
	require.Equal(t, 9, len(strings.Split(out, "\n")), out)
	require.Contains(t, out, "FAILED")

	out = mustRun(t, "tasks", "list", "--status", "failed", "--type", "move")
	require.Len(t, strings.Split(out, "\n"), 1, out)

	mustRun(t, "tasks", "prune", "--older-than", "1d")
	_, err = runCLI(t, "tasks", "prune", "--older-than", "soon")
	require.ErrorContains(t, err, "--older-than")
}

func TestScopedCommands(t *testing.T) {
	useConfig(t)

	for _, scope := range []string{"books", "music"} {
		mustRun(t, "root", "create", "--scope", scope)
	}
	mustRun(t, "insert", "--scope", "music", "--reference", "2")

	out := mustRun(t, "show", "--scope", "books")
	require.Equal(t, "#1 [1, 2]", out)

	mustRun(t, "validate", "--scopes", "books", "--scopes", "music")
}

func TestCommandErrors(t *testing.T) {
	useConfig(t)
	mustRun(t, "root", "create")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad relationship", []string{"insert", "--reference", "1", "-r", "below"}, "unsupported relationship"},
		{"bad attr", []string{"insert", "--reference", "1", "-a", "oops"}, "key=value"},
		{"move needs id", []string{"move", "--target", "1"}, "exactly one node id"},
		{"delete needs ids", []string{"delete"}, "at least one node id"},
		{"import needs file", []string{"import", "--reference", "1"}, "subtree file"},
		{"schedule needs interval", []string{"validate", "--schedule"}, "--every or --cron"},
		{"missing subtree", []string{"show", "--root", "42"}, "node not found"},
		{"token without secret", []string{"token", "--subject", "me"}, "jwt_secret"},
		{"watch needs postgres", []string{"watch"}, "postgres store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "mptt.yaml")

	mustRun(t, "config", "init", "--path", path)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "tree_nodes", cfg.Store.Table)

	_, err = runCLI(t, "config", "init", "--path", path)
	require.ErrorContains(t, err, "already exists")

	mustRun(t, "config", "init", "--path", path, "--force")

	out := mustRun(t, "config", "init", "--stdout")
	require.Contains(t, out, "schedule_jobs:")
}
