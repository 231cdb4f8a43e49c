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

package queries

import (
	"database/sql"
	"reflect"
	"strings"
	"testing"

	"github.com/pgedge/mptt/pkg/nestedset"
)

type mockRow struct {
	scanArgs []any
	scanErr  error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	for i, d := range dest {
		if i >= len(m.scanArgs) {
			break
		}
		switch ptr := d.(type) {
		case *int64:
			*ptr = m.scanArgs[i].(int64)
		case *sql.NullString:
			if err := ptr.Scan(m.scanArgs[i]); err != nil {
				return err
			}
		case *any:
			*ptr = m.scanArgs[i]
		}
	}
	return nil
}

func TestSanitiseIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid identifier", input: "valid_identifier"},
		{name: "valid identifier with numbers", input: "valid_identifier_123"},
		{name: "identifier starting with underscore", input: "_valid_identifier"},
		{name: "starts with number", input: "1invalid", wantErr: true},
		{name: "contains special character", input: "invalid-char", wantErr: true},
		{name: "contains space", input: "invalid space", wantErr: true},
		{name: "SQL keyword", input: "select"},
		{name: "empty string", input: "", wantErr: true},
		{name: "injection attempt", input: "t; DROP TABLE x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SanitiseIdentifier(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitiseIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestQuoteTable(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "tree", want: `"tree"`},
		{input: "app.tree", want: `"app"."tree"`},
		{input: "a.b.c", wantErr: true},
		{input: "bad-name", wantErr: true},
		{input: "app.", wantErr: true},
	}
	for _, tt := range tests {
		got, err := QuoteTable(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("QuoteTable(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("QuoteTable(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewTreeTableRejects(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		table   string
		attrs   map[string]string
	}{
		{"unknown dialect", Dialect(9), "tree", nil},
		{"bad table", Postgres, "tree nodes", nil},
		{"reserved column", Postgres, "tree", map[string]string{"LFT": "BIGINT"}},
		{"bad column", SQLite, "tree", map[string]string{"my-col": "TEXT"}},
		{"injected type", Postgres, "tree", map[string]string{"name": "TEXT); DROP TABLE x; --"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTreeTable(tt.dialect, tt.table, tt.attrs); err == nil {
				t.Errorf("expected an error")
			}
		})
	}

	if _, err := NewTreeTable(Postgres, "tree", map[string]string{"price": "NUMERIC(10, 2)"}); err != nil {
		t.Errorf("NUMERIC(10, 2) should be accepted: %v", err)
	}
}

func TestBuildWhere(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		filter   nestedset.Filter
		start    int
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:    "empty",
			dialect: Postgres,
			start:   1,
		},
		{
			name:     "scope and shift threshold",
			dialect:  Postgres,
			filter:   nestedset.Filter{nestedset.Eq(nestedset.ColScope, "s"), nestedset.Gt(nestedset.ColLeft, 3)},
			start:    1,
			wantSQL:  "scope = $1 AND lft > $2",
			wantArgs: []any{"s", int64(3)},
		},
		{
			name:     "between after two delta args",
			dialect:  Postgres,
			filter:   nestedset.Filter{nestedset.Between(nestedset.ColLeft, 5, 9)},
			start:    3,
			wantSQL:  "lft BETWEEN $3 AND $4",
			wantArgs: []any{int64(5), int64(9)},
		},
		{
			name:     "id list on postgres",
			dialect:  Postgres,
			filter:   nestedset.Filter{nestedset.IDIn(1, 2)},
			start:    1,
			wantSQL:  "id = ANY($1)",
			wantArgs: []any{[]int64{1, 2}},
		},
		{
			name:     "id list on sqlite",
			dialect:  SQLite,
			filter:   nestedset.Filter{nestedset.Eq(nestedset.ColScope, "s"), nestedset.IDIn(1, 2)},
			start:    1,
			wantSQL:  "scope = ? AND id IN (?, ?)",
			wantArgs: []any{"s", int64(1), int64(2)},
		},
		{
			name:    "empty id list",
			dialect: SQLite,
			filter:  nestedset.Filter{nestedset.IDIn()},
			start:   1,
			wantSQL: "1 = 0",
		},
		{
			name:    "range on scope",
			dialect: Postgres,
			filter:  nestedset.Filter{{Column: nestedset.ColScope, Op: nestedset.OpGt, Value: "a"}},
			start:   1,
			wantErr: true,
		},
		{
			name:    "unknown column",
			dialect: Postgres,
			filter:  nestedset.Filter{nestedset.Eq("name", "x")},
			start:   1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, args, err := BuildWhere(tt.dialect, tt.filter, tt.start)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildWhere() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.wantSQL {
				t.Errorf("BuildWhere() = %q, want %q", got, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) || (len(args) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("BuildWhere() args = %#v, want %#v", args, tt.wantArgs)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	tbl, err := NewTreeTable(Postgres, "app.categories", map[string]string{"name": "TEXT", "code": "VARCHAR(16)"})
	if err != nil {
		t.Fatalf("NewTreeTable: %v", err)
	}

	ddl, err := tbl.CreateSQL()
	if err != nil {
		t.Fatalf("CreateSQL: %v", err)
	}
	if len(ddl) != 3 {
		t.Fatalf("expected table and two indexes, got %d statements", len(ddl))
	}
	for _, want := range []string{`"app"."categories"`, "BIGSERIAL PRIMARY KEY", `"code" VARCHAR(16)`, `"name" TEXT`} {
		if !strings.Contains(ddl[0], want) {
			t.Errorf("CREATE TABLE missing %q:\n%s", want, ddl[0])
		}
	}
	if !strings.Contains(ddl[1], `"categories_scope_lft_idx" ON "app"."categories" (scope, lft)`) {
		t.Errorf("unexpected index DDL:\n%s", ddl[1])
	}

	sel, args, err := tbl.SelectSQL(nestedset.Filter{nestedset.Eq(nestedset.ColID, int64(4))},
		nestedset.OrderBy{Column: nestedset.ColLeft, Desc: true}, 1)
	if err != nil {
		t.Fatalf("SelectSQL: %v", err)
	}
	for _, want := range []string{`SELECT id, lft, rgt, scope, "code", "name"`, "WHERE id = $1", "ORDER BY lft DESC", "LIMIT 1"} {
		if !strings.Contains(sel, want) {
			t.Errorf("SELECT missing %q:\n%s", want, sel)
		}
	}
	if len(args) != 1 {
		t.Errorf("SELECT args = %v", args)
	}

	scope := "tenant"
	ins, args, err := tbl.InsertSQL(nestedset.Node{Left: 2, Right: 3, Scope: &scope, Attrs: map[string]any{"name": "A"}})
	if err != nil {
		t.Fatalf("InsertSQL: %v", err)
	}
	if !strings.Contains(ins, `(lft, rgt, scope, "code", "name")`) || !strings.Contains(ins, "VALUES ($1, $2, $3, $4, $5)") {
		t.Errorf("unexpected INSERT:\n%s", ins)
	}
	if !strings.Contains(ins, "RETURNING id") {
		t.Errorf("INSERT must return the id:\n%s", ins)
	}
	wantArgs := []any{int64(2), int64(3), "tenant", nil, "A"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("INSERT args = %#v, want %#v", args, wantArgs)
	}

	if _, _, err := tbl.InsertSQL(nestedset.Node{Attrs: map[string]any{"colour": "red"}}); err == nil {
		t.Errorf("unknown attributes must be rejected")
	}

	upd, args, err := tbl.UpdateSQL(
		[]nestedset.ColumnDelta{{Column: nestedset.ColLeft, Delta: -4}, {Column: nestedset.ColRight, Delta: -4}},
		nestedset.Filter{nestedset.Eq(nestedset.ColScope, "tenant"), nestedset.Between(nestedset.ColLeft, 5, 9)},
	)
	if err != nil {
		t.Fatalf("UpdateSQL: %v", err)
	}
	if !strings.Contains(upd, "SET lft = lft + $1, rgt = rgt + $2") ||
		!strings.Contains(upd, "WHERE scope = $3 AND lft BETWEEN $4 AND $5") {
		t.Errorf("unexpected UPDATE:\n%s", upd)
	}
	if len(args) != 5 {
		t.Errorf("UPDATE args = %v", args)
	}

	if _, _, err := tbl.UpdateSQL([]nestedset.ColumnDelta{{Column: nestedset.ColID, Delta: 1}}, nil); err == nil {
		t.Errorf("shifting id must be rejected")
	}

	del, _, err := tbl.DeleteSQL(nestedset.Filter{nestedset.IDIn(3, 4)})
	if err != nil {
		t.Fatalf("DeleteSQL: %v", err)
	}
	if !strings.Contains(del, `DELETE FROM "app"."categories"`) || !strings.Contains(del, "WHERE id = ANY($1)") {
		t.Errorf("unexpected DELETE:\n%s", del)
	}
}

func TestSQLiteDDL(t *testing.T) {
	tbl, err := NewTreeTable(SQLite, "main.tree", nil)
	if err != nil {
		t.Fatalf("NewTreeTable: %v", err)
	}
	ddl, err := tbl.CreateSQL()
	if err != nil {
		t.Fatalf("CreateSQL: %v", err)
	}
	if !strings.Contains(ddl[0], "INTEGER PRIMARY KEY AUTOINCREMENT") {
		t.Errorf("unexpected CREATE TABLE:\n%s", ddl[0])
	}
	if !strings.Contains(ddl[2], `"main"."tree_scope_rgt_idx" ON "tree" (scope, rgt)`) {
		t.Errorf("unexpected index DDL:\n%s", ddl[2])
	}
}

func TestScanNode(t *testing.T) {
	tbl, err := NewTreeTable(SQLite, "tree", map[string]string{"name": "TEXT", "weight": "INTEGER"})
	if err != nil {
		t.Fatalf("NewTreeTable: %v", err)
	}

	n, err := tbl.ScanNode(&mockRow{scanArgs: []any{int64(3), int64(2), int64(5), "s1", []byte("A"), nil}})
	if err != nil {
		t.Fatalf("ScanNode: %v", err)
	}
	if n.ID != 3 || n.Left != 2 || n.Right != 5 {
		t.Errorf("unexpected node %+v", n)
	}
	if n.Scope == nil || *n.Scope != "s1" {
		t.Errorf("scope = %v", n.Scope)
	}
	if n.Attrs["name"] != "A" {
		t.Errorf("name = %#v, want string A", n.Attrs["name"])
	}
	if _, ok := n.Attrs["weight"]; ok {
		t.Errorf("NULL attributes must be omitted")
	}

	global, err := tbl.ScanNode(&mockRow{scanArgs: []any{int64(1), int64(1), int64(2), nil, nil, nil}})
	if err != nil {
		t.Fatalf("ScanNode: %v", err)
	}
	if global.Scope != nil || global.Attrs != nil {
		t.Errorf("expected a bare global node, got %+v", global)
	}
}
