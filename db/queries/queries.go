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
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgedge/mptt/pkg/nestedset"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Dialect selects placeholder syntax and DDL types.
type Dialect int

const (
	Postgres Dialect = iota + 1
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// placeholder returns the n-th (1-based) bind parameter. SQLite binds
// positionally; every builder appends args in textual order.
func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (d Dialect) idType() string {
	if d == SQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGSERIAL PRIMARY KEY"
}

var validIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Attribute types are pasted into DDL, so only plain type names with an
// optional precision are accepted, e.g. "TEXT" or "NUMERIC(10, 2)".
var validTypeRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_ ]*(\([0-9]+(\s*,\s*[0-9]+)?\))?$`)

var reservedColumns = map[string]struct{}{
	string(nestedset.ColID):    {},
	string(nestedset.ColLeft):  {},
	string(nestedset.ColRight): {},
	string(nestedset.ColScope): {},
}

func SanitiseIdentifier(ident string) error {
	if !validIdentifierRegex.MatchString(ident) {
		return fmt.Errorf("invalid identifier: %s", ident)
	}
	return nil
}

func RenderSQL(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render SQL: %w", err)
	}
	return buf.String(), nil
}

// QuoteTable validates and quotes a table name that may be schema
// qualified ("tree" or "app.tree").
func QuoteTable(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid table name %q: too many dots", name)
	}
	for _, p := range parts {
		if err := SanitiseIdentifier(p); err != nil {
			return "", fmt.Errorf("invalid table name %q: %w", name, err)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

type Attribute struct {
	Name  string
	Type  string
	Ident string
}

// TreeTable renders every statement the stores issue against one tree
// table.
type TreeTable struct {
	Dialect    Dialect
	Name       string
	Ident      string
	Attributes []Attribute
	columns    string
}

// NewTreeTable validates name and the attribute columns (name -> SQL type).
// Attributes are ordered by name so generated SQL is stable.
func NewTreeTable(d Dialect, name string, attrs map[string]string) (*TreeTable, error) {
	if d != Postgres && d != SQLite {
		return nil, fmt.Errorf("unsupported dialect %s", d)
	}
	ident, err := QuoteTable(name)
	if err != nil {
		return nil, err
	}

	t := &TreeTable{Dialect: d, Name: name, Ident: ident}
	for col, typ := range attrs {
		if err := SanitiseIdentifier(col); err != nil {
			return nil, fmt.Errorf("invalid attribute column: %w", err)
		}
		if _, ok := reservedColumns[strings.ToLower(col)]; ok {
			return nil, fmt.Errorf("attribute column %q clashes with a tree column", col)
		}
		if !validTypeRegex.MatchString(typ) {
			return nil, fmt.Errorf("invalid type %q for attribute column %s", typ, col)
		}
		t.Attributes = append(t.Attributes, Attribute{
			Name:  col,
			Type:  typ,
			Ident: pgx.Identifier{col}.Sanitize(),
		})
	}
	sort.Slice(t.Attributes, func(i, j int) bool { return t.Attributes[i].Name < t.Attributes[j].Name })

	cols := []string{"id", "lft", "rgt", "scope"}
	for _, a := range t.Attributes {
		cols = append(cols, a.Ident)
	}
	t.columns = strings.Join(cols, ", ")
	return t, nil
}

// CreateSQL returns the table DDL followed by the lft and rgt indexes.
func (t *TreeTable) CreateSQL() ([]string, error) {
	table, err := RenderSQL(SQLTemplates.CreateTreeTable, map[string]any{
		"Table":      t.Ident,
		"IDType":     t.Dialect.idType(),
		"Attributes": t.Attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render CreateTreeTable SQL: %w", err)
	}

	stmts := []string{table}
	parts := strings.Split(t.Name, ".")
	base := parts[len(parts)-1]
	for _, col := range []nestedset.Column{nestedset.ColLeft, nestedset.ColRight} {
		indexName := base + "_scope_" + string(col) + "_idx"
		// SQLite wants the schema on the index, Postgres on the table only.
		if t.Dialect == SQLite && len(parts) == 2 {
			indexName = parts[0] + "." + indexName
		}
		indexIdent, err := QuoteTable(indexName)
		if err != nil {
			return nil, err
		}
		idx, err := RenderSQL(SQLTemplates.CreateIndex, map[string]any{
			"IndexName": indexIdent,
			"Table":     tableForIndex(t.Dialect, parts),
			"Column":    string(col),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render CreateIndex SQL: %w", err)
		}
		stmts = append(stmts, idx)
	}
	return stmts, nil
}

func tableForIndex(d Dialect, parts []string) string {
	if d == SQLite {
		return pgx.Identifier{parts[len(parts)-1]}.Sanitize()
	}
	return pgx.Identifier(parts).Sanitize()
}

func (t *TreeTable) DropSQL() (string, error) {
	query, err := RenderSQL(SQLTemplates.DropTable, map[string]any{"Table": t.Ident})
	if err != nil {
		return "", fmt.Errorf("failed to render DropTable SQL: %w", err)
	}
	return query, nil
}

// SelectSQL renders a SELECT of every column. limit <= 0 means no limit.
func (t *TreeTable) SelectSQL(f nestedset.Filter, order nestedset.OrderBy, limit int) (string, []any, error) {
	where, args, err := BuildWhere(t.Dialect, f, 1)
	if err != nil {
		return "", nil, err
	}
	orderBy := ""
	if order.Column != "" {
		col, err := columnIdent(order.Column)
		if err != nil {
			return "", nil, err
		}
		orderBy = col
		if order.Desc {
			orderBy += " DESC"
		}
	}
	data := map[string]any{
		"Columns": t.columns,
		"Table":   t.Ident,
		"Where":   where,
		"OrderBy": orderBy,
	}
	if limit > 0 {
		data["Limit"] = limit
	}
	query, err := RenderSQL(SQLTemplates.SelectNodes, data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render SelectNodes SQL: %w", err)
	}
	return query, args, nil
}

// InsertSQL renders an insert of n returning the generated id. n.ID is
// ignored; attributes must be configured columns.
func (t *TreeTable) InsertSQL(n nestedset.Node) (string, []any, error) {
	known := make(map[string]struct{}, len(t.Attributes))
	for _, a := range t.Attributes {
		known[a.Name] = struct{}{}
	}
	for k := range n.Attrs {
		if _, ok := known[k]; !ok {
			return "", nil, fmt.Errorf("unknown attribute %q for table %s", k, t.Name)
		}
	}

	cols := []string{"lft", "rgt", "scope"}
	args := []any{n.Left, n.Right, scopeArg(n.Scope)}
	for _, a := range t.Attributes {
		cols = append(cols, a.Ident)
		args = append(args, n.Attrs[a.Name])
	}
	values := make([]string, len(args))
	for i := range args {
		values[i] = t.Dialect.placeholder(i + 1)
	}

	query, err := RenderSQL(SQLTemplates.InsertNode, map[string]any{
		"Table":   t.Ident,
		"Columns": strings.Join(cols, ", "),
		"Values":  strings.Join(values, ", "),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to render InsertNode SQL: %w", err)
	}
	return query, args, nil
}

// UpdateSQL renders "col = col + delta" for every delta as one statement.
func (t *TreeTable) UpdateSQL(deltas []nestedset.ColumnDelta, f nestedset.Filter) (string, []any, error) {
	if len(deltas) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}
	var sets []string
	var args []any
	for _, d := range deltas {
		if d.Column != nestedset.ColLeft && d.Column != nestedset.ColRight {
			return "", nil, fmt.Errorf("column %q cannot be shifted", d.Column)
		}
		args = append(args, d.Delta)
		sets = append(sets, fmt.Sprintf("%s = %s + %s", d.Column, d.Column, t.Dialect.placeholder(len(args))))
	}

	where, whereArgs, err := BuildWhere(t.Dialect, f, len(args)+1)
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)

	query, err := RenderSQL(SQLTemplates.ShiftColumns, map[string]any{
		"Table": t.Ident,
		"Set":   strings.Join(sets, ", "),
		"Where": where,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to render ShiftColumns SQL: %w", err)
	}
	return query, args, nil
}

func (t *TreeTable) DeleteSQL(f nestedset.Filter) (string, []any, error) {
	where, args, err := BuildWhere(t.Dialect, f, 1)
	if err != nil {
		return "", nil, err
	}
	query, err := RenderSQL(SQLTemplates.DeleteNodes, map[string]any{
		"Table": t.Ident,
		"Where": where,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to render DeleteNodes SQL: %w", err)
	}
	return query, args, nil
}

// ScanNode reads one row produced by SelectSQL.
func (t *TreeTable) ScanNode(row Scanner) (nestedset.Node, error) {
	var (
		n     nestedset.Node
		scope sql.NullString
	)
	dest := []any{&n.ID, &n.Left, &n.Right, &scope}
	vals := make([]any, len(t.Attributes))
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nestedset.Node{}, err
	}

	if scope.Valid {
		s := scope.String
		n.Scope = &s
	}
	for i, a := range t.Attributes {
		if vals[i] == nil {
			continue
		}
		if n.Attrs == nil {
			n.Attrs = make(map[string]any, len(t.Attributes))
		}
		if b, ok := vals[i].([]byte); ok {
			n.Attrs[a.Name] = string(b)
			continue
		}
		n.Attrs[a.Name] = vals[i]
	}
	return n, nil
}

// BuildWhere renders f as an AND-conjunction with placeholders numbered from
// argStart. An empty filter renders as "".
func BuildWhere(d Dialect, f nestedset.Filter, argStart int) (string, []any, error) {
	var clauses []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return d.placeholder(argStart + len(args) - 1)
	}

	for _, c := range f {
		col, err := columnIdent(c.Column)
		if err != nil {
			return "", nil, err
		}
		if c.Column == nestedset.ColScope && c.Op != nestedset.OpEq {
			return "", nil, fmt.Errorf("scope only supports equality, got %s", c.Op)
		}

		switch c.Op {
		case nestedset.OpEq, nestedset.OpGt, nestedset.OpGte, nestedset.OpLt, nestedset.OpLte:
			clauses = append(clauses, fmt.Sprintf("%s %s %s", col, c.Op, next(c.Value)))
		case nestedset.OpBetween:
			lo := next(c.Value)
			hi := next(c.Upper)
			clauses = append(clauses, fmt.Sprintf("%s BETWEEN %s AND %s", col, lo, hi))
		case nestedset.OpIn:
			if c.Column != nestedset.ColID {
				return "", nil, fmt.Errorf("IN is only supported on id")
			}
			if len(c.Values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			if d == Postgres {
				clauses = append(clauses, fmt.Sprintf("%s = ANY(%s)", col, next(c.Values)))
				continue
			}
			ph := make([]string, len(c.Values))
			for i, v := range c.Values {
				ph[i] = next(v)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ", ")))
		default:
			return "", nil, fmt.Errorf("unsupported operator %s", c.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func columnIdent(c nestedset.Column) (string, error) {
	if _, ok := reservedColumns[string(c)]; !ok {
		return "", fmt.Errorf("unknown tree column %q", c)
	}
	return string(c), nil
}

func scopeArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
