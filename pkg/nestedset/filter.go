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

package nestedset

import "fmt"

// Column names the structural columns of a tree table.
type Column string

const (
	ColID    Column = "id"
	ColLeft  Column = "lft"
	ColRight Column = "rgt"
	ColScope Column = "scope"
)

// Op is a comparison operator usable in a Cond.
type Op int

const (
	OpEq Op = iota + 1
	OpIn
	OpGt
	OpGte
	OpLt
	OpLte
	OpBetween
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpIn:
		return "IN"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpBetween:
		return "BETWEEN"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Cond is a single predicate. Value holds an int64 for id/lft/rgt and a
// string for scope; Upper is the inclusive upper bound of OpBetween and
// Values the id list of OpIn.
type Cond struct {
	Column Column
	Op     Op
	Value  any
	Upper  any
	Values []int64
}

// Filter is an AND-conjunction of conditions. The empty filter matches
// every row.
type Filter []Cond

func Eq(col Column, v any) Cond { return Cond{Column: col, Op: OpEq, Value: v} }
func Gt(col Column, v int64) Cond { return Cond{Column: col, Op: OpGt, Value: v} }
func Gte(col Column, v int64) Cond { return Cond{Column: col, Op: OpGte, Value: v} }
func Lt(col Column, v int64) Cond { return Cond{Column: col, Op: OpLt, Value: v} }
func Lte(col Column, v int64) Cond { return Cond{Column: col, Op: OpLte, Value: v} }
func Between(col Column, lo, hi int64) Cond { return Cond{Column: col, Op: OpBetween, Value: lo, Upper: hi} }
func IDIn(ids ...int64) Cond { return Cond{Column: ColID, Op: OpIn, Values: ids} }

// And returns a new filter with conds appended; f is not modified.
func (f Filter) And(conds ...Cond) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// Match evaluates f against n. Backends that cannot push predicates down to
// a query engine use it to filter rows themselves.
func (f Filter) Match(n Node) bool {
	for _, c := range f {
		if !c.match(n) {
			return false
		}
	}
	return true
}

func (c Cond) match(n Node) bool {
	if c.Column == ColScope {
		want, ok := c.Value.(string)
		if !ok || c.Op != OpEq {
			return false
		}
		return n.Scope != nil && *n.Scope == want
	}

	var got int64
	switch c.Column {
	case ColID:
		got = n.ID
	case ColLeft:
		got = n.Left
	case ColRight:
		got = n.Right
	default:
		return false
	}

	if c.Op == OpIn {
		for _, v := range c.Values {
			if v == got {
				return true
			}
		}
		return false
	}

	v, ok := toInt64(c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return got == v
	case OpGt:
		return got > v
	case OpGte:
		return got >= v
	case OpLt:
		return got < v
	case OpLte:
		return got <= v
	case OpBetween:
		hi, ok := toInt64(c.Upper)
		return ok && got >= v && got <= hi
	default:
		return false
	}
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	default:
		return 0, false
	}
}

// OrderBy sorts SelectMany results. The zero value leaves order unspecified.
type OrderBy struct {
	Column Column
	Desc   bool
}

// ColumnDelta adds Delta to Column.
type ColumnDelta struct {
	Column Column
	Delta  int64
}
