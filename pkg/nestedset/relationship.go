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

import (
	"fmt"
	"strings"
)

// Relationship places a node relative to a reference node. The zero value is
// not a valid relationship.
type Relationship int

const (
	// FirstChildOf places the node as the first child of the reference.
	FirstChildOf Relationship = iota + 1
	// After places the node as the next sibling of the reference.
	After
)

func (r Relationship) String() string {
	switch r {
	case FirstChildOf:
		return "first-child-of"
	case After:
		return "after"
	default:
		return fmt.Sprintf("relationship(%d)", int(r))
	}
}

// ParseRelationship accepts the tags used by the CLI and the APIs.
func ParseRelationship(s string) (Relationship, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first-child-of", "first_child_of", "child":
		return FirstChildOf, nil
	case "after", "next-sibling-of":
		return After, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRelationship, s)
	}
}

func (r Relationship) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRelationship, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Relationship) UnmarshalText(text []byte) error {
	parsed, err := ParseRelationship(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Valid reports whether r is one of the supported relationships.
func (r Relationship) Valid() bool {
	return r == FirstChildOf || r == After
}

// sibling relationships can never target the root: its interval spans the
// whole scope.
func (r Relationship) sibling() bool {
	return r == After
}

// threshold is the boundary after which the gap for r is opened.
func (r Relationship) threshold(ref Node) (int64, error) {
	switch r {
	case FirstChildOf:
		return ref.Left, nil
	case After:
		return ref.Right, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedRelationship, r)
	}
}
