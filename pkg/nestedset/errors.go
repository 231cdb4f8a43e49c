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
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound            = errors.New("node not found")
	ErrConflict                = errors.New("tree already has a root")
	ErrNoRoot                  = errors.New("tree has no root")
	ErrSiblingOfRoot           = errors.New("the root node cannot have siblings")
	ErrRootImmovable           = errors.New("the root node cannot be moved")
	ErrSelfMove                = errors.New("a node cannot be moved relative to itself")
	ErrCyclicMove              = errors.New("a node cannot be moved into its own subtree")
	ErrUnsupportedRelationship = errors.New("unsupported relationship")
	ErrInvalidShape            = errors.New("invalid subtree shape")
)

// StoreError wraps a failure of the backing store. Stores decide whether the
// failure is worth retrying (serialization conflicts, deadlocks).
type StoreError struct {
	Op        string
	Err       error
	retryable bool
}

func NewStoreError(op string, err error, retryable bool) *StoreError {
	return &StoreError{Op: op, Err: err, retryable: retryable}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Retryable() bool {
	return e != nil && e.retryable
}

// IsRetryable reports whether err carries a retryable StoreError.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable()
}

// IsPrecondition reports whether err is a structural precondition failure,
// which is always raised before anything is written.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrNoRoot,
		ErrSiblingOfRoot,
		ErrRootImmovable,
		ErrSelfMove,
		ErrCyclicMove,
		ErrUnsupportedRelationship,
		ErrInvalidShape,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
