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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pgedge/mptt/internal/core"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/pgedge/mptt/pkg/types"
)

const maxBodyBytes = 4 << 20

// requestError marks input that failed task validation.
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

// statusFor maps tree and store errors onto HTTP statuses.
func statusFor(err error) int {
	var reqErr requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, nestedset.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, nestedset.ErrConflict):
		return http.StatusConflict
	case nestedset.IsPrecondition(err):
		return http.StatusUnprocessableEntity
	case nestedset.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *APIServer) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		s.metrics.conflicts.Inc()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("%s failed: %v", op, err)
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// treeRef reads the table from the path and the scope from the query
// string, falling back to the configured store scope.
func (s *APIServer) treeRef(r *http.Request) types.TreeRef {
	ref := types.TreeRef{Table: r.PathValue("table")}
	switch {
	case r.URL.Query().Has("scope"):
		scope := r.URL.Query().Get("scope")
		ref.Scope = &scope
	case s.cfg.Store.Scope != "":
		scope := s.cfg.Store.Scope
		ref.Scope = &scope
	}
	return ref
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func (s *APIServer) bind(t *core.TreeTask, r *http.Request) {
	t.TreeRef = s.treeRef(r)
	t.Backend = s.backend
	t.TaskStore = s.taskStore
	t.QuietMode = true
	t.Ctx = r.Context()
	if subject := clientSubject(r.Context()); subject != "" {
		logger.Debug("task %s (%s) requested by %s", t.TaskID, t.TaskType, subject)
	}
}

// task is what every core task exposes to the handlers.
type task interface {
	Validate() error
	ExecuteTask() error
}

func (s *APIServer) run(op string, t task) error {
	if err := t.Validate(); err != nil {
		return requestError{err}
	}
	_, err := s.timed(op, t.ExecuteTask)
	return err
}

func (s *APIServer) handleCreateRoot(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRootRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t := core.NewCreateRootTask()
	s.bind(&t.TreeTask, r)
	t.Attrs = req.Attrs

	if err := s.run("create_root", t); err != nil {
		s.fail(w, "create root", err)
		return
	}
	writeJSON(w, http.StatusCreated, types.TaskResponse{
		TaskID: t.TaskID,
		Status: t.TaskStatus,
		IDs:    []int64{t.RootID},
	})
}

func (s *APIServer) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req types.InsertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t := core.NewInsertTask()
	if req.Subtree != nil {
		t = core.NewImportTask()
	}
	s.bind(&t.TreeTask, r)
	if req.Relationship != 0 {
		t.Relationship = req.Relationship
	}
	t.Reference = req.Reference
	t.Attrs = req.Attrs
	t.Subtree = req.Subtree

	if err := s.run("insert", t); err != nil {
		s.fail(w, "insert", err)
		return
	}
	writeJSON(w, http.StatusCreated, types.TaskResponse{
		TaskID: t.TaskID,
		Status: t.TaskStatus,
		IDs:    t.IDs,
	})
}

func (s *APIServer) handleMove(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req types.MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t := core.NewMoveTask()
	s.bind(&t.TreeTask, r)
	t.NodeID = nodeID
	t.Relationship = req.Relationship
	t.Target = req.Target

	if err := s.run("move", t); err != nil {
		s.fail(w, "move", err)
		return
	}
	moved := t.Moved
	writeJSON(w, http.StatusOK, types.TaskResponse{
		TaskID: t.TaskID,
		Status: t.TaskStatus,
		Moved:  &moved,
	})
}

func (s *APIServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req types.DeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t := core.NewDeleteTask()
	s.bind(&t.TreeTask, r)
	t.IDs = req.IDs

	if err := s.run("delete", t); err != nil {
		s.fail(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, types.TaskResponse{
		TaskID: t.TaskID,
		Status: t.TaskStatus,
		IDs:    t.Deleted,
	})
}

func (s *APIServer) handleGetTree(w http.ResponseWriter, r *http.Request) {
	ref := s.treeRef(r)
	tree := s.tree(ref)

	var rootID *int64
	if raw := r.URL.Query().Get("root"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "root must be a positive integer")
			return
		}
		rootID = &id
	}

	var nodes []nestedset.TreeNode
	_, err := s.timed("get_tree", func() (err error) {
		nodes, err = tree.GetTree(r.Context(), rootID)
		return err
	})
	if err != nil {
		s.fail(w, "get tree", err)
		return
	}
	if nodes == nil {
		nodes = []nestedset.TreeNode{}
	}
	writeJSON(w, http.StatusOK, types.TreeResponse{TreeRef: ref, Nodes: nodes})
}

func (s *APIServer) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	node, found, err := s.tree(s.treeRef(r)).GetNode(r.Context(), id)
	if err != nil {
		s.fail(w, "get node", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("node %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// handleValidate runs synchronously unless async=true, in which case the
// task id is returned at once and the report lands in the task store.
func (s *APIServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	t := core.NewValidateTask()
	s.bind(&t.TreeTask, r)

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if err := t.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err := s.enqueueTask(t.TaskID, func(ctx context.Context) error {
			t.Ctx = ctx
			_, err := s.timed("validate", t.ExecuteTask)
			return err
		})
		if err != nil {
			s.fail(w, "validate", err)
			return
		}
		writeJSON(w, http.StatusAccepted, types.TaskResponse{TaskID: t.TaskID, Status: taskstore.StatusPending})
		return
	}

	if err := s.run("validate", t); err != nil {
		s.fail(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, types.ValidateResponse{
		TreeRef: t.TreeRef,
		TaskID:  t.TaskID,
		Report:  t.Reports[t.ScopeName()],
	})
}

func (s *APIServer) timed(op string, fn func() error) (time.Duration, error) {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	s.metrics.observe(op, elapsed.Seconds(), err)
	return elapsed, err
}

func (s *APIServer) tree(ref types.TreeRef) *nestedset.Tree {
	tree := nestedset.New(s.backend, ref.Table)
	if ref.Scope != nil {
		tree = tree.InScope(*ref.Scope)
	}
	return tree
}

func (s *APIServer) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	if s.taskStore == nil {
		writeError(w, http.StatusInternalServerError, "task store unavailable")
		return
	}

	taskID := strings.TrimSpace(r.PathValue("id"))
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	rec, err := s.taskStore.Get(taskID)
	if errors.Is(err, taskstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		logger.Error("failed to fetch task %s: %v", taskID, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch task status")
		return
	}

	resp := types.TaskStatusResponse{
		TaskID:      rec.TaskID,
		TaskType:    rec.TaskType,
		Status:      rec.Status,
		TreeTable:   rec.TreeTable,
		Scope:       rec.Scope,
		Error:       rec.Error,
		TimeTaken:   rec.TimeTaken,
		TaskContext: rec.TaskContext,
	}
	if !rec.StartedAt.IsZero() {
		started := rec.StartedAt
		resp.StartedAt = &started
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		resp.FinishedAt = &finished
	}

	writeJSON(w, http.StatusOK, resp)
}
