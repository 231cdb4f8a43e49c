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

// Package server exposes tree operations over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type APIServer struct {
	cfg        *config.Config
	backend    store.Backend
	server     *http.Server
	validator  *tokenValidator
	taskStore  *taskstore.Store
	metrics    *metrics
	listenAddr string
	jobCtx     context.Context
	jobCancel  context.CancelFunc
	wg         sync.WaitGroup
}

// New wires the API around backend. The caller keeps ownership of backend;
// the task store is opened here and closed by Run.
func New(cfg *config.Config, backend store.Backend) (*APIServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	if backend == nil {
		return nil, fmt.Errorf("store backend is required")
	}
	srvCfg := cfg.Server
	if srvCfg.ListenAddress == "" {
		srvCfg.ListenAddress = "0.0.0.0"
	}
	if srvCfg.ListenPort == 0 {
		return nil, fmt.Errorf("server.listen_port must be configured")
	}
	if (srvCfg.TLSCertFile == "") != (srvCfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}

	taskStore, err := taskstore.New(srvCfg.TaskStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise task store: %w", err)
	}

	registry := prometheus.NewRegistry()
	jobCtx, jobCancel := context.WithCancel(context.Background())
	apiServer := &APIServer{
		cfg:        cfg,
		backend:    backend,
		validator:  newTokenValidator(srvCfg.JWTSecret),
		taskStore:  taskStore,
		metrics:    newMetrics(registry),
		listenAddr: fmt.Sprintf("%s:%d", srvCfg.ListenAddress, srvCfg.ListenPort),
		jobCtx:     jobCtx,
		jobCancel:  jobCancel,
	}

	mux := http.NewServeMux()
	apiServer.routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	apiServer.server = &http.Server{
		Addr:              apiServer.listenAddr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return apiServer, nil
}

func (s *APIServer) routes(mux *http.ServeMux) {
	auth := func(h http.HandlerFunc) http.Handler { return s.authenticated(h) }

	mux.Handle("POST /api/v1/trees/{table}/root", auth(s.handleCreateRoot))
	mux.Handle("POST /api/v1/trees/{table}/nodes", auth(s.handleInsert))
	mux.Handle("POST /api/v1/trees/{table}/nodes/{id}/move", auth(s.handleMove))
	mux.Handle("DELETE /api/v1/trees/{table}/nodes", auth(s.handleDelete))
	mux.Handle("GET /api/v1/trees/{table}", auth(s.handleGetTree))
	mux.Handle("GET /api/v1/trees/{table}/nodes/{id}", auth(s.handleGetNode))
	mux.Handle("GET /api/v1/trees/{table}/validate", auth(s.handleValidate))
	mux.Handle("GET /api/v1/tasks/{id}", auth(s.handleTaskStatus))
}

// Handler is the full routing tree, middleware included.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Run(ctx context.Context) error {
	if s == nil || s.server == nil {
		return fmt.Errorf("api server is not initialized")
	}

	stop := context.AfterFunc(ctx, s.jobCancel)
	defer stop()
	defer s.Close()

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.Server.TLSCertFile != "" {
			logger.Info("API server listening on https://%s", s.listenAddr)
			err = s.server.ListenAndServeTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
		} else {
			logger.Info("API server listening on http://%s", s.listenAddr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Close cancels background tasks, waits for them and releases the task
// store. Run calls it on exit.
func (s *APIServer) Close() {
	s.jobCancel()
	s.wg.Wait()
	if s.taskStore != nil {
		if err := s.taskStore.Close(); err != nil {
			logger.Warn("failed to close task store: %v", err)
		}
		s.taskStore = nil
	}
}

// enqueueTask runs a task in the background; its outcome is only visible
// through the task store.
func (s *APIServer) enqueueTask(taskID string, run func(context.Context) error) error {
	if s == nil {
		return fmt.Errorf("api server unavailable")
	}
	if s.taskStore == nil {
		return fmt.Errorf("task store unavailable")
	}
	if s.jobCtx == nil {
		return fmt.Errorf("api server is not running")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithCancel(s.jobCtx)
		defer cancel()
		if err := run(ctx); err != nil {
			logger.Error("task %s failed: %v", taskID, err)
		}
	}()
	return nil
}

// Wait blocks until every enqueued task has finished.
func (s *APIServer) Wait() {
	s.wg.Wait()
}

type clientContextKey struct{}

func (s *APIServer) authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validator.enabled() {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		subject, err := s.validator.Validate(strings.TrimSpace(token))
		if err != nil {
			logger.Warn("token validation failed: %v", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), clientContextKey{}, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientSubject(ctx context.Context) string {
	subject, _ := ctx.Value(clientContextKey{}).(string)
	return subject
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("%s %s completed in %s", r.Method, r.URL.Path, time.Since(start))
	})
}
