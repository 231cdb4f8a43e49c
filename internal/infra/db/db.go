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

// Package db turns the store section of the configuration into a ready
// store.Backend.
package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/store/boltstore"
	"github.com/pgedge/mptt/pkg/store/memstore"
	"github.com/pgedge/mptt/pkg/store/pgstore"
	"github.com/pgedge/mptt/pkg/store/sqlitestore"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

// ConnectionString renders pg as a libpq connection string. A DSN wins over
// the individual fields.
func ConnectionString(pg config.PostgresConfig) string {
	if dsn := strings.TrimSpace(pg.DSN); dsn != "" {
		return dsn
	}
	var parts []string
	if host := strings.TrimSpace(pg.Host); host != "" {
		parts = append(parts, "host="+host)
	}
	if pg.Port != 0 {
		parts = append(parts, fmt.Sprintf("port=%d", pg.Port))
	}
	if pg.User != "" {
		parts = append(parts, "user="+pg.User)
	}
	if pg.Password != "" {
		parts = append(parts, "password="+pg.Password)
	}
	if pg.DBName != "" {
		parts = append(parts, "dbname="+pg.DBName)
	}
	sslMode := pg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, "sslmode="+sslMode)
	return strings.Join(parts, " ")
}

// Connect opens a pool sized and timed out as pg says.
func Connect(ctx context.Context, pg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnectionString(pg))
	if err != nil {
		return nil, err
	}
	if pg.MaxConns > 0 {
		poolCfg.MaxConns = pg.MaxConns
	}
	if pg.ConnectionTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = time.Duration(pg.ConnectionTimeout) * time.Second
	}
	if pg.StatementTimeout > 0 {
		poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.Itoa(pg.StatementTimeout)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// OpenBackend builds the backend named by cfg.Store.Backend and makes sure
// the configured tree table exists.
// ReplicationConnection opens a single walsender connection for logical
// replication.
func ReplicationConnection(ctx context.Context, pg config.PostgresConfig) (*pgconn.PgConn, error) {
	connCfg, err := pgconn.ParseConfig(ConnectionString(pg))
	if err != nil {
		return nil, err
	}
	connCfg.RuntimeParams["replication"] = "database"
	if pg.ConnectionTimeout > 0 {
		connCfg.ConnectTimeout = time.Duration(pg.ConnectionTimeout) * time.Second
	}
	conn, err := pgconn.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open replication connection: %w", err)
	}
	return conn, nil
}

func OpenBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	var (
		backend store.Backend
		err     error
	)
	switch strings.ToLower(cfg.Store.Backend) {
	case BackendPostgres:
		var pool *pgxpool.Pool
		pool, err = Connect(ctx, cfg.Postgres)
		if err == nil {
			backend = pgstore.New(pool, pgstore.Options{
				Attributes: cfg.Attributes,
				MaxRetries: cfg.Postgres.MaxRetries,
			})
		}
	case BackendSQLite:
		backend, err = sqlitestore.Open(cfg.SQLite.Path, sqlitestore.Options{
			Driver:     cfg.SQLite.Driver,
			Attributes: cfg.Attributes,
			MaxRetries: cfg.SQLite.MaxRetries,
		})
	case BackendBolt:
		backend, err = boltstore.Open(cfg.Bolt.Path, boltstore.Options{Attributes: cfg.Attributes})
	case BackendMemory:
		backend = memstore.New()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	if err := backend.EnsureTable(ctx, cfg.Store.Table); err != nil {
		backend.Close()
		return nil, fmt.Errorf("prepare tree table %s: %w", cfg.Store.Table, err)
	}
	logger.Debug("opened %s store, tree table %s", cfg.Store.Backend, cfg.Store.Table)
	return backend, nil
}
