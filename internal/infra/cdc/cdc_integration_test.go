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

//go:build integration

package cdc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgedge/mptt/internal/infra/db"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store/pgstore"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) config.PostgresConfig {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16",
			ExposedPorts: []string{"5432/tcp"},
			Cmd:          []string{"postgres", "-c", "wal_level=logical"},
			Env: map[string]string{
				"POSTGRES_USER":     "mptt",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "mptt_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)
	return config.PostgresConfig{
		DSN: fmt.Sprintf("postgres://mptt:password@%s:%s/mptt_test?sslmode=disable", host, port.Port()),
	}
}

func TestWatchReportsScopes(t *testing.T) {
	pg := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, db.ConnectionString(pg))
	require.NoError(t, err)
	s := pgstore.New(pool, pgstore.Options{Attributes: map[string]string{"name": "text"}, MaxRetries: 3})
	defer s.Close()
	require.NoError(t, s.EnsureTable(ctx, "tree_nodes"))

	require.NoError(t, SetupPublication(ctx, pool, "mptt_pub", "tree_nodes", false))
	conn, err := db.ReplicationConnection(ctx, pg)
	require.NoError(t, err)
	start, err := SetupReplicationSlot(ctx, pool, conn, "mptt_slot", false)
	require.NoError(t, err)
	conn.Close(ctx)

	batches := make(chan Batch, 4)
	l := &Listener{
		Table:          "tree_nodes",
		Publication:    "mptt_pub",
		Slot:           "mptt_slot",
		StartLSN:       start,
		StatusInterval: time.Second,
		Connect: func(ctx context.Context) (*pgconn.PgConn, error) {
			return db.ReplicationConnection(ctx, pg)
		},
		Handle: func(_ context.Context, b Batch) error {
			batches <- b
			return nil
		},
	}
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	tree := nestedset.New(s, "tree_nodes", nestedset.WithScope("books"))
	_, err = tree.CreateRoot(ctx, map[string]any{"name": "Books"})
	require.NoError(t, err)

	select {
	case b := <-batches:
		scopes := b.Scopes()
		require.Len(t, scopes, 1)
		require.Equal(t, "books", *scopes[0])
	case <-ctx.Done():
		t.Fatal("no batch received")
	}

	cancel()
	require.NoError(t, <-done)
}
