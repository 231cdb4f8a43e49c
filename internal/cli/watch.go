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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgedge/mptt/internal/core"
	"github.com/pgedge/mptt/internal/infra/cdc"
	"github.com/pgedge/mptt/internal/infra/db"
	"github.com/pgedge/mptt/pkg/common"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/store/pgstore"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/urfave/cli/v2"
)

// WatchCLI streams changes to the tree table and re-validates every scope a
// committed transaction touched.
func WatchCLI(ctx *cli.Context) error {
	cfg := config.Get()
	ref := treeRef(ctx, cfg)

	publication := cfg.Watch.Publication
	if ctx.IsSet("publication") {
		publication = ctx.String("publication")
	}
	slot := cfg.Watch.Slot
	if ctx.IsSet("slot") {
		slot = ctx.String("slot")
	}

	backend, err := openBackend(ctx, cfg, ref.Table)
	if err != nil {
		return err
	}
	defer backend.Close()
	pg, ok := backend.(*pgstore.Store)
	if !ok {
		return fmt.Errorf("watch needs the postgres store, not %q", cfg.Store.Backend)
	}

	reset := ctx.Bool("reset")
	if err := cdc.SetupPublication(ctx.Context, pg.Pool(), publication, ref.Table, reset); err != nil {
		return err
	}
	conn, err := db.ReplicationConnection(ctx.Context, cfg.Postgres)
	if err != nil {
		return err
	}
	start, err := cdc.SetupReplicationSlot(ctx.Context, pg.Pool(), conn, slot, reset)
	conn.Close(context.Background())
	if err != nil {
		return err
	}

	var tasks *taskstore.Store
	if !ctx.Bool("skip-db-update") {
		if tasks, err = openTaskStore(); err != nil {
			return err
		}
		defer tasks.Close()
	}

	listener := &cdc.Listener{
		Table:          ref.Table,
		Publication:    publication,
		Slot:           slot,
		StartLSN:       start,
		StatusInterval: time.Duration(cfg.Watch.StatusInterval) * time.Second,
		Connect: func(c context.Context) (*pgconn.PgConn, error) {
			return db.ReplicationConnection(c, cfg.Postgres)
		},
		Handle: func(c context.Context, b cdc.Batch) error {
			return revalidate(c, backend, tasks, ref.Table, b)
		},
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("Watching %s through slot %s; press Ctrl+C to stop", ref.Table, slot)
	return listener.Run(runCtx)
}

// revalidate validates the scopes in b. An invalid tree is logged; only
// failures to run the validation stop the watcher.
func revalidate(ctx context.Context, backend store.Backend, tasks *taskstore.Store, table string, b cdc.Batch) error {
	log := logger.With("xid", b.XID, "lsn", b.LSN.String(), "table", table)
	if b.Truncated {
		log.Warn("tree table truncated")
	}

	var named []string
	global := false
	for _, s := range b.Scopes() {
		if s == nil {
			global = true
			continue
		}
		named = append(named, *s)
	}

	var runs []*core.ValidateTask
	if global {
		runs = append(runs, core.NewValidateTask())
	}
	if len(named) > 0 {
		t := core.NewValidateTask()
		t.Scopes = named
		runs = append(runs, t)
	}

	for _, t := range runs {
		t.Table = table
		t.Backend = backend
		t.TaskStore = tasks
		t.SkipDBUpdate = tasks == nil
		t.QuietMode = true
		t.Ctx = ctx
		if err := t.Validate(); err != nil {
			return err
		}
		if err := t.ExecuteTask(); err != nil {
			return err
		}
		for scope, rep := range t.Reports {
			if scope == "" {
				scope = "(global)"
			}
			if rep.Valid {
				log.Debug(common.CheckMark+" tree is valid", "scope", scope, "nodes", rep.Nodes)
				continue
			}
			log.Error(common.CrossMark+" tree is not a valid nested set", "scope", scope, "problems", len(rep.Problems))
		}
	}
	return nil
}
