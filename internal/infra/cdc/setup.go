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

package cdc

import (
	"context"
	"fmt"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgedge/mptt/db/queries"
	"github.com/pgedge/mptt/pkg/logger"
)

// SetupPublication publishes table under publication and switches the table
// to REPLICA IDENTITY FULL so deleted rows still carry their scope. With
// reset an existing publication is dropped first.
func SetupPublication(ctx context.Context, db queries.DBTX, publication, table string, reset bool) error {
	if reset {
		if err := queries.DropPublication(ctx, db, publication); err != nil {
			return fmt.Errorf("failed to drop publication: %w", err)
		}
	}
	ok, err := queries.PublicationExists(ctx, db, publication)
	if err != nil {
		return err
	}
	if !ok {
		if err := queries.CreatePublication(ctx, db, publication, table); err != nil {
			return fmt.Errorf("failed to create publication: %w", err)
		}
		logger.Info("Created publication '%s' for %s", publication, table)
	}
	if err := queries.SetReplicaIdentityFull(ctx, db, table); err != nil {
		return err
	}
	return nil
}

// SetupReplicationSlot makes sure slot exists and returns the LSN to stream
// from. An existing slot resumes at its confirmed flush position unless reset
// asks for a fresh one.
func SetupReplicationSlot(ctx context.Context, db queries.DBTX, conn *pgconn.PgConn, slot string, reset bool) (pglogrepl.LSN, error) {
	if err := queries.SanitiseIdentifier(slot); err != nil {
		return 0, err
	}
	ok, err := queries.ReplicationSlotExists(ctx, db, slot)
	if err != nil {
		return 0, err
	}
	if ok && !reset {
		lsn, err := queries.GetSlotFlushLSN(ctx, db, slot)
		if err != nil {
			return 0, err
		}
		if lsn == "" {
			return 0, nil
		}
		start, err := pglogrepl.ParseLSN(lsn)
		if err != nil {
			return 0, fmt.Errorf("failed to parse flush lsn %s: %w", lsn, err)
		}
		logger.Info("Resuming replication slot '%s' at %s", slot, start)
		return start, nil
	}
	if ok {
		if err := queries.DropReplicationSlot(ctx, db, slot); err != nil {
			return 0, fmt.Errorf("failed to drop replication slot: %w", err)
		}
	}

	sys, err := pglogrepl.IdentifySystem(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("IdentifySystem failed: %w", err)
	}
	res, err := pglogrepl.CreateReplicationSlot(ctx, conn, slot, "pgoutput",
		pglogrepl.CreateReplicationSlotOptions{Mode: pglogrepl.LogicalReplication})
	if err != nil {
		return 0, fmt.Errorf("CreateReplicationSlot failed: %w", err)
	}
	start, err := pglogrepl.ParseLSN(res.ConsistentPoint)
	if err != nil {
		return 0, fmt.Errorf("failed to parse consistent point %s: %w", res.ConsistentPoint, err)
	}

	logger.Debug("SystemID: %s, Timeline: %d, XLogPos: %s, DBName: %s", sys.SystemID, sys.Timeline, sys.XLogPos, sys.DBName)
	logger.Info("Created replication slot '%s' at consistent point %s", slot, start)
	return start, nil
}
