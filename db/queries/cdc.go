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
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func exists(ctx context.Context, db DBTX, t string, name string) (bool, error) {
	var ok bool
	if err := db.QueryRow(ctx, t, name).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func PublicationExists(ctx context.Context, db DBTX, name string) (bool, error) {
	sql, err := RenderSQL(SQLTemplates.CheckPublicationExists, nil)
	if err != nil {
		return false, err
	}
	ok, err := exists(ctx, db, sql, name)
	if err != nil {
		return false, fmt.Errorf("query to check publication %s failed: %w", name, err)
	}
	return ok, nil
}

// CreatePublication publishes table under name. Both are validated.
func CreatePublication(ctx context.Context, db DBTX, name, table string) error {
	if err := SanitiseIdentifier(name); err != nil {
		return err
	}
	ident, err := QuoteTable(table)
	if err != nil {
		return err
	}
	sql, err := RenderSQL(SQLTemplates.CreatePublication, map[string]any{
		"Publication": pgx.Identifier{name}.Sanitize(),
		"Table":       ident,
	})
	if err != nil {
		return fmt.Errorf("failed to render CreatePublication SQL: %w", err)
	}
	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("query to create publication %s failed: %w", name, err)
	}
	return nil
}

func DropPublication(ctx context.Context, db DBTX, name string) error {
	if err := SanitiseIdentifier(name); err != nil {
		return err
	}
	sql, err := RenderSQL(SQLTemplates.DropPublication, map[string]any{
		"Publication": pgx.Identifier{name}.Sanitize(),
	})
	if err != nil {
		return fmt.Errorf("failed to render DropPublication SQL: %w", err)
	}
	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("query to drop publication %s failed: %w", name, err)
	}
	return nil
}

func SetReplicaIdentityFull(ctx context.Context, db DBTX, table string) error {
	ident, err := QuoteTable(table)
	if err != nil {
		return err
	}
	sql, err := RenderSQL(SQLTemplates.ReplicaIdentityFull, map[string]any{"Table": ident})
	if err != nil {
		return fmt.Errorf("failed to render ReplicaIdentityFull SQL: %w", err)
	}
	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("query to set replica identity on %s failed: %w", table, err)
	}
	return nil
}

func ReplicationSlotExists(ctx context.Context, db DBTX, slot string) (bool, error) {
	sql, err := RenderSQL(SQLTemplates.CheckSlotExists, nil)
	if err != nil {
		return false, err
	}
	ok, err := exists(ctx, db, sql, slot)
	if err != nil {
		return false, fmt.Errorf("query to check replication slot %s failed: %w", slot, err)
	}
	return ok, nil
}

func DropReplicationSlot(ctx context.Context, db DBTX, slot string) error {
	sql, err := RenderSQL(SQLTemplates.DropReplicationSlot, nil)
	if err != nil {
		return err
	}
	if _, err := db.Exec(ctx, sql, slot); err != nil {
		return fmt.Errorf("query to drop replication slot %s failed: %w", slot, err)
	}
	return nil
}

// GetSlotFlushLSN returns the slot's confirmed_flush_lsn, "" when the slot
// has not confirmed anything yet.
func GetSlotFlushLSN(ctx context.Context, db DBTX, slot string) (string, error) {
	sql, err := RenderSQL(SQLTemplates.GetSlotFlushLSN, nil)
	if err != nil {
		return "", err
	}
	var lsn string
	err = db.QueryRow(ctx, sql, slot).Scan(&lsn)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("replication slot %s does not exist", slot)
	}
	if err != nil {
		return "", fmt.Errorf("query to get flush lsn of slot %s failed: %w", slot, err)
	}
	return lsn, nil
}
