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

// Package cdc follows a tree table through PostgreSQL logical replication
// (pgoutput) and reports, per committed transaction, which scopes changed.
package cdc

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/pgedge/mptt/pkg/logger"
)

const (
	OpInsert   = "INSERT"
	OpUpdate   = "UPDATE"
	OpDelete   = "DELETE"
	OpTruncate = "TRUNCATE"

	reconnectDelay = 5 * time.Second
)

// Change is one row event on the watched table. Scope is nil for rows of
// the unscoped tree.
type Change struct {
	Op    string
	ID    int64
	Scope *string
}

// Batch holds the changes of one committed transaction.
type Batch struct {
	XID     uint32
	LSN     pglogrepl.LSN
	Changes []Change
	// Truncated is set when the transaction truncated the table.
	Truncated bool
}

// Scopes lists the distinct scopes touched by b, the unscoped tree (nil)
// first and the rest sorted.
func (b Batch) Scopes() []*string {
	var (
		global bool
		seen   = make(map[string]struct{})
		named  []string
	)
	for _, c := range b.Changes {
		if c.Scope == nil {
			global = true
			continue
		}
		if _, ok := seen[*c.Scope]; !ok {
			seen[*c.Scope] = struct{}{}
			named = append(named, *c.Scope)
		}
	}
	sort.Strings(named)
	var out []*string
	if global {
		out = append(out, nil)
	}
	for i := range named {
		out = append(out, &named[i])
	}
	return out
}

// tracker folds pgoutput messages into per-transaction batches for a single
// table.
type tracker struct {
	schema string
	table  string

	relations map[uint32]*pglogrepl.RelationMessage
	xid       uint32
	open      bool
	pending   Batch
}

func newTracker(table string) *tracker {
	schema, name := "public", table
	if i := strings.IndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}
	return &tracker{
		schema:    schema,
		table:     name,
		relations: make(map[uint32]*pglogrepl.RelationMessage),
	}
}

func (t *tracker) watched(relID uint32) (*pglogrepl.RelationMessage, bool) {
	rel, ok := t.relations[relID]
	if !ok {
		return nil, false
	}
	return rel, rel.Namespace == t.schema && rel.RelationName == t.table
}

// handle consumes one message and returns a batch when a transaction that
// touched the table commits.
func (t *tracker) handle(msg pglogrepl.Message) (*Batch, error) {
	switch m := msg.(type) {
	case *pglogrepl.RelationMessage:
		t.relations[m.RelationID] = m
	case *pglogrepl.BeginMessage:
		t.xid = m.Xid
		t.open = true
		t.pending = Batch{XID: m.Xid}
	case *pglogrepl.CommitMessage:
		if !t.open {
			return nil, fmt.Errorf("commit at %s without begin", m.CommitLSN)
		}
		t.open = false
		b := t.pending
		t.pending = Batch{}
		b.LSN = m.TransactionEndLSN
		if len(b.Changes) == 0 && !b.Truncated {
			return nil, nil
		}
		return &b, nil
	case *pglogrepl.InsertMessage:
		return nil, t.row(OpInsert, m.RelationID, m.Tuple)
	case *pglogrepl.UpdateMessage:
		if err := t.row(OpUpdate, m.RelationID, m.NewTuple); err != nil {
			return nil, err
		}
		if m.OldTuple != nil {
			return nil, t.row(OpUpdate, m.RelationID, m.OldTuple)
		}
	case *pglogrepl.DeleteMessage:
		return nil, t.row(OpDelete, m.RelationID, m.OldTuple)
	case *pglogrepl.TruncateMessage:
		for _, id := range m.RelationIDs {
			if _, ok := t.watched(id); ok {
				t.pending.Truncated = true
			}
		}
	}
	return nil, nil
}

func (t *tracker) row(op string, relID uint32, tuple *pglogrepl.TupleData) error {
	rel, ok := t.watched(relID)
	if !ok || tuple == nil {
		return nil
	}
	if !t.open {
		return fmt.Errorf("%s on %s.%s outside a transaction", op, t.schema, t.table)
	}
	c := Change{Op: op}
	for i, col := range tuple.Columns {
		if i >= len(rel.Columns) {
			break
		}
		switch rel.Columns[i].Name {
		case "id":
			if col.DataType == pglogrepl.TupleDataTypeText {
				id, err := strconv.ParseInt(string(col.Data), 10, 64)
				if err != nil {
					return fmt.Errorf("decode id: %w", err)
				}
				c.ID = id
			}
		case "scope":
			if col.DataType == pglogrepl.TupleDataTypeText {
				s := string(col.Data)
				c.Scope = &s
			}
		}
	}
	t.pending.Changes = append(t.pending.Changes, c)
	return nil
}

// Listener streams a replication slot and hands every committed batch that
// touched Table to Handle. Handle runs on the streaming goroutine; the slot
// only advances past a batch once Handle returned nil.
type Listener struct {
	Table       string
	Publication string
	Slot        string
	StartLSN    pglogrepl.LSN
	// StatusInterval is the standby status update period. Defaults to 10s.
	StatusInterval time.Duration
	// Connect opens a replication-mode connection.
	Connect func(ctx context.Context) (*pgconn.PgConn, error)
	Handle  func(ctx context.Context, b Batch) error
}

// Run streams until ctx is cancelled or Handle fails. Connection failures
// are retried.
func (l *Listener) Run(ctx context.Context) error {
	if l.Connect == nil || l.Handle == nil {
		return fmt.Errorf("listener needs Connect and Handle")
	}
	interval := l.StatusInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	lastLSN := l.StartLSN
	opts := pglogrepl.StartReplicationOptions{
		PluginArgs: []string{
			"proto_version '1'",
			fmt.Sprintf("publication_names '%s'", l.Publication),
		},
	}

	var conn *pgconn.PgConn
	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()

	var tr *tracker
	nextStatus := time.Now().Add(interval)

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("Watcher stopping: %v", err)
			return nil
		}

		if conn == nil {
			c, err := l.Connect(ctx)
			if err == nil {
				if err = pglogrepl.StartReplication(ctx, c, l.Slot, lastLSN, opts); err != nil {
					c.Close(context.Background())
					err = fmt.Errorf("StartReplication failed: %w", err)
				}
			}
			if err != nil {
				logger.Error("replication connect failed: %v", err)
				select {
				case <-ctx.Done():
				case <-time.After(reconnectDelay):
				}
				continue
			}
			conn = c
			// A new stream resends relation messages and any unfinished
			// transaction.
			tr = newTracker(l.Table)
			nextStatus = time.Now().Add(interval)
			logger.Info("Logical replication started on slot %s from LSN %s", l.Slot, lastLSN)
		}

		if time.Now().After(nextStatus) {
			if err := sendStatus(ctx, conn, lastLSN); err != nil {
				logger.Error("SendStandbyStatusUpdate failed: %v", err)
				conn.Close(context.Background())
				conn = nil
				continue
			}
			nextStatus = time.Now().Add(interval)
		}

		rCtx, cancel := context.WithDeadline(ctx, nextStatus)
		msg, err := conn.ReceiveMessage(rCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if pgconn.Timeout(err) {
				continue
			}
			logger.Error("ReceiveMessage failed: %v", err)
			conn.Close(context.Background())
			conn = nil
			continue
		}

		cd, ok := msg.(*pgproto3.CopyData)
		if !ok {
			if er, isErr := msg.(*pgproto3.ErrorResponse); isErr {
				return fmt.Errorf("replication error: %s", er.Message)
			}
			logger.Debug("Received unexpected message: %T", msg)
			continue
		}

		switch cd.Data[0] {
		case pglogrepl.PrimaryKeepaliveMessageByteID:
			pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(cd.Data[1:])
			if err != nil {
				logger.Error("ParsePrimaryKeepaliveMessage failed: %v", err)
				continue
			}
			if pkm.ReplyRequested {
				nextStatus = time.Time{}
			}

		case pglogrepl.XLogDataByteID:
			xld, err := pglogrepl.ParseXLogData(cd.Data[1:])
			if err != nil {
				logger.Error("ParseXLogData failed: %v", err)
				continue
			}
			logical, err := pglogrepl.Parse(xld.WALData)
			if err != nil {
				logger.Error("Parse logical replication message failed: %v", err)
				continue
			}
			batch, err := tr.handle(logical)
			if err != nil {
				return err
			}
			if commit, ok := logical.(*pglogrepl.CommitMessage); ok {
				if batch != nil {
					logger.Debug("XID %d touched %d rows of %s", batch.XID, len(batch.Changes), l.Table)
					if err := l.Handle(ctx, *batch); err != nil {
						return fmt.Errorf("handle transaction %d: %w", batch.XID, err)
					}
				}
				lastLSN = commit.TransactionEndLSN
			}
		}
	}
}

func sendStatus(ctx context.Context, conn *pgconn.PgConn, lsn pglogrepl.LSN) error {
	err := pglogrepl.SendStandbyStatusUpdate(ctx, conn, pglogrepl.StandbyStatusUpdate{
		WALWritePosition: lsn,
		WALFlushPosition: lsn,
		WALApplyPosition: lsn,
	})
	if err == nil {
		logger.Debug("Sent standby status update with LSN %s", lsn)
	}
	return err
}
