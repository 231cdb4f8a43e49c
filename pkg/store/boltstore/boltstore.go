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

// Package boltstore keeps trees in an embedded bbolt file, one bucket per
// tree table. Rows are msgpack encoded and keyed by their big-endian id.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

var errRollback = errors.New("rollback")

type record struct {
	Left  int64          `msgpack:"l"`
	Right int64          `msgpack:"r"`
	Scope *string        `msgpack:"s"`
	Attrs map[string]any `msgpack:"a"`
}

type Options struct {
	// Attributes, when set, restricts the attribute keys a node may carry.
	// Types are not enforced.
	Attributes map[string]string
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
}

type Store struct {
	db   *bbolt.DB
	opts Options
}

var _ store.Backend = (*Store)(nil)

func Open(path string, opts Options) (*Store, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) EnsureTable(ctx context.Context, name string) error {
	err := s.db.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nestedset.NewStoreError(store.OpSchema, err, false)
	}
	return nil
}

func (s *Store) DropTable(ctx context.Context, name string) error {
	err := s.db.Update(func(btx *bbolt.Tx) error {
		err := btx.DeleteBucket([]byte(name))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nestedset.NewStoreError(store.OpSchema, err, false)
	}
	return nil
}

// RunInTx runs fn inside one writable bbolt transaction. bbolt admits a
// single writer, so there is nothing to retry.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx nestedset.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return nestedset.NewStoreError(store.OpBegin, err, false)
	}
	var fnErr error
	err := s.db.Update(func(btx *bbolt.Tx) error {
		if fnErr = fn(ctx, &boltTx{s: s, btx: btx}); fnErr != nil {
			return errRollback
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return nestedset.NewStoreError(store.OpCommit, err, false)
	}
	return nil
}

type boltTx struct {
	s   *Store
	btx *bbolt.Tx
}

func (tx *boltTx) bucket(op, name string) (*bbolt.Bucket, error) {
	b := tx.btx.Bucket([]byte(name))
	if b == nil {
		return nil, nestedset.NewStoreError(op, fmt.Errorf("tree table %q does not exist", name), false)
	}
	return b, nil
}

func (tx *boltTx) scan(op, name string, f nestedset.Filter) ([]nestedset.Node, error) {
	b, err := tx.bucket(op, name)
	if err != nil {
		return nil, err
	}
	var out []nestedset.Node
	err = b.ForEach(func(k, v []byte) error {
		n, err := decode(k, v)
		if err != nil {
			return err
		}
		if f.Match(n) {
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, nestedset.NewStoreError(op, err, false)
	}
	return out, nil
}

func (tx *boltTx) SelectOne(ctx context.Context, name string, f nestedset.Filter) (nestedset.Node, error) {
	rows, err := tx.scan(store.OpSelectOne, name, f)
	if err != nil {
		return nestedset.Node{}, err
	}
	if len(rows) == 0 {
		return nestedset.Node{}, nestedset.ErrNodeNotFound
	}
	store.SortNodes(rows, nestedset.OrderBy{Column: nestedset.ColLeft})
	return rows[0], nil
}

func (tx *boltTx) SelectMany(ctx context.Context, name string, f nestedset.Filter, order nestedset.OrderBy) ([]nestedset.Node, error) {
	rows, err := tx.scan(store.OpSelectMany, name, f)
	if err != nil {
		return nil, err
	}
	store.SortNodes(rows, order)
	return rows, nil
}

func (tx *boltTx) Insert(ctx context.Context, name string, n nestedset.Node) (int64, error) {
	b, err := tx.bucket(store.OpInsert, name)
	if err != nil {
		return 0, err
	}
	if err := tx.s.checkAttrs(n.Attrs); err != nil {
		return 0, nestedset.NewStoreError(store.OpInsert, err, false)
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, nestedset.NewStoreError(store.OpInsert, err, false)
	}
	n.ID = int64(seq)
	if err := put(b, n); err != nil {
		return 0, nestedset.NewStoreError(store.OpInsert, err, false)
	}
	return n.ID, nil
}

func (tx *boltTx) BulkUpdate(ctx context.Context, name string, deltas []nestedset.ColumnDelta, f nestedset.Filter) (int64, error) {
	for _, d := range deltas {
		if d.Column != nestedset.ColLeft && d.Column != nestedset.ColRight {
			return 0, nestedset.NewStoreError(store.OpBulkUpdate,
				fmt.Errorf("column %q cannot be shifted", d.Column), false)
		}
	}
	rows, err := tx.scan(store.OpBulkUpdate, name, f)
	if err != nil {
		return 0, err
	}
	b, _ := tx.bucket(store.OpBulkUpdate, name)
	for _, n := range rows {
		for _, d := range deltas {
			if d.Column == nestedset.ColLeft {
				n.Left += d.Delta
			} else {
				n.Right += d.Delta
			}
		}
		if err := put(b, n); err != nil {
			return 0, nestedset.NewStoreError(store.OpBulkUpdate, err, false)
		}
	}
	return int64(len(rows)), nil
}

func (tx *boltTx) BulkDelete(ctx context.Context, name string, f nestedset.Filter) (int64, error) {
	rows, err := tx.scan(store.OpBulkDelete, name, f)
	if err != nil {
		return 0, err
	}
	b, _ := tx.bucket(store.OpBulkDelete, name)
	for _, n := range rows {
		if err := b.Delete(key(n.ID)); err != nil {
			return 0, nestedset.NewStoreError(store.OpBulkDelete, err, false)
		}
	}
	return int64(len(rows)), nil
}

func (s *Store) checkAttrs(attrs map[string]any) error {
	if s.opts.Attributes == nil {
		return nil
	}
	for k := range attrs {
		if _, ok := s.opts.Attributes[k]; !ok {
			return fmt.Errorf("unknown attribute %q", k)
		}
	}
	return nil
}

func key(id int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
}

func put(b *bbolt.Bucket, n nestedset.Node) error {
	v, err := msgpack.Marshal(record{Left: n.Left, Right: n.Right, Scope: n.Scope, Attrs: n.Attrs})
	if err != nil {
		return err
	}
	return b.Put(key(n.ID), v)
}

func decode(k, v []byte) (nestedset.Node, error) {
	if len(k) != 8 {
		return nestedset.Node{}, fmt.Errorf("malformed key %x", k)
	}
	var r record
	dec := msgpack.NewDecoder(bytes.NewReader(v))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&r); err != nil {
		return nestedset.Node{}, fmt.Errorf("decode row %d: %w", binary.BigEndian.Uint64(k), err)
	}
	return nestedset.Node{
		ID:    int64(binary.BigEndian.Uint64(k)),
		Left:  r.Left,
		Right: r.Right,
		Scope: r.Scope,
		Attrs: r.Attrs,
	}, nil
}
