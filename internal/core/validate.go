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

package core

import (
	"fmt"
	"os"
	"sort"

	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// ValidateTask checks one or more scopes of a table. Scopes are disjoint
// trees, so they are validated concurrently, at most Concurrency at a time.
type ValidateTask struct {
	TreeTask

	// Scopes overrides TreeTask.Scope when set.
	Scopes      []string
	Concurrency int

	// Reports is keyed by scope; the global tree uses "".
	Reports map[string]nestedset.Report
}

func NewValidateTask() *ValidateTask {
	return &ValidateTask{
		TreeTask:    newTreeTask(taskstore.TaskTypeValidate),
		Concurrency: 4,
	}
}

func (t *ValidateTask) Validate() error {
	if err := t.validateTree(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(t.Scopes))
	for _, s := range t.Scopes {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("scope %q listed twice", s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Valid reports whether every validated scope passed.
func (t *ValidateTask) Valid() bool {
	for _, rep := range t.Reports {
		if !rep.Valid {
			return false
		}
	}
	return true
}

func (t *ValidateTask) targets() []*string {
	if len(t.Scopes) == 0 {
		return []*string{t.Scope}
	}
	out := make([]*string, len(t.Scopes))
	for i := range t.Scopes {
		out[i] = &t.Scopes[i]
	}
	return out
}

func (t *ValidateTask) ExecuteTask() error {
	targets := t.targets()
	names := make([]string, len(targets))
	for i, s := range targets {
		if s != nil {
			names[i] = *s
		}
	}

	return t.record("validate", map[string]any{"scopes": names}, func() (map[string]any, error) {
		var progress *mpb.Progress
		if !t.QuietMode {
			progress = mpb.New(mpb.WithOutput(os.Stderr))
		}

		reports := make([]nestedset.Report, len(targets))
		g, gctx := errgroup.WithContext(t.Ctx)
		if t.Concurrency > 0 {
			g.SetLimit(t.Concurrency)
		}
		for i, scope := range targets {
			tree := nestedset.New(t.Backend, t.Table)
			if scope != nil {
				tree = tree.InScope(*scope)
			}
			g.Go(func() error {
				var (
					bar  *mpb.Bar
					tick func()
				)
				if progress != nil {
					total, err := tree.Count(gctx)
					if err != nil {
						return fmt.Errorf("count %s: %w", tree, err)
					}
					bar = progress.AddBar(int64(total),
						mpb.BarRemoveOnComplete(),
						mpb.PrependDecorators(
							decor.Name(fmt.Sprintf("Validating %s:", tree), decor.WC{W: 25}),
							decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
						),
						mpb.AppendDecorators(
							decor.Elapsed(decor.ET_STYLE_GO),
							decor.Name(" | "),
							decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done"),
						),
					)
					tick = bar.Increment
				}

				rep, err := tree.ValidateWithProgress(gctx, tick)
				if bar != nil && !bar.Completed() {
					bar.Abort(true)
				}
				if err != nil {
					return fmt.Errorf("validate %s: %w", tree, err)
				}
				reports[i] = rep
				return nil
			})
		}
		err := g.Wait()
		if progress != nil {
			progress.Wait()
		}
		if err != nil {
			return nil, err
		}

		t.Reports = make(map[string]nestedset.Report, len(reports))
		invalid := make([]string, 0)
		for i, rep := range reports {
			t.Reports[names[i]] = rep
			if !rep.Valid {
				invalid = append(invalid, names[i])
			}
		}
		sort.Strings(invalid)
		return map[string]any{
			"valid":          len(invalid) == 0,
			"invalid_scopes": invalid,
			"reports":        t.Reports,
		}, nil
	})
}
