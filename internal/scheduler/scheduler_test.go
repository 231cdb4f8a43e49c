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

package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store/memstore"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"5m", 5 * time.Minute, false},
		{" 1h30m ", 90 * time.Minute, false},
		{"", 0, true},
		{"soon", 0, true},
		{"-1s", 0, true},
		{"2d", 48 * time.Hour, false},
		{"0d", 0, true},
		{"xd", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFrequency(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBuildJobsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.ScheduleJobs = []config.JobDef{
		{Name: "nightly", Table: "menu", Scopes: []string{"a", "b"}},
		{Name: "hourly"},
		{Name: "off"},
	}
	cfg.ScheduleConfig = []config.SchedDef{
		{JobName: "nightly", CrontabSchedule: "0 3 * * *", Enabled: true},
		{JobName: "hourly", RunFrequency: "1h", Enabled: true},
		{JobName: "off", RunFrequency: "1h", Enabled: false},
	}

	jobs, err := BuildJobsFromConfig(cfg, memstore.New(), nil)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "nightly", jobs[0].Name)
	require.Equal(t, "0 3 * * *", jobs[0].Cron)
	require.Equal(t, time.Hour, jobs[1].Frequency)
	require.True(t, jobs[1].RunOnStart)
}

func TestBuildJobsFromConfigErrors(t *testing.T) {
	_, err := BuildJobsFromConfig(nil, nil, nil)
	require.Error(t, err)

	tests := []struct {
		name  string
		sched config.SchedDef
	}{
		{"unknown job", config.SchedDef{JobName: "ghost", RunFrequency: "1m", Enabled: true}},
		{"no schedule", config.SchedDef{JobName: "j", Enabled: true}},
		{"both schedules", config.SchedDef{JobName: "j", RunFrequency: "1m", CrontabSchedule: "* * * * *", Enabled: true}},
		{"bad frequency", config.SchedDef{JobName: "j", RunFrequency: "often", Enabled: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.ScheduleJobs = []config.JobDef{{Name: "j"}}
			cfg.ScheduleConfig = []config.SchedDef{tc.sched}
			_, err := BuildJobsFromConfig(cfg, memstore.New(), nil)
			require.Error(t, err)
		})
	}
}

func TestValidationJobRecordsTask(t *testing.T) {
	ctx := context.Background()
	backend := memstore.New()
	tasks, err := taskstore.New(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tasks.Close() })

	tree := nestedset.New(backend, "menu").InScope("main")
	_, err = tree.CreateRoot(ctx, nil)
	require.NoError(t, err)

	cfg := config.Defaults()
	job := ValidationJob(cfg, config.JobDef{Name: "menu", Table: "menu", Scopes: []string{"main"}},
		time.Minute, "", backend, tasks)
	require.NoError(t, job.Task(ctx))

	recs, err := tasks.List("menu", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, taskstore.TaskTypeValidate, recs[0].TaskType)
	require.Equal(t, taskstore.StatusCompleted, recs[0].Status)

	one := "main"
	backend.Put("menu", nestedset.Node{ID: 77, Left: 3, Right: 4, Scope: &one})
	require.ErrorContains(t, job.Task(ctx), "not a valid nested set")
}

func TestRunJobsStopsWithContext(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	job := Job{
		Name:       "count",
		Frequency:  time.Hour,
		RunOnStart: true,
		Task: func(context.Context) error {
			runs.Add(1)
			cancel()
			return nil
		},
	}
	require.NoError(t, RunSingleJob(ctx, job))
	require.Equal(t, int32(1), runs.Load())
}

func TestRunRejectsBadJobs(t *testing.T) {
	noop := func(context.Context) error { return nil }
	tests := []struct {
		name string
		job  Job
		want string
	}{
		{"no schedule", Job{Name: "bare", Task: noop}, "requires either frequency or cron"},
		{"both schedules", Job{Name: "both", Frequency: time.Minute, Cron: "* * * * *", Task: noop}, "both frequency and cron"},
		{"no task", Job{Name: "idle", Frequency: time.Minute}, "has no task"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorContains(t, RunSingleJob(context.Background(), tc.job), tc.want)
		})
	}
}

func TestRunChecksEveryScheduleFirst(t *testing.T) {
	var runs atomic.Int32
	good := Job{Name: "good", Frequency: time.Hour, RunOnStart: true, Task: func(context.Context) error {
		runs.Add(1)
		return nil
	}}
	bad := Job{Name: "bad", Task: good.Task}
	require.Error(t, RunJobs(context.Background(), []Job{good, bad}))
	require.Zero(t, runs.Load())
}
