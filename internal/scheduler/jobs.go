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
	"fmt"
	"strings"
	"time"

	"github.com/pgedge/mptt/internal/core"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/taskstore"
)

type scheduleSpec struct {
	frequency time.Duration
	cron      string
}

// BuildJobsFromConfig turns every enabled schedule_config entry into a
// validation job running against backend. Validation results land in
// tasks when it is not nil.
func BuildJobsFromConfig(cfg *config.Config, backend store.Backend, tasks *taskstore.Store) ([]Job, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scheduler: configuration is not initialised")
	}

	jobDefs := make(map[string]config.JobDef, len(cfg.ScheduleJobs))
	for _, def := range cfg.ScheduleJobs {
		jobDefs[def.Name] = def
	}

	var jobs []Job
	for _, sched := range cfg.ScheduleConfig {
		if !sched.Enabled {
			continue
		}
		def, ok := jobDefs[sched.JobName]
		if !ok {
			return nil, fmt.Errorf("scheduler: job definition %q not found", sched.JobName)
		}
		spec, err := specFromConfig(sched)
		if err != nil {
			return nil, fmt.Errorf("scheduler: job %q: %w", def.Name, err)
		}
		jobs = append(jobs, ValidationJob(cfg, def, spec.frequency, spec.cron, backend, tasks))
	}

	return jobs, nil
}

func specFromConfig(def config.SchedDef) (scheduleSpec, error) {
	var spec scheduleSpec

	if strings.TrimSpace(def.CrontabSchedule) != "" {
		spec.cron = def.CrontabSchedule
	}
	if strings.TrimSpace(def.RunFrequency) != "" {
		freq, err := ParseFrequency(def.RunFrequency)
		if err != nil {
			return scheduleSpec{}, err
		}
		spec.frequency = freq
	}

	if spec.cron == "" && spec.frequency == 0 {
		return scheduleSpec{}, fmt.Errorf("either run_frequency or crontab_schedule must be set")
	}
	if spec.cron != "" && spec.frequency > 0 {
		return scheduleSpec{}, fmt.Errorf("cannot set both run_frequency and crontab_schedule")
	}

	return spec, nil
}

// ValidationJob validates def.Table (or the configured table) in every scope
// of def.Scopes, or in the configured default scope when none are listed.
// Each run is a fresh task with its own id.
func ValidationJob(cfg *config.Config, def config.JobDef, every time.Duration, cron string, backend store.Backend, tasks *taskstore.Store) Job {
	table := strings.TrimSpace(def.Table)
	if table == "" {
		table = cfg.Store.Table
	}
	scopes := append([]string(nil), def.Scopes...)

	name := def.Name
	if name == "" {
		name = "validate:" + table
	}

	return Job{
		Name:       name,
		Table:      table,
		Frequency:  every,
		Cron:       cron,
		RunOnStart: true,
		Task: func(ctx context.Context) error {
			task := core.NewValidateTask()
			task.Backend = backend
			task.Table = table
			task.Scopes = scopes
			if len(scopes) == 0 && cfg.Store.Scope != "" {
				scope := cfg.Store.Scope
				task.Scope = &scope
			}
			task.TaskStore = tasks
			task.TaskStorePath = cfg.Server.TaskStorePath
			task.QuietMode = true
			task.Ctx = ctx

			if err := task.Validate(); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			if err := task.ExecuteTask(); err != nil {
				return fmt.Errorf("execution failed: %w", err)
			}
			if !task.Valid() {
				return fmt.Errorf("tree %s is not a valid nested set (task %s)", table, task.TaskID)
			}
			return nil
		},
	}
}
