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

// Package scheduler runs periodic tree validations with gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/pgedge/mptt/pkg/logger"
)

// Job is one periodic task. Exactly one of Frequency and Cron is set.
type Job struct {
	Name  string
	Table string

	Frequency  time.Duration
	Cron       string
	RunOnStart bool

	Task func(context.Context) error
}

func (j Job) definition() (gocron.JobDefinition, error) {
	switch {
	case j.Task == nil:
		return nil, fmt.Errorf("scheduler: job %q has no task", j.Name)
	case j.Cron != "" && j.Frequency > 0:
		return nil, fmt.Errorf("scheduler: job %q sets both frequency and cron", j.Name)
	case j.Cron != "":
		return gocron.CronJob(j.Cron, false), nil
	case j.Frequency > 0:
		return gocron.DurationJob(j.Frequency), nil
	}
	return nil, fmt.Errorf("scheduler: job %q requires either frequency or cron", j.Name)
}

func (j Job) logger() *log.Logger {
	if j.Table == "" {
		return logger.With("job", j.Name)
	}
	return logger.With("job", j.Name, "table", j.Table)
}

// run executes the task once, logging instead of returning its error so a
// failing validation never unschedules the job.
func (j Job) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	l := j.logger()
	started := time.Now()
	if err := j.Task(ctx); err != nil {
		l.Error("run failed", "err", err)
		return
	}
	l.Debug("run finished", "took", time.Since(started).Round(time.Millisecond))
}

type Manager struct {
	scheduler gocron.Scheduler
	jobs      []Job
}

func NewManager(jobs ...Job) (*Manager, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{scheduler: sched, jobs: jobs}, nil
}

// Run schedules every job and blocks until ctx is done. All schedules are
// checked before anything runs. A run still going when the next one is due
// delays it instead of overlapping.
func (m *Manager) Run(ctx context.Context) error {
	if len(m.jobs) == 0 {
		logger.Info("scheduler: no jobs registered; exiting")
		return nil
	}

	defs := make([]gocron.JobDefinition, len(m.jobs))
	for i, job := range m.jobs {
		def, err := job.definition()
		if err != nil {
			return err
		}
		defs[i] = def
	}

	for i, job := range m.jobs {
		if job.RunOnStart {
			job.run(ctx)
		}
		gJob, err := m.scheduler.NewJob(defs[i], gocron.NewTask(job.run, ctx),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("scheduler: schedule job %q: %w", job.Name, err)
		}
		job.logger().Info("scheduled", "id", gJob.ID())
	}

	m.scheduler.Start()
	<-ctx.Done()
	logger.Info("scheduler: shutting down")
	if err := m.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	return nil
}

func RunJobs(ctx context.Context, jobs []Job) error {
	m, err := NewManager(jobs...)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

func RunSingleJob(ctx context.Context, job Job) error {
	return RunJobs(ctx, []Job{job})
}

// ParseFrequency parses a Go duration. A whole number of days ("1d", "7d")
// is accepted as well.
func ParseFrequency(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("frequency string cannot be empty")
	}
	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		if n, err = strconv.Atoi(days); err == nil {
			d = time.Duration(n) * 24 * time.Hour
		}
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("parse frequency %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("frequency must be positive: %s", raw)
	}
	return d, nil
}
