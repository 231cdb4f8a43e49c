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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mptt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: postgres
  table: shop.categories
  scope: books
postgres:
  host: db.internal
  port: 5433
  user: app
  dbname: catalog
attributes:
  name: text
  slug: varchar(64)
schedule_jobs:
  - name: nightly
    table: shop.categories
    scopes: [books, music]
schedule_config:
  - job_name: nightly
    crontab_schedule: "0 3 * * *"
    enabled: true
`)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres", c.Store.Backend)
	require.Equal(t, "shop.categories", c.Store.Table)
	require.Equal(t, "books", c.Store.Scope)
	require.Equal(t, "db.internal", c.Postgres.Host)
	require.Equal(t, 5433, c.Postgres.Port)
	// untouched keys keep their defaults
	require.Equal(t, int32(4), c.Postgres.MaxConns)
	require.Equal(t, 3, c.Postgres.MaxRetries)
	require.Equal(t, 5000, c.Server.ListenPort)
	require.Equal(t, "varchar(64)", c.Attributes["slug"])
	require.Len(t, c.ScheduleJobs, 1)
	require.Equal(t, []string{"books", "music"}, c.ScheduleJobs[0].Scopes)
	require.True(t, c.ScheduleConfig[0].Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"missing table", func(c *Config) { c.Store.Table = "" }, "store.table"},
		{"bad driver", func(c *Config) { c.SQLite.Driver = "sqlcipher" }, "sqlite.driver"},
		{"negative retries", func(c *Config) { c.Postgres.MaxRetries = -1 }, "max_retries"},
		{"postgres without target", func(c *Config) { c.Store.Backend = "postgres" }, "postgres.dsn"},
		{"postgres with dsn", func(c *Config) {
			c.Store.Backend = "postgres"
			c.Postgres.DSN = "postgres://localhost/db"
		}, ""},
		{"attribute without type", func(c *Config) { c.Attributes = map[string]string{"name": ""} }, "attributes"},
		{"unnamed job", func(c *Config) { c.ScheduleJobs = []JobDef{{Table: "t"}} }, "need a name"},
		{"schedule for unknown job", func(c *Config) {
			c.ScheduleConfig = []SchedDef{{JobName: "ghost", RunFrequency: "1h"}}
		}, "unknown job"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "store: [unclosed"))
	require.ErrorContains(t, err, "failed to parse")

	_, err = Load(writeConfig(t, "store:\n  backend: nope\n"))
	require.ErrorContains(t, err, "invalid config")
}

func TestGetFallsBackToDefaults(t *testing.T) {
	saved := Cfg
	t.Cleanup(func() { Cfg = saved })

	Cfg = nil
	require.Equal(t, "sqlite", Get().Store.Backend)

	require.NoError(t, Init(writeConfig(t, "store:\n  backend: memory\n")))
	require.Equal(t, "memory", Get().Store.Backend)
}
