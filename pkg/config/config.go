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
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Bolt     BoltConfig     `yaml:"bolt"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`

	// Attributes maps extra tree columns to their SQL type.
	Attributes map[string]string `yaml:"attributes"`

	ScheduleJobs   []JobDef   `yaml:"schedule_jobs"`
	ScheduleConfig []SchedDef `yaml:"schedule_config"`

	DebugMode bool   `yaml:"debug_mode"`
	LogLevel  string `yaml:"log_level,omitempty"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format,omitempty"` // text | json | logfmt
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // postgres | sqlite | bolt | memory
	Table   string `yaml:"table"`
	Scope   string `yaml:"scope,omitempty"`
}

// PostgresConfig selects the database either through DSN or, when DSN is
// empty, through the individual connection fields.
type PostgresConfig struct {
	DSN               string `yaml:"dsn,omitempty"`
	Host              string `yaml:"host,omitempty"`
	Port              int    `yaml:"port,omitempty"`
	User              string `yaml:"user,omitempty"`
	Password          string `yaml:"password,omitempty"`
	DBName            string `yaml:"dbname,omitempty"`
	SSLMode           string `yaml:"sslmode,omitempty"`
	MaxConns          int32  `yaml:"max_conns"`
	StatementTimeout  int    `yaml:"statement_timeout"`  // ms
	ConnectionTimeout int    `yaml:"connection_timeout"` // s
	MaxRetries        int    `yaml:"max_retries"`
}

type SQLiteConfig struct {
	Path       string `yaml:"path"`
	Driver     string `yaml:"driver"` // sqlite3 (cgo) | sqlite (pure Go)
	MaxRetries int    `yaml:"max_retries"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	ListenAddress string `yaml:"listen_address"`
	ListenPort    int    `yaml:"listen_port"`
	TLSCertFile   string `yaml:"tls_cert_file,omitempty"`
	TLSKeyFile    string `yaml:"tls_key_file,omitempty"`
	// JWTSecret enables HS256 bearer auth when set.
	JWTSecret     string `yaml:"jwt_secret,omitempty"`
	TaskStorePath string `yaml:"task_store_path"`
}

// WatchConfig drives the logical-replication watcher (postgres only).
type WatchConfig struct {
	Publication string `yaml:"publication"`
	Slot        string `yaml:"slot"`
	// StatusInterval is the standby status update period, in seconds.
	StatusInterval int `yaml:"status_interval"`
}

// JobDef is a periodic validation of one tree table.
type JobDef struct {
	Name   string   `yaml:"name"`
	Table  string   `yaml:"table"`
	Scopes []string `yaml:"scopes,omitempty"`
}

type SchedDef struct {
	JobName         string `yaml:"job_name"`
	CrontabSchedule string `yaml:"crontab_schedule,omitempty"`
	RunFrequency    string `yaml:"run_frequency,omitempty"`
	Enabled         bool   `yaml:"enabled"`
}

// Cfg holds the loaded config for the whole app.
var Cfg *Config

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{Backend: "sqlite", Table: "tree_nodes"},
		Postgres: PostgresConfig{
			MaxConns:          4,
			StatementTimeout:  30000,
			ConnectionTimeout: 10,
			MaxRetries:        3,
		},
		SQLite: SQLiteConfig{Path: "mptt.db", Driver: "sqlite3", MaxRetries: 3},
		Bolt:   BoltConfig{Path: "mptt.bolt"},
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			ListenPort:    5000,
			TaskStorePath: "mptt_tasks.db",
		},
		Watch: WatchConfig{
			Publication:    "mptt_pub",
			Slot:           "mptt_slot",
			StatusInterval: 10,
		},
	}
}

// Load reads and parses path into a Config layered over Defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Defaults()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// Init loads the config and assigns it to the package variable.
func Init(path string) error {
	c, err := Load(path)
	if err != nil {
		return err
	}
	Cfg = c
	return nil
}

// Get returns Cfg, falling back to Defaults when nothing was loaded.
func Get() *Config {
	if Cfg == nil {
		Cfg = Defaults()
	}
	return Cfg
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "postgres", "sqlite", "bolt", "memory":
	default:
		return fmt.Errorf("store.backend must be one of postgres, sqlite, bolt, memory; got %q", c.Store.Backend)
	}
	if c.Store.Table == "" {
		return fmt.Errorf("store.table is required")
	}
	switch c.SQLite.Driver {
	case "", "sqlite3", "sqlite":
	default:
		return fmt.Errorf("sqlite.driver must be sqlite3 or sqlite; got %q", c.SQLite.Driver)
	}
	if c.Postgres.MaxRetries < 0 || c.SQLite.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if strings.EqualFold(c.Store.Backend, "postgres") && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return fmt.Errorf("postgres backend needs postgres.dsn or postgres.host")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("log_format must be text, json or logfmt; got %q", c.LogFormat)
	}
	if c.Watch.StatusInterval < 0 {
		return fmt.Errorf("watch.status_interval cannot be negative")
	}
	for name, typ := range c.Attributes {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(typ) == "" {
			return fmt.Errorf("attributes need a name and a type")
		}
	}

	jobs := make(map[string]struct{}, len(c.ScheduleJobs))
	for _, j := range c.ScheduleJobs {
		if j.Name == "" {
			return fmt.Errorf("schedule_jobs entries need a name")
		}
		jobs[j.Name] = struct{}{}
	}
	for _, s := range c.ScheduleConfig {
		if _, ok := jobs[s.JobName]; !ok {
			return fmt.Errorf("schedule_config references unknown job %q", s.JobName)
		}
	}
	return nil
}
