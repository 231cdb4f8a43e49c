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

package cli

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	server "github.com/pgedge/mptt/internal/api/http"
	"github.com/pgedge/mptt/internal/core"
	"github.com/pgedge/mptt/internal/infra/db"
	mcpserver "github.com/pgedge/mptt/internal/mcp"
	"github.com/pgedge/mptt/internal/scheduler"
	"github.com/pgedge/mptt/pkg/common"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/logger"
	"github.com/pgedge/mptt/pkg/nestedset"
	"github.com/pgedge/mptt/pkg/store"
	"github.com/pgedge/mptt/pkg/taskstore"
	"github.com/pgedge/mptt/pkg/types"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML string

func setLogLevel(ctx *cli.Context) error {
	cfg := config.Get()
	level := cfg.LogLevel
	if level == "" {
		level = log.InfoLevel.String()
	}
	if ctx.Bool("debug") || cfg.DebugMode {
		level = log.DebugLevel.String()
	}
	return logger.Configure(level, cfg.LogFormat)
}

func SetupCLI() *cli.App {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "table",
			Aliases: []string{"t"},
			Usage:   "Tree table (default: store.table from the config)",
		},
		&cli.StringFlag{
			Name:    "scope",
			Aliases: []string{"s"},
			Usage:   "Scope of the tree inside the table (default: store.scope, or the global tree)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Whether to suppress output",
			Value:   false,
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
			Value:   false,
		},
		&cli.BoolFlag{
			Name:  "skip-db-update",
			Usage: "Do not record the operation in the task store",
		},
	}

	relationshipFlag := &cli.StringFlag{
		Name:    "relationship",
		Aliases: []string{"r"},
		Usage:   "Placement relative to the reference node: first-child-of or after",
		Value:   nestedset.FirstChildOf.String(),
	}

	attrFlag := &cli.StringSliceFlag{
		Name:    "attr",
		Aliases: []string{"a"},
		Usage:   "Node attribute as key=value (repeatable); values are parsed as YAML scalars",
	}

	insertFlags := append([]cli.Flag{}, commonFlags...)
	insertFlags = append(insertFlags,
		&cli.Int64Flag{
			Name:     "reference",
			Aliases:  []string{"R"},
			Usage:    "Id of the reference node (required)",
			Required: true,
		},
		relationshipFlag,
		attrFlag,
	)

	importFlags := append([]cli.Flag{}, commonFlags...)
	importFlags = append(importFlags,
		&cli.Int64Flag{
			Name:     "reference",
			Aliases:  []string{"R"},
			Usage:    "Id of the reference node (required)",
			Required: true,
		},
		relationshipFlag,
	)

	moveFlags := append([]cli.Flag{}, commonFlags...)
	moveFlags = append(moveFlags,
		&cli.Int64Flag{
			Name:     "target",
			Aliases:  []string{"T"},
			Usage:    "Id of the target node (required)",
			Required: true,
		},
		relationshipFlag,
	)

	rootFlags := append([]cli.Flag{}, commonFlags...)
	rootFlags = append(rootFlags, attrFlag)

	showFlags := append([]cli.Flag{}, commonFlags...)
	showFlags = append(showFlags,
		&cli.Int64Flag{
			Name:  "root",
			Usage: "Only show the subtree under this node",
		},
		&cli.StringFlag{
			Name:    "label",
			Aliases: []string{"l"},
			Usage:   "Attribute printed next to each node (default: all attributes)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the nodes as JSON",
		},
	)

	validateFlags := append([]cli.Flag{}, commonFlags...)
	validateFlags = append(validateFlags,
		&cli.StringSliceFlag{
			Name:  "scopes",
			Usage: "Validate several scopes concurrently (repeatable); overrides --scope",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Aliases: []string{"c"},
			Usage:   "Maximum scopes validated at once",
			Value:   4,
		},
		&cli.BoolFlag{
			Name:  "report",
			Usage: "Write a JSON report file when the tree is invalid",
			Value: true,
		},
		&cli.BoolFlag{
			Name:    "schedule",
			Aliases: []string{"S"},
			Usage:   "Keep running the validation on a schedule (requires --every or --cron)",
		},
		&cli.StringFlag{
			Name:  "every",
			Usage: "Run frequency for --schedule, e.g. 10m or 1h",
		},
		&cli.StringFlag{
			Name:  "cron",
			Usage: "Crontab schedule for --schedule",
		},
	)

	configInitFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "Where to write the config file",
			Value:   "mptt.yaml",
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Overwrite an existing file",
		},
		&cli.BoolFlag{
			Name:  "stdout",
			Usage: "Print the config to stdout instead of writing a file",
		},
	}

	watchFlags := append([]cli.Flag{}, commonFlags...)
	watchFlags = append(watchFlags,
		&cli.StringFlag{Name: "publication", Usage: "Publication name (default: watch.publication)"},
		&cli.StringFlag{Name: "slot", Usage: "Replication slot name (default: watch.slot)"},
		&cli.BoolFlag{Name: "reset", Usage: "Drop and recreate the publication and slot"},
	)

	debugFlag := &cli.BoolFlag{
		Name:    "debug",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}

	app := &cli.App{
		Name:  "mptt",
		Usage: "MPTT - nested-set tree maintenance",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Manage configuration files",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Create a default mptt.yaml file",
						Flags:  configInitFlags,
						Action: ConfigInitCLI,
					},
				},
			},
			{
				Name:   "init",
				Usage:  "Create the tree table if it does not exist",
				Flags:  commonFlags,
				Action: InitTableCLI,
				Before: setLogLevel,
			},
			{
				Name:  "root",
				Usage: "Manage the root node of a tree",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "Create the root node of an empty tree",
						Flags:  rootFlags,
						Action: CreateRootCLI,
						Before: setLogLevel,
					},
				},
			},
			{
				Name:   "insert",
				Usage:  "Insert a node relative to a reference node",
				Flags:  insertFlags,
				Action: InsertCLI,
				Before: setLogLevel,
			},
			{
				Name:      "import",
				Usage:     "Insert a whole subtree described in a YAML or JSON file",
				ArgsUsage: "<file>",
				Flags:     importFlags,
				Action:    ImportCLI,
				Before:    setLogLevel,
			},
			{
				Name:      "move",
				Usage:     "Move a node and its subtree relative to a target node",
				ArgsUsage: "<node>",
				Flags:     moveFlags,
				Action:    MoveCLI,
				Before:    setLogLevel,
			},
			{
				Name:      "delete",
				Usage:     "Delete nodes and all of their descendants",
				ArgsUsage: "<id>[,<id>...]",
				Flags:     commonFlags,
				Action:    DeleteCLI,
				Before:    setLogLevel,
			},
			{
				Name:   "show",
				Usage:  "Print a tree",
				Flags:  showFlags,
				Action: ShowCLI,
				Before: setLogLevel,
			},
			{
				Name:   "validate",
				Usage:  "Check that a tree satisfies every nested-set invariant",
				Flags:  validateFlags,
				Action: ValidateCLI,
				Before: setLogLevel,
			},
			{
				Name:  "tasks",
				Usage: "Inspect recorded operations",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "Show one task",
						ArgsUsage: "<task-id>",
						Action:    TaskGetCLI,
					},
					{
						Name:  "list",
						Usage: "List recent tasks",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "table", Aliases: []string{"t"}, Usage: "Only tasks on this table"},
							&cli.StringFlag{Name: "scope", Aliases: []string{"s"}, Usage: "Only tasks on this scope (- for the global tree)"},
							&cli.StringFlag{Name: "type", Usage: "Only tasks of this type, e.g. move"},
							&cli.StringFlag{Name: "status", Usage: "Only tasks with this status, e.g. failed"},
							&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum tasks to list", Value: 20},
						},
						Action: TaskListCLI,
					},
					{
						Name:  "prune",
						Usage: "Delete finished tasks older than a given age",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "older-than", Usage: "Age such as 72h or 30d", Value: "30d"},
						},
						Action: TaskPruneCLI,
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Re-validate scopes as their rows change (postgres logical replication)",
				Flags:  watchFlags,
				Action: WatchCLI,
				Before: setLogLevel,
			},
			{
				Name:  "token",
				Usage: "Issue a bearer token for the API server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Usage: "Token subject (required)", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: 24 * time.Hour},
				},
				Action: IssueTokenCLI,
			},
			{
				Name:  "start",
				Usage: "Start the scheduler and the API server",
				Flags: []cli.Flag{
					debugFlag,
					&cli.StringFlag{
						Name:    "component",
						Aliases: []string{"C"},
						Usage:   "Component to start: scheduler, api, or all",
						Value:   "all",
					},
				},
				Action: StartSchedulerCLI,
				Before: setLogLevel,
			},
			{
				Name:   "server",
				Usage:  "Run the REST API server",
				Flags:  []cli.Flag{debugFlag},
				Action: StartAPIServerCLI,
				Before: setLogLevel,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the tree tools over MCP on stdio",
				Flags:  []cli.Flag{debugFlag},
				Action: StartMCPServerCLI,
				Before: setLogLevel,
			},
		},
	}

	return app
}

func initTemplateFile(ctx *cli.Context, content string, defaultPath string, label string, perm os.FileMode) error {
	outputPath := ctx.String("path")
	if outputPath == "" {
		outputPath = defaultPath
	}

	if ctx.Bool("stdout") || outputPath == "-" {
		fmt.Fprintln(ctx.App.Writer, content)
		return nil
	}

	if !ctx.Bool("force") {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("%s already exists at %s (use --force to overwrite)", label, outputPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("unable to verify existing %s at %s: %w", label, outputPath, err)
		}
	}

	dir := filepath.Dir(outputPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(outputPath, []byte(content), perm); err != nil {
		return fmt.Errorf("failed to write %s to %s: %w", label, outputPath, err)
	}

	fmt.Fprintf(ctx.App.Writer, "Wrote %s to %s\n", label, outputPath)
	return nil
}

func ConfigInitCLI(ctx *cli.Context) error {
	return initTemplateFile(ctx, defaultConfigYAML, "mptt.yaml", "config file", 0o644)
}

// parseAttrs turns key=value pairs into attributes. Values are decoded as
// YAML scalars so 3 is an integer and true a boolean; quote to keep text.
func parseAttrs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q (expected key=value)", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value for attribute %s: %w", key, err)
		}
		if value == nil && raw != "" && raw != "null" && raw != "~" {
			value = raw
		}
		attrs[key] = value
	}
	return attrs, nil
}

func treeRef(ctx *cli.Context, cfg *config.Config) types.TreeRef {
	ref := types.TreeRef{Table: cfg.Store.Table}
	if table := strings.TrimSpace(ctx.String("table")); table != "" {
		ref.Table = table
	}
	switch {
	case ctx.IsSet("scope"):
		scope := ctx.String("scope")
		ref.Scope = &scope
	case cfg.Store.Scope != "":
		scope := cfg.Store.Scope
		ref.Scope = &scope
	}
	return ref
}

// openBackend opens the configured store for the command's table. The
// caller closes it.
func openBackend(ctx *cli.Context, cfg *config.Config, table string) (store.Backend, error) {
	if table != cfg.Store.Table {
		copied := *cfg
		copied.Store.Table = table
		cfg = &copied
	}
	return db.OpenBackend(ctx.Context, cfg)
}

// prepare binds t to the command's tree and backend.
func prepare(ctx *cli.Context, t *core.TreeTask) (func(), error) {
	cfg := config.Get()
	t.TreeRef = treeRef(ctx, cfg)
	backend, err := openBackend(ctx, cfg, t.Table)
	if err != nil {
		return nil, err
	}
	t.Backend = backend
	t.TaskStorePath = cfg.Server.TaskStorePath
	t.SkipDBUpdate = ctx.Bool("skip-db-update")
	t.QuietMode = ctx.Bool("quiet")
	t.Ctx = ctx.Context
	return func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close store: %v", err)
		}
	}, nil
}

type runnable interface {
	Validate() error
	ExecuteTask() error
}

func execute(ctx *cli.Context, t *core.TreeTask, task runnable) error {
	closeFn, err := prepare(ctx, t)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := task.ExecuteTask(); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

func relationship(ctx *cli.Context) (nestedset.Relationship, error) {
	return nestedset.ParseRelationship(ctx.String("relationship"))
}

func InitTableCLI(ctx *cli.Context) error {
	var ref core.TreeTask
	closeFn, err := prepare(ctx, &ref)
	if err != nil {
		return err
	}
	defer closeFn()
	logger.Info("Tree table %s is ready", ref.Table)
	return nil
}

func CreateRootCLI(ctx *cli.Context) error {
	attrs, err := parseAttrs(ctx.StringSlice("attr"))
	if err != nil {
		return err
	}
	task := core.NewCreateRootTask()
	task.Attrs = attrs
	if err := execute(ctx, &task.TreeTask, task); err != nil {
		return err
	}
	logger.Info("Created root node %d in %s", task.RootID, task.Tree())
	fmt.Fprintln(ctx.App.Writer, task.RootID)
	return nil
}

func InsertCLI(ctx *cli.Context) error {
	rel, err := relationship(ctx)
	if err != nil {
		return err
	}
	attrs, err := parseAttrs(ctx.StringSlice("attr"))
	if err != nil {
		return err
	}
	task := core.NewInsertTask()
	task.Relationship = rel
	task.Reference = ctx.Int64("reference")
	task.Attrs = attrs
	if err := execute(ctx, &task.TreeTask, task); err != nil {
		return err
	}
	logger.Info("Inserted node %d %s node %d", task.IDs[0], rel, task.Reference)
	fmt.Fprintln(ctx.App.Writer, task.IDs[0])
	return nil
}

func ImportCLI(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("import needs exactly one subtree file")
	}
	rel, err := relationship(ctx)
	if err != nil {
		return err
	}
	task := core.NewImportTask()
	task.Relationship = rel
	task.Reference = ctx.Int64("reference")
	task.SubtreeFile = ctx.Args().First()
	if err := execute(ctx, &task.TreeTask, task); err != nil {
		return err
	}
	logger.Info("Imported %d node(s) from %s", len(task.IDs), task.SubtreeFile)
	for _, id := range task.IDs {
		fmt.Fprintln(ctx.App.Writer, id)
	}
	return nil
}

func MoveCLI(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("move needs exactly one node id")
	}
	nodeID, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid node id %q", ctx.Args().First())
	}
	rel, err := relationship(ctx)
	if err != nil {
		return err
	}
	task := core.NewMoveTask()
	task.NodeID = nodeID
	task.Relationship = rel
	task.Target = ctx.Int64("target")
	if err := execute(ctx, &task.TreeTask, task); err != nil {
		return err
	}
	if !task.Moved {
		return fmt.Errorf("node %d was not moved", nodeID)
	}
	logger.Info("Moved node %d %s node %d", nodeID, rel, task.Target)
	return nil
}

func DeleteCLI(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("delete needs at least one node id")
	}
	ids, err := common.ParseIDs(strings.Join(ctx.Args().Slice(), ","))
	if err != nil {
		return err
	}
	task := core.NewDeleteTask()
	task.IDs = ids
	if err := execute(ctx, &task.TreeTask, task); err != nil {
		return err
	}
	if len(task.Deleted) == 0 {
		logger.Warn("None of the given nodes exist in %s", task.Tree())
		return nil
	}
	logger.Info("Deleted %d node(s) from %s", len(task.Deleted), task.Tree())
	return nil
}

func ShowCLI(ctx *cli.Context) error {
	var ref core.TreeTask
	closeFn, err := prepare(ctx, &ref)
	if err != nil {
		return err
	}
	defer closeFn()

	var rootID *int64
	if ctx.IsSet("root") {
		id := ctx.Int64("root")
		rootID = &id
	}
	nodes, err := ref.Tree().GetTree(ctx.Context, rootID)
	if err != nil {
		return err
	}
	if rootID != nil && len(nodes) == 0 {
		return fmt.Errorf("node %d: %w", *rootID, nestedset.ErrNodeNotFound)
	}

	if ctx.Bool("json") {
		if nodes == nil {
			nodes = []nestedset.TreeNode{}
		}
		enc := json.NewEncoder(ctx.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(types.TreeResponse{TreeRef: ref.TreeRef, Nodes: nodes})
	}
	fmt.Fprint(ctx.App.Writer, common.RenderTree(nodes, ctx.String("label")))
	return nil
}

func ValidateCLI(ctx *cli.Context) error {
	cfg := config.Get()
	ref := treeRef(ctx, cfg)

	if ctx.Bool("schedule") {
		return scheduleValidation(ctx, cfg, ref)
	}

	task := core.NewValidateTask()
	task.Scopes = ctx.StringSlice("scopes")
	task.Concurrency = ctx.Int("concurrency")
	if err := execute(ctx, &task.TreeTask, task); err != nil {
		return err
	}

	if ctx.Bool("report") {
		if _, err := common.WriteValidationReport(task.Reports, ref.Table); err != nil {
			return err
		}
	}
	if !task.Valid() {
		return fmt.Errorf("tree %s is not a valid nested set", ref.Table)
	}
	return nil
}

func scheduleValidation(ctx *cli.Context, cfg *config.Config, ref types.TreeRef) error {
	every := strings.TrimSpace(ctx.String("every"))
	cron := strings.TrimSpace(ctx.String("cron"))
	if (every == "") == (cron == "") {
		return fmt.Errorf("--schedule needs exactly one of --every or --cron")
	}
	var freq time.Duration
	if every != "" {
		var err error
		if freq, err = scheduler.ParseFrequency(every); err != nil {
			return err
		}
	}

	backend, err := openBackend(ctx, cfg, ref.Table)
	if err != nil {
		return err
	}
	defer backend.Close()

	def := config.JobDef{Name: "validate:" + ref.Table, Table: ref.Table, Scopes: ctx.StringSlice("scopes")}
	if len(def.Scopes) == 0 && ref.Scope != nil {
		def.Scopes = []string{*ref.Scope}
	}
	job := scheduler.ValidationJob(cfg, def, freq, cron, backend, nil)

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("Validating %s on a schedule; press Ctrl+C to stop", ref.Table)
	return scheduler.RunSingleJob(runCtx, job)
}

func openTaskStore() (*taskstore.Store, error) {
	return taskstore.New(config.Get().Server.TaskStorePath)
}

func TaskGetCLI(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("tasks get needs exactly one task id")
	}
	tasks, err := openTaskStore()
	if err != nil {
		return err
	}
	defer tasks.Close()

	rec, err := tasks.Get(ctx.Args().First())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func TaskListCLI(ctx *cli.Context) error {
	tasks, err := openTaskStore()
	if err != nil {
		return err
	}
	defer tasks.Close()

	recs, err := tasks.Query(taskstore.Filter{
		Table:  ctx.String("table"),
		Scope:  ctx.String("scope"),
		Type:   ctx.String("type"),
		Status: ctx.String("status"),
		Limit:  ctx.Int("limit"),
	})
	if err != nil {
		return err
	}
	for _, rec := range recs {
		status := rec.Status
		if status == taskstore.StatusFailed {
			status = common.CrossMark + " " + status
		} else if status == taskstore.StatusCompleted {
			status = common.CheckMark + " " + status
		}
		fmt.Fprintf(ctx.App.Writer, "%s  %-11s %-13s %s  %s\n",
			rec.TaskID, rec.TaskType, status, rec.TreeTable, rec.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func TaskPruneCLI(ctx *cli.Context) error {
	age, err := scheduler.ParseFrequency(ctx.String("older-than"))
	if err != nil {
		return fmt.Errorf("invalid --older-than: %w", err)
	}
	tasks, err := openTaskStore()
	if err != nil {
		return err
	}
	defer tasks.Close()

	n, err := tasks.Prune(time.Now().Add(-age))
	if err != nil {
		return err
	}
	logger.Info("Pruned %d task(s) older than %s", n, age)
	return nil
}

func IssueTokenCLI(ctx *cli.Context) error {
	token, err := server.IssueToken(config.Get().Server.JWTSecret, ctx.String("subject"), ctx.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, token)
	return nil
}

func StartSchedulerCLI(ctx *cli.Context) error {
	cfg := config.Get()

	component := strings.ToLower(strings.TrimSpace(ctx.String("component")))
	runScheduler := false
	runAPI := false
	switch component {
	case "", "all":
		runScheduler = true
		runAPI = true
	case "scheduler":
		runScheduler = true
	case "api":
		runAPI = true
	default:
		return fmt.Errorf("invalid component %q (expected scheduler, api, or all)", component)
	}

	backend, err := db.OpenBackend(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	type runner struct {
		name string
		run  func(context.Context) error
	}

	var runners []runner

	if runScheduler {
		tasks, err := openTaskStore()
		if err != nil {
			return err
		}
		defer tasks.Close()

		jobs, err := scheduler.BuildJobsFromConfig(cfg, backend, tasks)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			logger.Info("scheduler: no enabled jobs found in configuration")
		} else {
			for _, job := range jobs {
				logger.Info("scheduler: registering job %s", job.Name)
			}
			runners = append(runners, runner{
				name: "scheduler",
				run: func(ctx context.Context) error {
					return scheduler.RunJobs(ctx, jobs)
				},
			})
		}
	}

	if runAPI {
		apiServer, err := server.New(cfg, backend)
		if err != nil {
			return fmt.Errorf("api server init failed: %w", err)
		}
		runners = append(runners, runner{
			name: "api-server",
			run:  apiServer.Run,
		})
	}

	if len(runners) == 0 {
		return nil
	}

	errCh := make(chan error, len(runners))
	for _, r := range runners {
		go func(r runner) {
			err := r.run(runCtx)
			if err != nil {
				err = fmt.Errorf("%s: %w", r.name, err)
			}
			errCh <- err
		}(r)
	}

	for i := 0; i < len(runners); i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			stop()
			return err
		}
	}

	return nil
}

func StartAPIServerCLI(ctx *cli.Context) error {
	cfg := config.Get()
	backend, err := db.OpenBackend(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	apiServer, err := server.New(cfg, backend)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return apiServer.Run(runCtx)
}

// StartMCPServerCLI serves on stdio, so logs must stay on stderr.
func StartMCPServerCLI(ctx *cli.Context) error {
	logger.SetOutput(os.Stderr)
	cfg := config.Get()
	backend, err := db.OpenBackend(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	tasks, err := openTaskStore()
	if err != nil {
		return err
	}
	defer tasks.Close()

	s := mcpserver.New(mcpserver.Deps{Backend: backend, Tasks: tasks, Table: cfg.Store.Table, Scope: cfg.Store.Scope})
	return mcpserver.ServeStdio(s)
}
