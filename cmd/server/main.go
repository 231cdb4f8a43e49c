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

// Command server runs only the REST API. The config comes from $MPTT_CONFIG,
// ./mptt.yaml or mptt.yaml in the installation root, in that order.
package main

import (
	"os"
	"path/filepath"

	"github.com/pgedge/mptt/internal/cli"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/logger"
)

func configPath() (string, error) {
	if env := os.Getenv("MPTT_CONFIG"); env != "" {
		return env, nil
	}
	if _, err := os.Stat("mptt.yaml"); err == nil {
		return "mptt.yaml", nil
	}
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(filepath.Dir(execPath)), "mptt.yaml"), nil
}

func main() {
	cfgPath, err := configPath()
	if err != nil {
		logger.Fatal("unable to determine executable path", "err", err)
	}
	if err := config.Init(cfgPath); err != nil {
		logger.Fatal("loading config", "path", cfgPath, "err", err)
	}

	app := cli.SetupCLI()
	args := append([]string{os.Args[0], "server"}, os.Args[1:]...)
	if err := app.Run(args); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
