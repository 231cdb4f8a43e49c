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

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pgedge/mptt/internal/cli"
	"github.com/pgedge/mptt/pkg/config"
	"github.com/pgedge/mptt/pkg/logger"
)

func main() {
	if !shouldSkipConfig(os.Args[1:]) {
		if cfgPath := findConfig(); cfgPath != "" {
			if err := config.Init(cfgPath); err != nil {
				logger.Fatal("loading config", "path", cfgPath, "err", err)
			}
		} else {
			logger.Debug("no mptt.yaml found; using built-in defaults")
			config.Cfg = config.Defaults()
		}
	}

	app := cli.SetupCLI()
	if err := app.Run(os.Args); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// findConfig returns the first existing config file, in order of precedence:
// $MPTT_CONFIG, ./mptt.yaml, $HOME/.config/mptt/mptt.yaml, /etc/mptt/mptt.yaml.
func findConfig() string {
	var potentialPaths []string
	if envPath := os.Getenv("MPTT_CONFIG"); envPath != "" {
		potentialPaths = append(potentialPaths, envPath)
	}
	potentialPaths = append(potentialPaths, "mptt.yaml")
	if home, err := os.UserHomeDir(); err == nil {
		potentialPaths = append(potentialPaths, filepath.Join(home, ".config", "mptt", "mptt.yaml"))
	}
	potentialPaths = append(potentialPaths, "/etc/mptt/mptt.yaml")

	for _, p := range potentialPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func shouldSkipConfig(args []string) bool {
	if len(args) == 0 {
		return true
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" || arg == "help" {
			return true
		}
	}

	var commandPath []string
	for _, arg := range args {
		if arg == "--" {
			break
		}
		if strings.HasPrefix(arg, "-") {
			continue
		}
		commandPath = append(commandPath, arg)
		if len(commandPath) >= 2 {
			break
		}
	}

	if len(commandPath) == 0 {
		return true
	}
	return commandPath[0] == "config"
}
