package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cocolabs/coco/pkg/config"
	"github.com/cocolabs/coco/pkg/engine"
	"github.com/cocolabs/coco/pkg/logger"
	"github.com/cocolabs/coco/pkg/memory"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "coco",
		Short:         "COCO memory subsystem: knowledge graph, facts and hierarchical conversation memory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "config file path")

	root.AddCommand(
		consoleCmd(),
		statusCmd(),
		qualityCmd(),
		optimizeCmd(),
		snapshotCmd(),
		maintenanceCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "coco.json"
	}
	return filepath.Join(home, ".coco", "config.json")
}

// openEngine wires config, logging, store and engine for one command run.
func openEngine() (*config.Config, *engine.Engine, *memory.MemoryDB, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Pretty)

	db, err := memory.Open(cfg.WorkspacePath())
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open memory store: %w", err)
	}

	eng, err := engine.New(cfg, db, engine.Options{})
	if err != nil {
		db.Close()
		return nil, nil, nil, nil, err
	}

	return cfg, eng, db, func() { db.Close() }, nil
}
