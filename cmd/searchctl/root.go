package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"digital-twin-search/internal/config"
	"digital-twin-search/internal/logger"
	"digital-twin-search/services"
)

var (
	configFile string
	loadFiles  []string
	backend    string
	indexName  string
	logLevel   string

	cfg *config.Config
	svc *services.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "searchctl",
	Short: "Operate the chapter search index",
	Long: `searchctl creates the chapter index, indexes chapter extractions, answers
questions, lists documents and deletes documents from the command line.

Configuration comes from the environment (and .env), optionally overlaid by
--config. With --backend local the index lives in memory; use --load to
populate it before running a command.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			svc.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file overlaid on the environment configuration")
	rootCmd.PersistentFlags().StringSliceVar(&loadFiles, "load", nil, "Extraction files (YAML or JSON) indexed before the command runs")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Search backend: azure, atlas or local")
	rootCmd.PersistentFlags().StringVar(&indexName, "index", "", "Index name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level")
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() error {
	c, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if configFile != "" {
		if err := c.ApplyFile(configFile); err != nil {
			return err
		}
	}
	if backend != "" {
		c.SearchBackend = backend
	}
	if indexName != "" {
		c.SearchIndexName = indexName
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	// Logs go to stderr so stdout stays machine readable.
	logger.InitWithWriter(cfg, os.Stderr)
	return nil
}

func setupRuntime(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	rt, err := services.NewRuntime(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	svc = rt

	if len(loadFiles) == 0 {
		return nil
	}
	if res := rt.Schema.CreateOrUpdateIndex(cmd.Context()); !res.Success {
		return fmt.Errorf("failed to prepare index: %s", res.Error)
	}
	res, err := indexFiles(cmd.Context(), rt.Indexer, loadFiles)
	if err != nil {
		return err
	}
	if !res.Success {
		logger.Warn("Some slices failed to load", "failed", res.FailedCount, "errors", res.Errors)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resultError turns an unsuccessful operation into a non-zero exit after the
// result has been printed.
func resultError(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return fmt.Errorf(format, args...)
}

