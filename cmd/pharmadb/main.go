// Package main provides the pharmadb CLI: schema management, sample
// data generation, and the API server for the pharmacopoeia
// inspection database.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pharmaai/pharmadb/internal/config"
	"github.com/pharmaai/pharmadb/internal/dao"
	"github.com/pharmaai/pharmadb/internal/db"
)

// Exit codes.
const (
	exitSuccess  = 0
	exitUsage    = 1
	exitSysError = 2
)

var (
	// configFile is set by the --config flag.
	configFile string

	// flagVerbose enables debug logging.
	flagVerbose bool

	logger *slog.Logger

	// pool is the shared connection pool, opened by PersistentPreRunE
	// for commands that touch the database.
	pool *db.Pool

	daos *dao.DAOs
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pharmadb",
	Short: "pharmadb manages the pharmacopoeia inspection database",
	Long: `pharmadb is the operations tool for the PharmaAI inspection database.
It creates the schema, seeds sample data, reports table statistics,
and serves the JSON API used by the assistant frontend.`,
	PersistentPreRunE: openPool,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		closePool()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: env vars only)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initDBCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

// openPool loads config and connects the pool. The version command
// runs without a database.
func openPool(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	p, err := db.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	pool = p
	daos = dao.New(pool, logger)
	return nil
}

func closePool() {
	if pool != nil {
		pool.Close()
	}
}
