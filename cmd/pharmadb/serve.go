package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pharmaai/pharmadb/internal/service"
	"github.com/pharmaai/pharmadb/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tx := service.NewTxService(pool, daos, logger)
		queries := service.NewQueryService(pool, logger)
		server := web.NewServer(pool, daos, tx, queries, logger)
		return server.Serve(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
}
