package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var skipIndexes bool

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the schema and indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := pool.ApplySchema(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "init-db:", err)
			os.Exit(exitSysError)
		}
		if !skipIndexes {
			if err := pool.ApplyIndexes(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "init-db:", err)
				os.Exit(exitSysError)
			}
		}
		fmt.Println("Database initialized")
		fmt.Println("  database:", pool.Config().Database)
		return nil
	},
}

func init() {
	initDBCmd.Flags().BoolVar(&skipIndexes, "skip-indexes", false, "create tables only, defer index creation")
}
