package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmaai/pharmadb/internal/service"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts for every table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := service.CountTables(cmd.Context(), pool)
		if err != nil {
			return err
		}
		for _, c := range counts {
			fmt.Printf("%-24s %d\n", c.Table, c.Rows)
		}
		return nil
	},
}
