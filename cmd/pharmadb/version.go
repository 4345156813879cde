package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmaai/pharmadb/pkg/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pharmadb version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pharmadb", types.Version)
	},
}
