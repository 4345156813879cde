package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pharmaai/pharmadb/internal/service"
)

var (
	genOpts service.GeneratorOptions
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Seed the database with sample data",
	Long: `Generate inserts a synthetic but plausible data set: pharmacopoeia
entries, inspectors, laboratories, access grants, consultation
sessions with messages, and experiments with data points. Re-running
is safe; duplicate natural keys are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen := service.NewGenerator(daos, logger, genOpts.Seed)
		counts, err := gen.Generate(cmd.Context(), genOpts)
		if err != nil {
			return err
		}
		fmt.Println("Sample data generated")
		fmt.Println("  items:        ", counts.Items)
		fmt.Println("  inspectors:   ", counts.Inspectors)
		fmt.Println("  laboratories: ", counts.Laboratories)
		fmt.Println("  grants:       ", counts.Grants)
		fmt.Println("  conversations:", counts.Conversations)
		fmt.Println("  messages:     ", counts.Messages)
		fmt.Println("  experiments:  ", counts.Experiments)
		fmt.Println("  data points:  ", counts.DataPoints)
		fmt.Println("  configs:      ", counts.Configs)
		return nil
	},
}

func init() {
	defaults := service.DefaultGeneratorOptions()
	generateCmd.Flags().IntVar(&genOpts.Items, "items", defaults.Items, "pharmacopoeia entries to generate")
	generateCmd.Flags().IntVar(&genOpts.Inspectors, "inspectors", defaults.Inspectors, "inspectors to generate")
	generateCmd.Flags().IntVar(&genOpts.Laboratories, "labs", defaults.Laboratories, "laboratories to generate")
	generateCmd.Flags().IntVar(&genOpts.Grants, "grants", defaults.Grants, "lab access grants to generate")
	generateCmd.Flags().IntVar(&genOpts.Conversations, "conversations", defaults.Conversations, "conversations to generate")
	generateCmd.Flags().IntVar(&genOpts.Experiments, "experiments", defaults.Experiments, "experiments to generate")
	generateCmd.Flags().Int64Var(&genOpts.Seed, "seed", 0, "random seed (0 = time-based)")
}
