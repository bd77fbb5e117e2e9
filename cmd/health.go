package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the inference backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		analyzer, err := newAnalyzer()
		if err != nil {
			return err
		}
		status := analyzer.BackendStatus(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "model: %s\nbackend: %s\n", analyzer.Model(), status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
