package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cv-analyzer/internal/services"

	"github.com/spf13/cobra"
)

var analyzeText string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a CV file or text without starting the server",
	Example: `  cv-analyzer analyze resume.pdf
  cv-analyzer analyze --text "Jean Dupont, développeur Go..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (analyzeText == "") {
			return errors.New("provide either a file argument or --text")
		}

		analyzer, err := newAnalyzer()
		if err != nil {
			return err
		}

		var analysis *services.Analysis
		if analyzeText != "" {
			analysis, err = analyzer.AnalyzeText(cmd.Context(), analyzeText)
		} else {
			data, readErr := os.ReadFile(args[0])
			if readErr != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], readErr)
			}
			analysis, err = analyzer.AnalyzeDocument(cmd.Context(), services.UploadedDocument{
				Filename: filepath.Base(args[0]),
				Data:     data,
			})
		}
		if err != nil {
			if kind := services.KindOf(err); kind != "" && !kind.IsClientError() {
				return fmt.Errorf("analysis failed: %w", err)
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# model: %s, original length: %d\n\n", analysis.Model, analysis.OriginalLength)
		fmt.Fprintln(out, analysis.Text)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeText, "text", "t", "", "CV text to analyze instead of a file")
	rootCmd.AddCommand(analyzeCmd)
}
