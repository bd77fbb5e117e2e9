package cmd

import (
	"fmt"
	"os"

	"cv-analyzer/internal/config"
	"cv-analyzer/internal/logger"
	"cv-analyzer/internal/services"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cv-analyzer",
	Short: "CV analysis service backed by a local language model",
	Long: `cv-analyzer accepts a résumé as text or as a PDF, DOCX or TXT file,
extracts its text and asks a locally hosted model for a critique and a
rewritten version.

Without a subcommand it starts the HTTP service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Init(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file; environment variables take precedence")
}

// newAnalyzer builds the pipeline from the loaded configuration.
func newAnalyzer() (*services.Analyzer, error) {
	client, err := services.NewInferenceClient(services.ClientConfig{
		Provider:      cfg.Inference.Provider,
		BaseURL:       cfg.Inference.BaseURL,
		Model:         cfg.Inference.Model,
		APIKey:        cfg.Inference.APIKey,
		Timeout:       cfg.Inference.Timeout,
		HealthTimeout: cfg.Inference.HealthTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inference client: %w", err)
	}

	extractor := services.NewTextExtractor(services.NewTextSanitizer())
	analyzer, err := services.NewAnalyzer(extractor, client, cfg.Upload.AllowedExtensions)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"provider":          cfg.Inference.Provider,
		"baseUrl":           cfg.Inference.BaseURL,
		"model":             cfg.Inference.Model,
		"timeout":           cfg.Inference.Timeout.String(),
		"allowedExtensions": cfg.Upload.AllowedExtensions,
		"maxCharsPerChunk":  cfg.Analysis.MaxCharsPerChunk,
	}).Info("Analyzer configured")

	return analyzer, nil
}
