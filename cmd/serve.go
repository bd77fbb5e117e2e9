package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cv-analyzer/internal/handlers"
	"cv-analyzer/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	analyzer, err := newAnalyzer()
	if err != nil {
		return err
	}

	router := handlers.NewRouter(analyzer, cfg.Upload.MaxUploadBytes())
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
		// Analysis requests block for up to the inference timeout.
		WriteTimeout: cfg.Inference.Timeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 CV analyzer listening on port " + cfg.Port + " (model " + cfg.Inference.Model + ")")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
