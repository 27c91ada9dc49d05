package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flowsync/internal/api"
	"flowsync/internal/config"
	"flowsync/pkg/logging"
	"flowsync/internal/manifest"
	"flowsync/internal/schema"
	"flowsync/internal/workflows"
)

func main() {
	var (
		configPath string
		port       int
		secret     string
		baseDir    string
	)

	root := &cobra.Command{
		Use:   "flowsync-server",
		Short: "Webhook sync server that mirrors workflow and credential changes to files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if secret != "" {
				cfg.Server.Secret = secret
			}
			if baseDir != "" {
				cfg.BaseDir = baseDir
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	root.Flags().IntVar(&port, "port", 0, "listen port (overrides SERVER_PORT)")
	root.Flags().StringVar(&secret, "secret", "", "webhook shared secret (overrides WEBHOOK_SECRET)")
	root.Flags().StringVar(&baseDir, "base-dir", "", "sync tree root (overrides SYNC_BASE_DIR)")

	if err := root.Execute(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := logging.NewLogger()
	logger.Info("Starting workflow sync server")

	writer := workflows.NewWriter(cfg.BaseDir)
	manifests := manifest.NewStore(cfg.BaseDir)
	fetcher := schema.NewFetcher(cfg.Platform.URL, cfg.BaseDir, logger)
	reconciler := api.NewReconciler(manifests, fetcher, logger)

	srv := api.NewServer(writer, reconciler, logger)
	e := srv.NewEcho(cfg.Server.Secret)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting on %s (base dir %s)", addr, cfg.BaseDir)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error: %v", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}
