package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"flowsync/internal/bootstrap"
	"flowsync/internal/config"
	"flowsync/pkg/logging"
	"flowsync/internal/manifest"
	"flowsync/internal/repository"
	"flowsync/internal/secrets"
)

func main() {
	var (
		configPath string
		baseDir    string
	)

	root := &cobra.Command{
		Use:   "flowsync-bootstrap",
		Short: "One-shot reconciler that materializes the owner account and manifest credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if baseDir != "" {
				cfg.BaseDir = baseDir
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	root.Flags().StringVar(&baseDir, "base-dir", "", "sync tree root (overrides SYNC_BASE_DIR)")

	if err := root.Execute(); err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewLogger()

	if err := cfg.ValidateDB(); err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := repository.NewPostgresStore(pool)
	manifests := manifest.NewStore(cfg.BaseDir)

	r := bootstrap.NewReconciler(store, manifests, secrets.OSEnv, logger, bootstrap.Options{
		OwnerEmail:    cfg.Owner.Email,
		OwnerPassword: cfg.Owner.Password,
		EncryptionKey: cfg.EncryptionKey,
		BaseDir:       cfg.BaseDir,
	})

	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Bootstrap complete: %d created, %d updated, %d skipped",
		summary.Created, summary.Updated, summary.Skipped)
	return nil
}
