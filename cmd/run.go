package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"potsync/api"
	"potsync/application"
	"potsync/config"
	"potsync/database"
	"potsync/domain/services"
	"potsync/repository"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command
type RunOptions struct {
	*RootOptions
	Migrate bool
}

// NewRunCommand creates the run command
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync worker and HTTP status server",
		Long: `Run the interval sync worker, the HTTP status server and the event
publisher until interrupted. One tick runs at start-up and then every
SYNC_INTERVAL_SECONDS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runService(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Migrate, "migrate", true, "apply pending migrations before starting")

	return cmd
}

func runService(ctx context.Context, opts *RunOptions) error {
	cfg := config.Get()
	log.WithField("environment", cfg.Environment).Info("Starting potsync...")

	if opts.Migrate {
		if err := database.MigrateUp(cfg.GetDatabaseURL()); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	worker := application.NewSyncWorker(a.engine, cfg.SyncInterval())
	stopWorker := worker.Start(ctx)
	defer stopWorker()

	server := api.NewServer(
		worker,
		repository.NewSyncRunRepository(a.db),
		a.accounts,
		services.NewCooldownManager(a.accounts, cfg.DepositCooldownHours, nil),
		a.db,
	)

	log.WithField("interval", cfg.SyncInterval()).Info("potsync is running")
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	log.Info("Shutdown completed")
	return nil
}
