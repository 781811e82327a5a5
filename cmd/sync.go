package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"potsync/application"
	"potsync/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command
func NewSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation tick and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, config.Get())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.RunTick(ctx)
			if result != nil {
				printTickResult(cmd, result)
			}
			if err != nil {
				return fmt.Errorf("reconciliation tick failed: %w", err)
			}
			return nil
		},
	}
}

func printTickResult(cmd *cobra.Command, result *application.TickResult) {
	log.WithFields(log.Fields{
		"run_id":    result.RunID,
		"status":    result.Status,
		"transfers": result.TransferCount(),
	}).Info("Tick finished")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s", result.RunID, result.Status)
	if result.Reason != "" {
		fmt.Fprintf(out, " (%s)", result.Reason)
	}
	fmt.Fprintln(out)
	for _, outcome := range result.Outcomes {
		fmt.Fprintf(out, "  %-16s %-20s transfers=%d", outcome.AccountType, outcome.Status, len(outcome.Transfers))
		if outcome.Error != "" {
			fmt.Fprintf(out, " error=%q", outcome.Error)
		}
		fmt.Fprintln(out)
	}
}
