package cmd

import (
	"fmt"
	"strconv"

	"potsync/config"
	"potsync/database"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command group
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return database.MigrateUp(config.Get().GetDatabaseURL())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid steps %q: must be a positive integer", args[0])
				}
				steps = n
			}
			return database.MigrateDown(config.Get().GetDatabaseURL(), steps)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := database.MigrateStatus(config.Get().GetDatabaseURL())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !status.Applied {
				fmt.Fprintln(out, "No migrations applied")
				return nil
			}
			fmt.Fprintf(out, "Version: %d\n", status.Version)
			if status.Dirty {
				fmt.Fprintln(out, "Status: dirty (a migration failed part way)")
			}
			return nil
		},
	})

	return cmd
}
