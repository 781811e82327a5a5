package cmd

import (
	"fmt"
	"io"
	"time"

	"potsync/config"
	"potsync/database"
	"potsync/domain/entities"
	"potsync/domain/interfaces"
	"potsync/domain/services"
	"potsync/repository"

	"github.com/spf13/cobra"
)

// NewCooldownCommand creates the cooldown command group
func NewCooldownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Inspect and clear deposit cooldowns",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the cooldown state of every credit account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewConnection(cmd.Context(), config.Get().GetDatabaseURL())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			accounts := repository.NewAccountRepository(db)
			credit, err := accounts.ListCredit(cmd.Context())
			if err != nil {
				return err
			}
			manager := services.NewCooldownManager(accounts, config.Get().DepositCooldownHours, nil)
			printCooldowns(cmd.OutOrStdout(), credit, manager)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <account>",
		Short: "Clear the cooldown of one credit account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewConnection(cmd.Context(), config.Get().GetDatabaseURL())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			accounts := repository.NewAccountRepository(db)
			account, err := accounts.GetCredit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if account == nil {
				return fmt.Errorf("credit account %q: %w", args[0], entities.ErrAccountNotFound)
			}

			manager := services.NewCooldownManager(accounts, config.Get().DepositCooldownHours, nil)
			if err := manager.Clear(cmd.Context(), account.Type); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cooldown for %s\n", account.Type)
			return nil
		},
	})

	return cmd
}

func printCooldowns(out io.Writer, accounts []*entities.CreditAccount, manager interfaces.CooldownManager) {
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No credit accounts linked")
		return
	}
	for _, account := range accounts {
		status := manager.Status(account)
		line := fmt.Sprintf("%-16s %-8s", account.Type, status.State)
		if status.Cooldown.Until != nil {
			line += " until " + status.Cooldown.Until.UTC().Format(time.RFC3339)
		}
		fmt.Fprintln(out, line)
	}
}
