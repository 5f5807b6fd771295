package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/relayd/internal/domain"
	"github.com/spf13/cobra"
)

func newLedgerCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or edit the list of identities restored on startup",
	}

	cmd.AddCommand(newLedgerListCmd(app), newLedgerRemoveCmd(app))
	return cmd
}

func newLedgerListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := app.ledger()
			if err != nil {
				return err
			}

			ids, err := ledger.Load(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				if ids == nil {
					ids = []domain.Identity{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
			}

			if len(ids) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "ledger is empty")
				return err
			}
			for _, id := range ids {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	return cmd
}

func newLedgerRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <identity>",
		Short: "Remove an identity and delete its credentials (relayd must not be serving it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.NormalizeIdentity(args[0])
			if err != nil {
				return err
			}

			inventory, err := app.inventory()
			if err != nil {
				return err
			}

			if err := inventory.Forget(cmd.Context(), id); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", id)
			return err
		},
	}
}
