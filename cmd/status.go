package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	statusadapter "github.com/bnema/relayd/internal/adapters/render/status"
	"github.com/bnema/relayd/internal/application"
	"github.com/spf13/cobra"
)

const defaultStaleAfter = 14 * 24 * time.Hour

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show ledger identities and their stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inventory, err := app.inventory()
			if err != nil {
				return err
			}

			records, err := inventory.List(cmd.Context())
			if err != nil {
				return err
			}

			return writeRecordsOutput(cmd, app, records, staleAfter, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", defaultStaleAfter, "Flag credentials untouched for longer than this")

	return cmd
}

func writeRecordsOutput(cmd *cobra.Command, app *app, records []application.SessionRecord, staleAfter time.Duration, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	rendered, err := app.statusRenderer(records, statusadapter.RenderOptions{
		Now:        app.clock.Now(),
		StaleAfter: staleAfter,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
