package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/relayd/internal/adapters/httpapi"
	"github.com/spf13/cobra"
)

type apiFlags struct {
	url   string
	token string
}

func (f *apiFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "api", "", "Base URL of a running relayd (default: http.addr from config)")
	cmd.Flags().StringVar(&f.token, "token", "", "API bearer token (default: first of http.tokens)")
}

func (f *apiFlags) client(app *app) (*httpapi.Client, error) {
	url := strings.TrimSpace(f.url)
	if url == "" {
		url = app.cfg.HTTP.Addr
	}

	token := f.token
	if token == "" && len(app.cfg.HTTP.Tokens) > 0 {
		token = app.cfg.HTTP.Tokens[0]
	}

	return httpapi.NewClient(url, token, nil)
}

func newSendCmd(app *app) *cobra.Command {
	var api apiFlags
	var req httpapi.SendMessageRequest
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Relay one message through a running relayd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := api.client(app)
			if err != nil {
				return err
			}

			if asJSON {
				resp, err := client.Send(cmd.Context(), req)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			resp, err := runSendProgress(cmd.Context(), cmd.ErrOrStderr(), req, client.Send)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sent to %s via %s (id %s)\n", resp.Target, resp.Sender, resp.MessageID)
			return err
		},
	}

	api.register(cmd)
	cmd.Flags().StringVar(&req.Target, "target", "", "Recipient identity")
	cmd.Flags().StringVar(&req.Text, "text", "", "Message text")
	cmd.Flags().StringVar(&req.Sender, "sender", "", "Sending identity (default: first registered)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func newSessionsCmd(app *app) *cobra.Command {
	var api apiFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live session states from a running relayd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := api.client(app)
			if err != nil {
				return err
			}

			views, err := client.Sessions(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				if views == nil {
					views = []httpapi.SessionView{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			if len(views) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return err
			}
			for _, view := range views {
				line := fmt.Sprintf("%s\t%s", view.Identity, view.State)
				if view.Attempt > 0 {
					line += fmt.Sprintf("\tattempt %d", view.Attempt)
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	api.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	return cmd
}
