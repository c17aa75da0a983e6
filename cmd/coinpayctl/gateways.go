package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitstack/coinpay/internal/core/domain"
)

func gatewaysCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "gateways",
		Short: "List registered gateways and their settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Gateways")
				fmt.Fprintln(out, strings.Repeat("=", 40))

				for _, id := range s.svc.Gateways.IDs() {
					gs, err := s.svc.Settings.Load(ctx, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\n%s\n", id)
					fmt.Fprintf(out, "  Enabled:     %t\n", gs.Enabled)
					fmt.Fprintf(out, "  Title:       %s\n", gs.Title)
					fmt.Fprintf(out, "  Credentials: %s\n", credentialStatus(gs))
					fmt.Fprintf(out, "  Secret:      %s\n", setOrNot(gs.CallbackSecret))
					if gs.AccountEmail != "" {
						fmt.Fprintf(out, "  Account:     %s\n", gs.AccountEmail)
					}
					if gs.AccountError != "" {
						fmt.Fprintf(out, "  Last error:  %s\n", gs.AccountError)
					}
				}
				return nil
			})
		},
	}
}

func configureCmd(open opener) *cobra.Command {
	var (
		apiKey, apiSecret  string
		title, description string
		enabled            bool
	)

	cmd := &cobra.Command{
		Use:   "configure [gateway]",
		Short: "Save gateway settings and validate the API credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				current, err := s.svc.Settings.Load(ctx, args[0])
				if err != nil {
					return err
				}

				flags := cmd.Flags()
				if flags.Changed("api-key") {
					current.APIKey = apiKey
				}
				if flags.Changed("api-secret") {
					current.APISecret = apiSecret
				}
				if flags.Changed("title") {
					current.Title = title
				}
				if flags.Changed("description") {
					current.Description = description
				}
				if flags.Changed("enabled") {
					current.Enabled = enabled
				}

				account, err := s.svc.Settings.Configure(ctx, *current)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s connected to account %s\n", args[0], account.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Processor API key")
	cmd.Flags().StringVar(&apiSecret, "api-secret", "", "Processor API secret")
	cmd.Flags().StringVar(&title, "title", "", "Title shown on the checkout page")
	cmd.Flags().StringVar(&description, "description", "", "Description shown on the checkout page")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Offer the gateway at checkout")

	return cmd
}

func credentialStatus(s *domain.GatewaySettings) string {
	if s.Credentials().Complete() {
		return "configured"
	}
	return "missing"
}

func setOrNot(v string) string {
	if v == "" {
		return "not generated"
	}
	return "set"
}
