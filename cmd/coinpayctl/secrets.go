package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitstack/coinpay/internal/core/service"
)

var errEphemeralSecrets = errors.New("callback secrets would be lost on exit: set STORE_DRIVER to mysql or postgres")

// persistentSecrets refuses to hand out a secret no server will ever know.
func persistentSecrets(s *session) error {
	if s.ephemeral {
		return errEphemeralSecrets
	}
	return nil
}

func notifyURLCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-url [gateway]",
		Short: "Print the callback URL to register with the processor",
		Long: `Print the callback URL to register with the processor.
The callback secret is generated on first use and kept afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				if err := persistentSecrets(s); err != nil {
					return err
				}
				secret, err := s.svc.Settings.EnsureCallbackSecret(ctx, args[0])
				if err != nil {
					return err
				}
				u, err := service.NotifyURL(s.cfg.Server.PublicBaseURL, args[0], secret)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
				return nil
			})
		},
	}
}

func rotateSecretCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-secret [gateway]",
		Short: "Replace the callback secret and print the new callback URL",
		Long: `Replace the callback secret and print the new callback URL.
Callbacks sent to the old URL are rejected from now on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, open, func(ctx context.Context, s *session) error {
				if err := persistentSecrets(s); err != nil {
					return err
				}
				secret, err := s.svc.Settings.RotateCallbackSecret(ctx, args[0])
				if err != nil {
					return err
				}
				u, err := service.NotifyURL(s.cfg.Server.PublicBaseURL, args[0], secret)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, u)
				fmt.Fprintln(out, "Register this URL with the processor; the previous one no longer authenticates.")
				return nil
			})
		},
	}
}
