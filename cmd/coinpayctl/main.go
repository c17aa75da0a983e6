// coinpayctl is the operator CLI for gateway settings and callback secrets.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitstack/coinpay/config"
	"github.com/fitstack/coinpay/internal/adapters/events"
	"github.com/fitstack/coinpay/internal/adapters/memory"
	"github.com/fitstack/coinpay/internal/bootstrap"
)

var Version = "dev"

// session is what every command operates on.
type session struct {
	cfg    *config.Config
	svc    *bootstrap.Services
	closer func() error

	// ephemeral is set when settings live in process memory and vanish on exit.
	ephemeral bool
}

// opener builds the session. Tests swap it for an in-memory one.
type opener func(ctx context.Context) (*session, error)

func openFromEnv(ctx context.Context) (*session, error) {
	cfg := config.Load()
	stores, err := bootstrap.OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	_, ephemeral := stores.Settings.(*memory.SettingsStore)
	return &session{
		cfg:       cfg,
		svc:       bootstrap.NewServices(cfg, stores, bootstrap.Processors(cfg), events.NoopPublisher{}),
		closer:    stores.Close,
		ephemeral: ephemeral,
	}, nil
}

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "coinpayctl",
		Short:         "Manage coinpay gateway settings and callback secrets",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(gatewaysCmd(open))
	rootCmd.AddCommand(configureCmd(open))
	rootCmd.AddCommand(notifyURLCmd(open))
	rootCmd.AddCommand(rotateSecretCmd(open))

	return rootCmd
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, open opener, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if s.closer != nil {
			_ = s.closer()
		}
	}()
	return fn(ctx, s)
}
