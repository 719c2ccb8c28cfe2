package main

import (
	"github.com/spf13/cobra"

	"github.com/damianesteban/veonim"
	"pkt.systems/pslog"
)

// NewBootstrapCommand builds the bootstrap command.
func NewBootstrapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Initialize veonim config and TLS assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := pslog.Ctx(cmd.Context()).With("component", "bootstrap")
			cfg := veonim.DefaultConfig()
			_, err := veonim.Bootstrap(cfg, logger)
			return err
		},
	}

	return cmd
}
