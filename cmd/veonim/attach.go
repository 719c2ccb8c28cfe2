package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/damianesteban/veonim"
	"pkt.systems/pslog"
)

// NewAttachCommand builds the attach command.
func NewAttachCommand(loader *veonim.Loader) *cobra.Command {
	var token string
	var clientID string
	var control bool
	var insecure bool
	var save bool

	cmd := &cobra.Command{
		Use:   "attach [url]",
		Short: "Attach to a shared session",
		Long: `Attach mirrors a shared session onto this terminal. The url is
the share URL printed by veonim serve; a bare endpoint works together
with --token or a previously saved share.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return err
			}

			raw := cfg.Attach.Endpoint
			if len(args) > 0 {
				raw = args[0]
			}
			if raw == "" {
				return fmt.Errorf("a share URL or endpoint is required")
			}
			endpoint, urlToken, err := veonim.SplitShareURL(raw)
			if err != nil {
				return err
			}

			tokenValue := token
			if tokenValue == "" {
				tokenValue = urlToken
			}
			if tokenValue == "" {
				if entry, ok := veonim.LookupShare(endpoint, time.Now().UTC()); ok {
					tokenValue = entry.Token
				}
			}
			if tokenValue == "" {
				return fmt.Errorf("share token is required; pass --token or a share URL")
			}
			if save {
				if err := veonim.SaveShare(endpoint, tokenValue, "", time.Time{}); err != nil {
					return err
				}
			}

			insecureValue := insecure
			if !cmd.Flags().Changed("insecure") {
				insecureValue = cfg.Attach.Insecure
			}

			logPath := cfg.LogFile
			if logPath == "" {
				logPath = veonim.DefaultLogPath()
			}
			logger, closer, err := openClientLogger(logPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = closer.Close()
			}()
			logger = logger.With("component", "attach")
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			return veonim.Attach(ctx, veonim.AttachOptions{
				Endpoint:       endpoint,
				Token:          tokenValue,
				ClientID:       clientID,
				RequestControl: control,
				Insecure:       insecureValue,
				Logger:         logger,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&token, "token", "t", "", "share token (overrides the URL query)")
	flags.StringVar(&clientID, "client-id", "", "client id shown to other participants")
	flags.BoolVar(&control, "control", false, "request the input seat on connect")
	flags.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	flags.BoolVar(&save, "save", false, "remember this share for future attach runs")

	return cmd
}
