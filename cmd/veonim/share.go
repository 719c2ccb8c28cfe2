package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/damianesteban/veonim"
)

// NewShareCommand builds the saved-share management command.
func NewShareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Manage saved shares",
	}

	cmd.AddCommand(newShareSaveCommand())
	cmd.AddCommand(newShareListCommand())
	cmd.AddCommand(newShareForgetCommand())

	return cmd
}

func newShareSaveCommand() *cobra.Command {
	var token string
	var scope string
	var ttl string

	cmd := &cobra.Command{
		Use:   "save <url>",
		Short: "Save a share for later attach runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, urlToken, err := veonim.SplitShareURL(args[0])
			if err != nil {
				return err
			}

			tokenValue := token
			if tokenValue == "" {
				tokenValue = urlToken
			}
			if tokenValue == "" {
				return fmt.Errorf("share token is required; pass --token or a share URL")
			}

			var expiresAt time.Time
			if ttl != "" {
				parsed, err := time.ParseDuration(ttl)
				if err != nil {
					return fmt.Errorf("invalid ttl: %w", err)
				}
				expiresAt = time.Now().UTC().Add(parsed)
			}

			if err := veonim.SaveShare(endpoint, tokenValue, veonim.ShareScope(scope), expiresAt); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "saved share for %s\n", endpoint)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&token, "token", "t", "", "share token (overrides the URL query)")
	flags.StringVar(&scope, "scope", "", "scope label recorded with the share: view or control")
	flags.StringVar(&ttl, "ttl", "", "how long the saved share stays valid (e.g. 1h, 30m)")

	return cmd
}

func newShareListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved shares",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := veonim.SavedShares()
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(entries)
		},
	}

	return cmd
}

func newShareForgetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget <endpoint>",
		Short: "Forget a saved share",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, _, err := veonim.SplitShareURL(args[0])
			if err != nil {
				return err
			}
			removed, err := veonim.ForgetShare(endpoint)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no saved share for %s", endpoint)
			}
			return nil
		},
	}

	return cmd
}
