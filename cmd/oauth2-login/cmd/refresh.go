package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var forceRefresh bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the stored token",
	Long:  "Refreshes the stored token when it has expired, or always with --force.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		client, err := s.newClient(nil)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if _, err := client.Restore(ctx); err != nil {
			return err
		}

		if forceRefresh {
			op, err := client.RefreshAccessToken(ctx, nil)
			if err != nil {
				return err
			}
			tok, err := op.Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed, %s\n", tok)
			return nil
		}

		tok, err := client.EnsureFreshToken(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Token is fresh, %s\n", tok)
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&forceRefresh, "force", false, "refresh even when the token has not expired")
}
