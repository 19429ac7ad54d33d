package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/oauth-client/token"
)

var printAccessToken bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		tok, err := s.store.Load(cmd.Context(), s.key)
		if err != nil {
			return err
		}

		if printAccessToken {
			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken())
			return nil
		}
		return writeSummary(cmd, tok, time.Now())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Delete the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close()

		client, err := s.newClient(nil)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		if err := client.Forget(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted token %q\n", s.key)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&printAccessToken, "access-token", false, "print only the raw access token")
}

// summary is the credential-free view printed by show.
type summary struct {
	TokenType   string     `json:"token_type"`
	Scope       string     `json:"scope,omitempty"`
	Refreshable bool       `json:"refreshable"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
}

func writeSummary(cmd *cobra.Command, tok *token.AccessToken, now time.Time) error {
	sum := summary{
		TokenType:   tok.TokenType(),
		Scope:       tok.Scope(),
		Refreshable: tok.CanRefresh(),
		Expired:     tok.HasExpiredAt(now),
	}
	if exp, ok := tok.ExpiresAt(); ok {
		exp = exp.UTC()
		sum.ExpiresAt = &exp
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
