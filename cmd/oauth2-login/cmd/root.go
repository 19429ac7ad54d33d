// Package cmd implements the oauth2-login command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var (
	verbose    bool
	configFile string
	envFile    string
	opts       = defaultOptions()
)

var rootCmd = &cobra.Command{
	Use:   "oauth2-login",
	Short: "Obtain and refresh OAuth 2.0 tokens with the authorization code flow",
	Long: `oauth2-login runs the authorization code flow against a configured
authorization server, receives the redirect on a loopback listener and stores
the issued token. Settings come from a YAML file, OAUTH_* environment
variables and a .env file, in increasing precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil {
			// the default .env is optional, an explicit one is not
			if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("env-file") {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		if os.Getenv("PRETTY_LOGS") != "false" {
			slog.SetDefault(slog.New(
				console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level}),
			))
		} else {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&configFile, "config-file", "f", "oauth2-login.yaml", "YAML config file, ignored when missing")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading OAUTH_* variables")

	flags.StringVar(&opts.Provider, "provider", opts.Provider, "endpoint preset: google, github, dex or oidc")
	flags.StringVar(&opts.Issuer, "issuer", "", "issuer URL for the dex and oidc presets")
	flags.StringVar(&opts.ConnectorID, "connector-id", "", "dex connector to skip the selection screen")

	flags.StringVar(&opts.StoreDir, "store-dir", opts.StoreDir, "directory for stored tokens")
	flags.StringVar(&opts.StoreFormat, "store-format", opts.StoreFormat, "stored token format: json or cbor")
	flags.StringVar(&opts.ValkeyAddr, "valkey-addr", "", "store tokens in Valkey at this address instead of files")
	flags.StringVar(&opts.Key, "key", "", "store key, defaults to the client ID")

	rootCmd.AddCommand(loginCmd, refreshCmd, showCmd, logoutCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}
