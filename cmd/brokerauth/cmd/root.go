// Package cmd holds the brokerauth command line: the HTTP server and the
// operator commands that manage the whitelist and admin sets.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/brokerauth/internal/config"
)

// app carries state shared by every subcommand once the root has run.
type app struct {
	configPath string
	cfg        config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "brokerauth",
		Short: "Session and access-control service for brokerage and Google sign-in",
		Long: `brokerauth exchanges brokerage and Google OAuth artifacts for server-issued
session tokens and gates access behind a whitelist managed by admins.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.ConfigFileFromEnv()
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return setupLogger(cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file (defaults to $CONFIG_FILE)")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newWhitelistCmd(a))
	rootCmd.AddCommand(newAdminCmd(a))
	return rootCmd
}

// setupLogger uses a console writer in development and JSON otherwise.
func setupLogger(cfg config.EnvConfig) error {
	if config.IsDevelopment(cfg) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	if rawLvl := cfg.GetLogLevel(); rawLvl != "" {
		lvl, err := zerolog.ParseLevel(rawLvl)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL %q: %w", rawLvl, err)
		}
		log.Logger = log.Logger.Level(lvl)
	}
	return nil
}
