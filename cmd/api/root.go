package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/member-auth/internal/config"
	"github.com/spf13/cobra"
)

// envFile is the optional dotenv file read before the environment.
var envFile string

// NewRootCmd creates the root command for the API binary.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Member authentication API",
		Long:          `OTP-based member registration, login and session management over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRateLimitCmd())
	cmd.AddCommand(newRevocationsCmd())

	return cmd
}

// loadConfig reads envFile, if present, then the process environment.
func loadConfig() *config.Config {
	if err := godotenv.Load(envFile); err != nil {
		slog.Info("no env file loaded, reading from environment", "path", envFile)
	}
	return config.Load()
}
