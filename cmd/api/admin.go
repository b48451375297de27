package main

import (
	"fmt"

	"github.com/member-auth/internal/application/revocation"
	redisinfra "github.com/member-auth/internal/infrastructure/redis"
	"github.com/spf13/cobra"
)

func newRateLimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect and override rate-limit windows",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <key>",
		Short: "Clear the sliding window for a key",
		Long: `Clear all recorded requests for a rate-limit key, for example
"request-otp:alice@example.com" or "auth_rate_limit:203.0.113.9".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb := redisinfra.NewClient(loadConfig())
			defer rdb.Close()
			if err := redisinfra.NewLimiter(rdb, nil).Reset(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("reset %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newRevocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revocations",
		Short: "Manage the logout revocation list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Purge expired revocations once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			rdb := redisinfra.NewClient(cfg)
			defer rdb.Close()
			n, err := revocation.NewSweeper(redisinfra.NewRevocationStore(rdb), cfg.RevocationSweepInterval, nil).SweepOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			cmd.Printf("purged %d expired revocations\n", n)
			return nil
		},
	})
	return cmd
}
