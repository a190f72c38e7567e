// Command admintoken issues bearer tokens for the admin API.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"news-digest/internal/config"
	"news-digest/internal/handler/http/auth"
	env "news-digest/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admintoken",
		Short: "Issue an admin API token",
		Long: `admintoken signs an HS256 JWT with ADMIN_JWT_SECRET (read from the
environment or .env) for the /admin endpoints.

Examples:
  admintoken --subject ops@example.com
  admintoken --subject cron --ttl 720h`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			secret := env.GetEnvString("ADMIN_JWT_SECRET", "")
			if secret == "" {
				return errors.New("ADMIN_JWT_SECRET is not set")
			}
			token, err := auth.IssueToken([]byte(secret), subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. the operator's email (required)")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
