package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bundlelib/internal/auth"
	"bundlelib/pkg/logging"
)

func newTokenCommand(a *app) *cobra.Command {
	var (
		role    string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for the bundlelib api-server",
		Long: `token signs an HS256 JWT with BUNDLELIB_JWT_SECRET. Tokens with role anon can
read the catalog and follow the change feed; service_role can also write.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("ttl") {
				ttl = a.cfg.Server.TokenTTL
			}
			ts := auth.TokenService{
				Secret:   []byte(a.cfg.Server.JWTSecret),
				Issuer:   a.cfg.Server.JWTIssuer,
				Duration: ttl,
			}
			tok, exp, err := ts.Sign(subject, role)
			if err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}

			fmt.Fprintln(a.stdout, tok)
			logger := logging.FromContext(cmd.Context())
			l := logger.Info().Str("role", role).Str("subject", subject)
			if !exp.IsZero() {
				l = l.Time("expires_at", exp)
			}
			l.Msg("token issued")
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", auth.RoleService, "anon or service_role")
	cmd.Flags().StringVar(&subject, "subject", "bundlelib", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, 0 for no expiry (default from BUNDLELIB_TOKEN_TTL)")
	return cmd
}
