package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smart-scheduler/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		userID int
		ttl    time.Duration
		secret string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("no signing secret: set JWT_SECRET or --secret")
			}
			if userID <= 0 {
				return fmt.Errorf("invalid --user %d", userID)
			}
			tok, err := auth.GenerateToken([]byte(secret), userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user", auth.LocalUserID, "Owner id carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	cmd.Flags().StringVar(&secret, "secret", cfg.JWTSecret, "HMAC secret (or JWT_SECRET env)")
	return cmd
}
