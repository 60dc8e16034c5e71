package main

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/npezzotti/go-meet/internal/auth"
	"github.com/npezzotti/go-meet/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagTokenUser string
	flagTokenName string
	flagTokenRole string
	flagTokenTTL  time.Duration
	flagTokenKey  string
)

// tokenCmd mints a development token signed with the server's key.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a development bearer token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := base64.StdEncoding.DecodeString(flagTokenKey)
		if err != nil {
			return fmt.Errorf("decode signing key: %w", err)
		}

		token, err := auth.NewJWTVerifier(key).Sign(auth.Identity{
			UserId: flagTokenUser,
			Name:   flagTokenName,
			Role:   flagTokenRole,
		}, flagTokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&flagTokenUser, "user", "", "user id the token vouches for")
	tokenCmd.Flags().StringVar(&flagTokenName, "name", "", "display name claim")
	tokenCmd.Flags().StringVar(&flagTokenRole, "role", auth.RoleMember, "role claim (OWNER or MEMBER)")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", auth.DefaultTTL, "token lifetime")
	tokenCmd.Flags().StringVar(&flagTokenKey, "signing-key", envOr("MEET_SIGNING_KEY", config.DefaultSigningKey), "base64 encoded signing key")
	tokenCmd.MarkFlagRequired("user")
}
