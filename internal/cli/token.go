package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimlink/internal/api"
	"github.com/ppiankov/claimlink/internal/model"
)

// tokenIssuer is the JWT issuer shared by serve and token
const tokenIssuer = "claimlink"

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

// tokenCmd issues bearer tokens for the HTTP API
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP API",
	Long: `Sign an HS256 bearer token with server.jwt_secret.

Examples:
  claimlink token --subject reviewer@example.com
  claimlink token --subject intake-service --role service --ttl 720h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		token, err := issueToken(cfg, tokenSubject, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func issueToken(cfg model.Config, subject, role string, ttl time.Duration) (string, error) {
	if cfg.Server.JWTSecret == "" {
		return "", errors.New("server.jwt_secret is not set")
	}
	if subject == "" {
		return "", errors.New("--subject is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("invalid --ttl %v", ttl)
	}
	return api.NewTokenValidator(cfg.Server.JWTSecret, tokenIssuer).Issue(subject, role, ttl)
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject (reviewer or service name)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "reviewer", "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
