package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/pdf-signer/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the API",
	Long:  "Generates a JWT signed with JWT_SECRET for callers of the /api routes.",
	RunE:  runToken,
}

var tokenSubject string

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Token subject, the caller identity (required)")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jwtCfg, err := cfg.Auth.JWT()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}
	if jwtCfg == nil {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenSubject)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
