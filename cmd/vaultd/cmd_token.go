package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/yieldvault-backend/internal/access"
)

var tokenRoles []string

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a caller token signed with JWT_SECRET_KEY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := access.NewTokens(cfg.JWTSecretKey, cfg.JWTIssuer, cfg.AccessTokenTTL)
		if err != nil {
			return err
		}
		tok, err := tokens.Issue(args[0], tokenRoles...)
		if err != nil {
			return err
		}
		cmd.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "advisory role claims")
}
