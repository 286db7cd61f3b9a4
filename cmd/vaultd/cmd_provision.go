package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/yieldvault-backend/internal/app"
)

var provisionAs string

var provisionCmd = &cobra.Command{
	Use:   "provision <manifest.yaml>",
	Short: "Create the vaults, strategies and dev balances listed in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return applyManifest(cmd, a, args[0])
	},
}

func init() {
	provisionCmd.Flags().StringVar(&provisionAs, "as", "", "admin identity to provision as (default: first VAULT_ADMINS entry)")
}

func provisionAdmin() (string, error) {
	if provisionAs != "" {
		return provisionAs, nil
	}
	if len(cfg.Admins) > 0 {
		return cfg.Admins[0], nil
	}
	return "", fmt.Errorf("no admin identity: set VAULT_ADMINS or --as")
}
