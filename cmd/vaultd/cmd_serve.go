package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/yieldvault-backend/internal/app"
	"github.com/yungbote/yieldvault-backend/internal/provision"
)

var serveManifest string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when Temporal is configured, the harvest worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveManifest != "" {
			if err := applyManifest(cmd, a, serveManifest); err != nil {
				return err
			}
		}
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveManifest, "manifest", "", "YAML manifest applied before serving")
	serveCmd.Flags().StringVar(&provisionAs, "as", "", "admin identity for --manifest (default: first VAULT_ADMINS entry)")
}

func applyManifest(cmd *cobra.Command, a *app.App, path string) error {
	m, err := provision.Load(path)
	if err != nil {
		return err
	}
	admin, err := provisionAdmin()
	if err != nil {
		return err
	}
	applier := &provision.Applier{Log: a.Log, Vaults: a.Services.Vaults, Assets: a.Assets, Admin: admin}
	out, err := applier.Apply(cmd.Context(), m)
	for _, o := range out {
		cmd.Printf("%s\t%s\tcreated=%t\tbound=%t\n", o.Symbol, o.VaultID, o.Created, o.Bound)
	}
	return err
}
