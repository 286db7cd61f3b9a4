package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/yieldvault-backend/internal/app"
)

var recoverLimit int

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Undo vault operations interrupted between custody moves and commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.Services.Vaults.Recover(cmd.Context(), recoverLimit)
		for _, id := range rep.Compensated {
			cmd.Printf("%s\tcompensated\n", id)
		}
		for _, id := range rep.NeedsOperator {
			cmd.Printf("%s\tneeds_operator\n", id)
		}
		return err
	},
}

func init() {
	recoverCmd.Flags().IntVar(&recoverLimit, "limit", 0, "max open runs to recover (0 = all)")
}
