package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/yieldvault-backend/internal/app"
)

var cfg app.Config

var rootCmd = &cobra.Command{
	Use:           "vaultd",
	Short:         "yield vault custody service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig()
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, provisionCmd, tokenCmd, harvestCmd, recoverCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "vaultd:", err)
		os.Exit(1)
	}
}
