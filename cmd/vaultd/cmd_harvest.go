package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/temporalx"
	"github.com/yungbote/yieldvault-backend/internal/temporalx/harvestrun"
)

var harvestFlags struct {
	path     string
	interval time.Duration
	maxRuns  int
	minYield string
	slippage int64
	wait     bool
	schedule bool
}

var harvestCmd = &cobra.Command{
	Use:   "harvest <vault-id>",
	Short: "Start the harvest workflow for a vault on the Temporal worker",
	Long: `Starts the vault's harvest workflow. Without --interval it quotes and
harvests once; with --interval it repeats until cancelled or --max-runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaultID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("vault id: %w", err)
		}
		if !cfg.Temporal.Enabled() {
			return fmt.Errorf("harvest needs TEMPORAL_ADDRESS")
		}
		p := harvestrun.Params{
			VaultID:        vaultID,
			SlippageBps:    cfg.Harvest.SlippageBps,
			DeadlineWindow: cfg.Harvest.DeadlineWindow,
			Interval:       harvestFlags.interval,
			MaxRuns:        harvestFlags.maxRuns,
			MinYield:       types.Zero,
		}
		if harvestFlags.schedule && p.Interval <= 0 {
			p.Interval = cfg.Harvest.Interval
		}
		if cmd.Flags().Changed("slippage-bps") {
			p.SlippageBps = harvestFlags.slippage
		}
		if harvestFlags.path != "" {
			p.SwapPath = strings.Split(harvestFlags.path, ",")
		}
		if harvestFlags.minYield != "" {
			if p.MinYield, err = types.ParseAmount(harvestFlags.minYield); err != nil {
				return err
			}
		}

		log, err := logger.New(cfg.LogMode)
		if err != nil {
			return err
		}
		defer log.Sync()
		tc, err := temporalx.NewClient(cmd.Context(), log, cfg.Temporal)
		if err != nil {
			return err
		}
		defer tc.Close()

		run, err := harvestrun.Start(cmd.Context(), tc, cfg.Temporal.TaskQueue, p)
		if err != nil {
			return err
		}
		cmd.Printf("workflow %s run %s\n", run.GetID(), run.GetRunID())
		if !harvestFlags.wait {
			return nil
		}
		var sum harvestrun.Summary
		if err := run.Get(cmd.Context(), &sum); err != nil {
			return err
		}
		cmd.Printf("runs=%d settled=%d skipped=%d failed=%d proceeds=%s\n",
			sum.Runs, sum.Settled, sum.Skipped, sum.Failed, sum.Proceeds)
		return nil
	},
}

func init() {
	f := harvestCmd.Flags()
	f.StringVar(&harvestFlags.path, "path", "", "comma-separated swap path (default: principal,distribution)")
	f.DurationVar(&harvestFlags.interval, "interval", 0, "repeat every interval (see also --schedule)")
	f.BoolVar(&harvestFlags.schedule, "schedule", false, "repeat every HARVEST_INTERVAL")
	f.IntVar(&harvestFlags.maxRuns, "max-runs", 0, "stop after this many runs (0: unbounded)")
	f.StringVar(&harvestFlags.minYield, "min-yield", "", "skip runs quoting less yield than this")
	f.Int64Var(&harvestFlags.slippage, "slippage-bps", 0, "proceeds floor below the quote (default: HARVEST_SLIPPAGE_BPS)")
	f.BoolVar(&harvestFlags.wait, "wait", false, "wait for the workflow to finish")
}
