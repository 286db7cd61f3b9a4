package app

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/temporalx/harvestrun"
)

// HarvestActivities binds the harvester to the configured worker identity.
func (a *App) HarvestActivities() *harvestrun.Activities {
	return &harvestrun.Activities{
		Log:       a.Log,
		Harvester: a.Services.Harvester,
		Metrics:   a.Metrics,
		Caller:    a.Cfg.Harvest.Identity,
	}
}

// HarvestParams are the scheduled-harvest defaults for vaultID.
func (a *App) HarvestParams(vaultID uuid.UUID) harvestrun.Params {
	return harvestrun.Params{
		VaultID:        vaultID,
		SlippageBps:    a.Cfg.Harvest.SlippageBps,
		DeadlineWindow: a.Cfg.Harvest.DeadlineWindow,
		Interval:       a.Cfg.Harvest.Interval,
		MinYield:       types.Zero,
	}
}

// scheduleHarvests starts a looping harvest workflow for every vault the
// worker identity may harvest. Vaults that already have one keep it.
func (a *App) scheduleHarvests(ctx context.Context) {
	states, err := a.Services.Vaults.List(ctx)
	if err != nil {
		a.Log.Error("harvest schedule: list vaults failed", "error", err)
		return
	}
	for _, st := range states {
		if st.Vault.HarvesterID != a.Cfg.Harvest.Identity {
			continue
		}
		run, err := harvestrun.Start(ctx, a.Clients.Temporal, a.Cfg.Temporal.TaskQueue, a.HarvestParams(st.Vault.ID))
		if err != nil {
			a.Log.Warn("harvest schedule: start failed", "vault_id", st.Vault.ID.String(), "error", err)
			continue
		}
		a.Log.Info("harvest scheduled", "vault_id", st.Vault.ID.String(), "workflow_id", run.GetID(), "interval", a.Cfg.Harvest.Interval.String())
	}
}
