// Package access decides which identities may perform which vault actions.
package access

import (
	"context"
	"strings"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

type Action string

const (
	ActionDeposit        Action = "deposit"
	ActionWithdraw       Action = "withdraw"
	ActionClaim          Action = "claim"
	ActionSetStrategy    Action = "set_strategy"
	ActionPause          Action = "pause"
	ActionUnpause        Action = "unpause"
	ActionHarvest        Action = "harvest"
	ActionRecordProceeds Action = "record_proceeds"
	ActionProvision      Action = "provision"
)

// Controller authorizes caller for action.
type Controller interface {
	IsAuthorized(ctx context.Context, caller string, action Action) bool
}

// Provider returns the controller governing one vault.
type Provider interface {
	ForVault(v *vault.Vault) Controller
}

// VaultRoles is the role model of a single vault: one governance identity
// and one harvester identity; everyone else is a depositor.
type VaultRoles struct {
	Governance string
	Harvester  string
}

var _ Controller = VaultRoles{}

func (r VaultRoles) IsAuthorized(_ context.Context, caller string, action Action) bool {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return false
	}
	switch action {
	case ActionDeposit, ActionWithdraw, ActionClaim:
		return true
	case ActionSetStrategy, ActionPause, ActionUnpause:
		return caller == r.Governance
	case ActionHarvest, ActionRecordProceeds:
		return caller == r.Harvester
	default:
		return false
	}
}

// RoleProvider derives VaultRoles from vault rows and authorizes service-wide
// actions (provisioning) for a fixed admin set.
type RoleProvider struct {
	admins map[string]struct{}
}

var (
	_ Provider   = (*RoleProvider)(nil)
	_ Controller = (*RoleProvider)(nil)
)

func NewRoleProvider(admins ...string) *RoleProvider {
	p := &RoleProvider{admins: map[string]struct{}{}}
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			p.admins[a] = struct{}{}
		}
	}
	return p
}

func (p *RoleProvider) ForVault(v *vault.Vault) Controller {
	if v == nil {
		return VaultRoles{}
	}
	return VaultRoles{Governance: v.GovernanceID, Harvester: v.HarvesterID}
}

func (p *RoleProvider) IsAuthorized(_ context.Context, caller string, action Action) bool {
	if action != ActionProvision {
		return false
	}
	_, ok := p.admins[strings.TrimSpace(caller)]
	return ok
}
