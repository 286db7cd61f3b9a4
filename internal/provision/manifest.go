// Package provision applies a YAML manifest of vaults, strategies and dev
// balances to a running vault manager.
package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	domainagg "github.com/yungbote/yieldvault-backend/internal/domain/aggregates"
	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/vault"
)

type Manifest struct {
	Vaults []VaultSpec `yaml:"vaults"`
	Mints  []Mint      `yaml:"mints"`
}

type VaultSpec struct {
	Name              string        `yaml:"name"`
	Symbol            string        `yaml:"symbol"`
	PrincipalAsset    string        `yaml:"principal_asset"`
	DistributionAsset string        `yaml:"distribution_asset"`
	Harvester         string        `yaml:"harvester"`
	Governance        string        `yaml:"governance"`
	Strategy          *StrategySpec `yaml:"strategy"`
}

type StrategySpec struct {
	Kind   string `yaml:"kind"`
	Source string `yaml:"source"`
}

// Mint credits a dev balance. Only tokens that support minting accept it.
type Mint struct {
	Asset   string       `yaml:"asset"`
	Account string       `yaml:"account"`
	Amount  types.Amount `yaml:"amount"`
}

type Outcome struct {
	Symbol  string
	VaultID string
	Created bool
	Bound   bool
}

func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	for i, v := range m.Vaults {
		if strings.TrimSpace(v.Symbol) == "" {
			return Manifest{}, fmt.Errorf("manifest vault %d: symbol is required", i)
		}
	}
	return m, nil
}

// Applier provisions manifest vaults. Strategy setup runs as each vault's
// governance identity, so the manifest must name it.
type Applier struct {
	Log    *logger.Logger
	Vaults *vault.Manager
	Assets *asset.Registry
	Admin  string
}

// Apply is idempotent per vault symbol: existing vaults are left as they are.
func (a *Applier) Apply(ctx context.Context, m Manifest) ([]Outcome, error) {
	log := a.Log
	if log == nil {
		log = logger.Nop()
	}
	out := make([]Outcome, 0, len(m.Vaults))
	for _, spec := range m.Vaults {
		o, err := a.applyVault(ctx, spec)
		if err != nil {
			return out, fmt.Errorf("vault %s: %w", spec.Symbol, err)
		}
		log.Info("manifest vault applied", "symbol", o.Symbol, "vault_id", o.VaultID, "created", o.Created, "bound", o.Bound)
		out = append(out, o)
	}
	for _, mint := range m.Mints {
		if err := a.mint(ctx, mint); err != nil {
			return out, err
		}
		log.Info("manifest mint applied", "asset", mint.Asset, "account", mint.Account, "amount", mint.Amount.String())
	}
	return out, nil
}

func (a *Applier) applyVault(ctx context.Context, spec VaultSpec) (Outcome, error) {
	o := Outcome{Symbol: strings.TrimSpace(spec.Symbol)}
	v, err := a.Vaults.BySymbol(ctx, o.Symbol)
	switch {
	case err == nil:
		o.VaultID = v.ID.String()
		o.Bound = v.StrategyID != nil
		return o, nil
	case !domainagg.IsCode(err, domainagg.CodeNotFound):
		return o, err
	}

	v, err = a.Vaults.Provision(ctx, a.Admin, vault.ProvisionInput{
		Name:              spec.Name,
		Symbol:            o.Symbol,
		PrincipalAsset:    spec.PrincipalAsset,
		DistributionAsset: spec.DistributionAsset,
		Harvester:         spec.Harvester,
		Governance:        spec.Governance,
	})
	if err != nil {
		return o, err
	}
	o.VaultID, o.Created = v.ID.String(), true
	if spec.Strategy == nil {
		return o, nil
	}

	row, err := a.Vaults.CreateStrategy(ctx, v.ID, v.GovernanceID, spec.Strategy.Kind, spec.Strategy.Source)
	if err != nil {
		return o, err
	}
	if _, err := a.Vaults.SetStrategy(ctx, v.ID, v.GovernanceID, row.ID, false); err != nil {
		return o, err
	}
	o.Bound = true
	return o, nil
}

func (a *Applier) mint(ctx context.Context, m Mint) error {
	tok, err := a.Assets.Lookup(m.Asset)
	if err != nil {
		return err
	}
	minter, ok := tok.(asset.Minter)
	if !ok {
		return fmt.Errorf("asset %s does not support minting", tok.Symbol())
	}
	if strings.TrimSpace(m.Account) == "" {
		return fmt.Errorf("mint %s: account is required", tok.Symbol())
	}
	return minter.Mint(ctx, m.Account, m.Amount)
}
