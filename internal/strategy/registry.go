package strategy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
)

// Binding is what a factory needs to rebuild an adapter from a stored strategy row.
type Binding struct {
	Row          vault.Strategy
	VaultAccount string
	Principal    asset.Token
	Reader       PrincipalReader
}

type Factory func(binding Binding) (Strategy, error)

// Registry builds strategies by kind and caches one live adapter per id.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	live      map[uuid.UUID]Strategy
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		live:      map[uuid.UUID]Strategy{},
	}
}

func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(strings.TrimSpace(kind))] = f
}

func (r *Registry) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the live adapter for binding.Row, building it on first use.
func (r *Registry) Resolve(binding Binding) (Strategy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.live[binding.Row.ID]; ok {
		return s, nil
	}
	kind := strings.ToLower(strings.TrimSpace(binding.Row.Kind))
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind %q", binding.Row.Kind)
	}
	s, err := f(binding)
	if err != nil {
		return nil, fmt.Errorf("build %s strategy %s: %w", kind, binding.Row.ID, err)
	}
	r.live[binding.Row.ID] = s
	return s, nil
}

// Put installs an already-built adapter, replacing any cached one.
func (r *Registry) Put(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[s.ID()] = s
}
