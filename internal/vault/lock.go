package vault

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// lockTable hands out one mutual-exclusion slot per vault. Acquisition honours
// context cancellation.
type lockTable struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: map[uuid.UUID]chan struct{}{}}
}

func (t *lockTable) slot(id uuid.UUID) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		t.slots[id] = ch
	}
	return ch
}

func (t *lockTable) acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	ch := t.slot(id)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type heldKey struct{}

// held is the set of vaults locked by the current call chain.
type held map[uuid.UUID]struct{}

func holding(ctx context.Context, id uuid.UUID) bool {
	h, _ := ctx.Value(heldKey{}).(held)
	_, ok := h[id]
	return ok
}

func withHeld(ctx context.Context, id uuid.UUID) context.Context {
	prev, _ := ctx.Value(heldKey{}).(held)
	next := make(held, len(prev)+1)
	for k := range prev {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return context.WithValue(ctx, heldKey{}, next)
}
