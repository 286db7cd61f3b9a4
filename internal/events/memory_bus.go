package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

// MemoryBus fans events out to in-process forwarders. Slow forwarders drop
// events rather than block publishers.
type MemoryBus struct {
	log *logger.Logger
	buf int

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
	wg     sync.WaitGroup
}

func NewMemoryBus(log *logger.Logger, buffer int) *MemoryBus {
	if log == nil {
		log = logger.Nop()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBus{
		log:  log.With("service", "MemoryEventBus"),
		buf:  buffer,
		subs: map[int]chan Event{},
	}
}

func (b *MemoryBus) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("event bus closed")
	}
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("event dropped for slow subscriber", "subscriber", id, "kind", ev.Kind)
		}
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onMsg func(ev Event)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus closed")
	}
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buf)
	b.subs[id] = ch
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				b.unsubscribe(id)
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				onMsg(ev)
			}
		}
	}()
	return nil
}

// Close stops every forwarder and waits for them to exit.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

func (b *MemoryBus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
