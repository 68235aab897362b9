package scabbard

import (
	"encoding/json"
	"sync"

	"github.com/splinter-rs/splinter-go/wire"
)

func decodeBatch(data []byte, out *wire.Batch) error {
	return json.Unmarshal(data, out)
}

// eventBroker fans out a wake-up signal to every WaitForBatch subscriber
// whenever a batch decision lands, rather than delivering the full
// StateEvent payload — subscribers re-check the status index themselves,
// which keeps this broker free of per-subscriber backlog.
type eventBroker struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan struct{}
}

func newEventBroker() *eventBroker {
	return &eventBroker{subs: make(map[uint64]chan struct{})}
}

func (b *eventBroker) subscribe() (<-chan struct{}, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	return ch, id
}

func (b *eventBroker) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *eventBroker) publish(wire.StateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
