package api

import (
	"sync"

	"evdarp/internal/planner"
)

// EventBroker fans run events out to SSE and WebSocket subscribers. It
// satisfies planner.Publisher.
type EventBroker interface {
	Subscribe(runID string) chan planner.Event
	Unsubscribe(runID string, ch chan planner.Event)
	Publish(runID string, evt planner.Event)
}

// Broker is the in-process EventBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan planner.Event]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan planner.Event]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan planner.Event {
	ch := make(chan planner.Event, 8)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = map[chan planner.Event]struct{}{}
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan planner.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[runID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, runID)
	}
	close(ch)
}

// Publish never blocks; a subscriber with a full buffer misses the event.
func (b *Broker) Publish(runID string, evt planner.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[runID] {
		select {
		case ch <- evt:
		default:
		}
	}
}
