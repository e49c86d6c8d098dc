package api

import (
    "sync"
)

const subscriberBuffer = 32

type SSEEvent struct {
    Type string
    Data map[string]any
}

// Broker fans run events out to in-process subscribers.
type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan SSEEvent]struct{} // runId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(runID string) chan SSEEvent {
    ch := make(chan SSEEvent, subscriberBuffer)
    b.mu.Lock()
    if b.subs[runID] == nil { b.subs[runID] = map[chan SSEEvent]struct{}{} }
    b.subs[runID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(runID string, ch chan SSEEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[runID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, runID) }
    close(ch)
}

// Publish never blocks. A full subscriber loses its oldest buffered events, so the
// terminal event, published last, always reaches it.
func (b *Broker) Publish(runID string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[runID]
    for ch := range m {
        offer(ch, evt)
    }
    b.mu.Unlock()
}

// offer sends evt, evicting the oldest buffered events until it fits.
// Callers must be the only sender on ch.
func offer(ch chan SSEEvent, evt SSEEvent) {
    for {
        select {
        case ch <- evt:
            return
        default:
        }
        select {
        case <-ch:
        default:
        }
    }
}
