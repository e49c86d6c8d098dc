package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
    log "github.com/sirupsen/logrus"
)

type EventBroker interface {
    Subscribe(runID string) chan SSEEvent
    Unsubscribe(runID string, ch chan SSEEvent)
    Publish(runID string, evt SSEEvent)
}

// RedisBroker implements EventBroker over Redis Pub/Sub so that progress published
// by the replica running a solve reaches streams opened on any replica.
type RedisBroker struct {
    rdb *redis.Client
    mu  sync.Mutex
    subs map[chan SSEEvent]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, err
    }
    return &RedisBroker{rdb: rdb, subs: map[chan SSEEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(runID string) chan SSEEvent {
    ch := make(chan SSEEvent, subscriberBuffer)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(runID))
    // initial consume to ensure subscription
    if _, err := ps.Receive(ctx); err != nil {
        log.WithError(err).WithField("run_id", runID).Warn("redis subscribe")
    }
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        for msg := range ps.Channel() {
            var evt SSEEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil { continue }
            b.mu.Lock()
            if _, live := b.subs[ch]; live { offer(ch, evt) }
            b.mu.Unlock()
        }
    }()
    return ch
}

func (b *RedisBroker) Unsubscribe(runID string, ch chan SSEEvent) {
    b.mu.Lock()
    ps, ok := b.subs[ch]
    delete(b.subs, ch)
    if ok { close(ch) }
    b.mu.Unlock()
    if ok { _ = ps.Close() }
}

func (b *RedisBroker) Publish(runID string, evt SSEEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(evt)
    if err := b.rdb.Publish(ctx, b.chanName(runID), data).Err(); err != nil {
        log.WithError(err).WithField("run_id", runID).Warn("redis publish")
    }
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) chanName(runID string) string { return "toptw:run:" + runID }
