package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "toptw/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu     sync.Mutex
    runs   map[string]model.Run // id -> run
    order  []string             // run ids, oldest first
    deliveries map[string]*WebhookDelivery
    deliveryIDs []string
}

func NewMemory() *Memory {
    return &Memory{
        runs: map[string]model.Run{},
        deliveries: map[string]*WebhookDelivery{},
    }
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    if _, dup := m.runs[run.ID]; !dup { m.order = append(m.order, run.ID) }
    m.runs[run.ID] = run
    return run, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.runs[run.ID]; !ok { return ErrNotFound }
    m.runs[run.ID] = run
    return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok { return model.Run{}, ErrNotFound }
    return r, nil
}

// ListRuns pages newest first; the cursor is the id of the last run of the previous page.
func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.Run, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if limit <= 0 { limit = defaultListLimit }
    start := len(m.order) - 1
    if cursor != "" {
        if _, ok := m.runs[cursor]; !ok { return nil, "", ErrInvalidCursor }
        for i := len(m.order) - 1; i >= 0; i-- {
            if m.order[i] == cursor { start = i - 1; break }
        }
    }
    out := []model.Run{}
    next := ""
    for i := start; i >= 0; i-- {
        if len(out) == limit {
            next = out[len(out)-1].ID
            break
        }
        out = append(out, m.runs[m.order[i]])
    }
    return out, next, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    m.deliveries[id] = &WebhookDelivery{ID: id, RunID: runID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending, NextAttemptAt: time.Now()}
    m.deliveryIDs = append(m.deliveryIDs, id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.deliveryIDs {
        d := m.deliveries[id]
        if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
            out = append(out, *d)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    if success {
        d.Status = DeliveryDelivered
        return nil
    }
    d.Status = DeliveryRetry
    d.LastError = lastError
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = DeliveryFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, runID string) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []WebhookDelivery{}
    for _, id := range m.deliveryIDs {
        if d := m.deliveries[id]; runID == "" || d.RunID == runID {
            out = append(out, *d)
        }
    }
    return out, nil
}
