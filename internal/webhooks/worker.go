package webhooks

import (
    "bytes"
    "context"
    "net/http"
    "strconv"
    "time"

    log "github.com/sirupsen/logrus"

    "toptw/internal/metrics"
    "toptw/internal/store"
)

type Worker struct {
    Store store.Store
    HTTP  *http.Client
    Stop  chan struct{}
    MaxAttempts int
    Interval time.Duration
}

func NewWorker(s store.Store, maxAttempts int, interval time.Duration) *Worker {
    if maxAttempts <= 0 { maxAttempts = 10 }
    if interval <= 0 { interval = time.Second }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Interval: interval}
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(w.Interval)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
    if err != nil {
        log.WithError(err).Warn("fetch due webhook deliveries")
        return
    }
    for _, it := range items {
        w.deliver(ctx, it)
    }
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
    logger := log.WithFields(log.Fields{"delivery_id": it.ID, "run_id": it.RunID, "event_type": it.EventType, "attempt": it.Attempts + 1})
    success := false
    code := 0
    lastErr := ""
    start := time.Now()
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err == nil {
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set("X-Event-Type", it.EventType)
        if it.Secret != "" {
            req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
        }
        resp, derr := w.HTTP.Do(req)
        if derr == nil {
            code = resp.StatusCode
            _ = resp.Body.Close()
            success = code >= 200 && code < 300
            if !success { lastErr = "unexpected status " + strconv.Itoa(code) }
        } else {
            lastErr = derr.Error()
        }
    } else {
        lastErr = err.Error()
    }
    latency := int(time.Since(start).Milliseconds())

    status := "delivered"
    switch {
    case success:
        _ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
    case it.Attempts+1 >= w.MaxAttempts:
        status = "failed"
        logger.WithField("error", lastErr).Warn("webhook delivery failed permanently")
        _ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
    default:
        status = "retry"
        next := time.Now().Add(nextBackoff(it.Attempts))
        logger.WithField("error", lastErr).WithField("next_attempt_at", next).Info("webhook delivery will be retried")
        _ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
    }
    metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
    metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

// nextBackoff is 1s·2^attempts, capped at one hour.
func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 12 { attempts = 12 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
