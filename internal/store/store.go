package store

import (
    "context"
    "errors"
    "time"

    "toptw/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Runs
    CreateRun(ctx context.Context, run model.Run) (model.Run, error)
    UpdateRun(ctx context.Context, run model.Run) error
    GetRun(ctx context.Context, id string) (model.Run, error)
    ListRuns(ctx context.Context, cursor string, limit int) (items []model.Run, nextCursor string, err error)

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, runID string) ([]WebhookDelivery, error)
}

var ErrNotFound = errors.New("not found")

// ErrInvalidCursor is returned by ListRuns for a cursor that names no stored run.
var ErrInvalidCursor = errors.New("invalid cursor")

const defaultListLimit = 50
