package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"toptw/internal/model"
	"toptw/internal/store"
)

// Event types sent to run callbacks.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// RunFinished enqueues the callback of a finished run. Runs without a callback URL are ignored.
func (p *Publisher) RunFinished(ctx context.Context, run model.Run, url, secret string) (string, error) {
	if url == "" {
		return "", nil
	}
	eventType := EventRunCompleted
	if run.Status == model.RunFailed {
		eventType = EventRunFailed
	}
	data := map[string]any{
		"runId":    run.ID,
		"instance": run.Instance,
		"status":   run.Status,
		"policy":   run.Policy,
	}
	if run.Solution != nil {
		data["fitness"] = run.Solution.Fitness
		data["routes"] = len(run.Solution.Routes)
		data["unrouted"] = len(run.Solution.Unrouted)
	}
	if run.Error != "" {
		data["error"] = run.Error
	}
	payload := map[string]any{
		"id":   fmt.Sprintf("evt_%s_%s", run.ID, eventType),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	id, err := p.Store.EnqueueWebhook(ctx, run.ID, eventType, url, secret, body)
	if err != nil {
		return "", fmt.Errorf("enqueue %s for run %s: %w", eventType, run.ID, err)
	}
	return id, nil
}
