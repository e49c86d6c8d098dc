package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toptw/internal/model"
	"toptw/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID      string
	Success bool
	Code    int
	Next    *time.Time
	LastErr string
}
type FailRec struct {
	ID      string
	Code    int
	LastErr string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Next: nextAttemptAt, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestRunFinishedDeliveredWithSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	run := model.Run{ID: "run-1", Status: model.RunCompleted, Policy: "random", Solution: &model.SolutionOut{Fitness: 17}}
	id, err := NewPublisher(rs).RunFinished(context.Background(), run, srv.URL, "secret")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	w.processOnce()

	assert.Equal(t, EventRunCompleted, gotType)
	assert.True(t, VerifyHMAC("secret", gotBody, gotSig))
	var payload struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, EventRunCompleted, payload.Type)
	assert.Equal(t, 17.0, payload.Data["fitness"])

	require.Len(t, rs.marks, 1)
	assert.True(t, rs.marks[0].Success)
}

func TestRunFinishedWithoutCallbackIsIgnored(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	id, err := NewPublisher(rs).RunFinished(context.Background(), model.Run{ID: "r"}, "", "")
	require.NoError(t, err)
	assert.Empty(t, id)
	all, _ := rs.ListWebhookDeliveries(context.Background(), "")
	assert.Empty(t, all)
}

func TestWorkerRetriesThenFails(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("X-Event-Type")
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	_, err := NewPublisher(rs).RunFinished(context.Background(), model.Run{ID: "r2", Status: model.RunFailed, Error: "boom"}, srv.URL, "")
	require.NoError(t, err)

	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 2}
	w.processOnce()
	assert.Equal(t, EventRunFailed, gotType)
	require.Len(t, rs.marks, 1)
	assert.False(t, rs.marks[0].Success)
	require.NotNil(t, rs.marks[0].Next)
	assert.Equal(t, 500, rs.marks[0].Code)

	// Not due yet: the backoff pushed it one second out.
	w.processOnce()
	assert.Empty(t, rs.fails)

	// Force it due again; this also counts as the second attempt.
	require.NoError(t, rs.Memory.MarkWebhookDelivery(context.Background(), rs.marks[0].ID, false, &time.Time{}, "", 500, 0))
	w.processOnce()
	require.Len(t, rs.fails, 1)
	all, _ := rs.ListWebhookDeliveries(context.Background(), "r2")
	require.Len(t, all, 1)
	assert.Equal(t, store.DeliveryFailed, all[0].Status)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-1))
	assert.Equal(t, time.Second, nextBackoff(0))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, time.Hour, nextBackoff(40))
}

func TestVerifyHMACRejectsTampering(t *testing.T) {
	sig := SignHMAC("k", []byte(`{"a":1}`))
	assert.True(t, VerifyHMAC("k", []byte(`{"a":1}`), sig))
	assert.False(t, VerifyHMAC("k", []byte(`{"a":2}`), sig))
	assert.False(t, VerifyHMAC("other", []byte(`{"a":1}`), sig))
	assert.False(t, VerifyHMAC("k", []byte(`{"a":1}`), "zz"))
}
