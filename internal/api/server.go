// Package api implements the HTTP surface of the TOPTW solver service.
package api

import (
    "context"
    "fmt"
    "net/http"
    "sync"
    "sync/atomic"

    log "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "toptw/internal/config"
    "toptw/internal/opt"
    "toptw/internal/store"
    "toptw/internal/webhooks"
)

type Server struct {
    Cfg      config.Config
    Store    store.Store
    Pub      *webhooks.Publisher
    Broker   EventBroker
    Defaults opt.Options

    limiter *rate.Limiter
    runs    sync.WaitGroup
    seq     atomic.Uint64
    // baseCtx bounds asynchronous runs; cancelled by Shutdown.
    baseCtx context.Context
    cancel  context.CancelFunc
}

// NewServer wires storage and the event broker from cfg. An empty database URL selects
// the in-memory store; an empty Redis URL the in-process broker.
func NewServer(cfg config.Config) (*Server, error) {
    if err := cfg.Validate(); err != nil { return nil, fmt.Errorf("new server: %w", err) }
    defaults, err := cfg.GRASP.Options()
    if err != nil { return nil, fmt.Errorf("new server: %w", err) }

    var s store.Store
    if cfg.Storage.DatabaseURL == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.Storage.DatabaseURL)
        if err != nil { return nil, fmt.Errorf("new server: %w", err) }
        if cfg.Storage.Migrate {
            if err := sp.MigrateDir(cfg.Storage.Migrations); err != nil { return nil, fmt.Errorf("new server: %w", err) }
        }
        s = sp
    }

    var broker EventBroker
    if cfg.Storage.RedisURL != "" {
        rb, err := NewRedisBroker(cfg.Storage.RedisURL)
        if err != nil {
            log.WithError(err).Warn("redis unavailable; falling back to in-process broker")
            broker = NewBroker()
        } else {
            broker = rb
        }
    } else {
        broker = NewBroker()
    }

    limit := rate.Inf
    if cfg.Server.RateRPS > 0 { limit = rate.Limit(cfg.Server.RateRPS) }
    burst := cfg.Server.RateBurst
    if burst < 1 { burst = 1 }

    ctx, cancel := context.WithCancel(context.Background())
    return &Server{
        Cfg: cfg, Store: s, Pub: webhooks.NewPublisher(s), Broker: broker, Defaults: defaults,
        limiter: rate.NewLimiter(limit, burst), baseCtx: ctx, cancel: cancel,
    }, nil
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
    // Solving
    mux.HandleFunc("/v1/solve", s.RateLimited(s.SolveHandler))
    mux.HandleFunc("/v1/runs", s.RateLimited(s.RunsHandler))
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /events/stream, /ws
    mux.HandleFunc("/v1/instances/parse", s.ParseInstanceHandler)
    mux.HandleFunc("/v1/grasp/config", s.GRASPConfigHandler)

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)

    // Admin
    mux.HandleFunc("/v1/admin/run-metrics", s.RunMetricsHandler)
    mux.HandleFunc("/v1/admin/debug", s.DebugJSON)
}

// NewWebhookWorker creates a background worker for run callbacks.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts, s.Cfg.Webhooks.Interval)
}

// Shutdown cancels asynchronous runs between passes and waits for them to be stored.
func (s *Server) Shutdown(ctx context.Context) error {
    s.cancel()
    done := make(chan struct{})
    go func() { s.runs.Wait(); close(done) }()
    select {
    case <-done:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}
