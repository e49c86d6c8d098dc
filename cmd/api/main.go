package main

import (
    "bufio"
    "context"
    "errors"
    "flag"
    "net"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    log "github.com/sirupsen/logrus"

    "toptw/internal/api"
    "toptw/internal/buildinfo"
    "toptw/internal/config"
    "toptw/internal/metrics"
)

func main() {
    configPath := flag.String("config", os.Getenv("TOPTW_CONFIG"), "path to YAML config")
    flag.Parse()

    _ = godotenv.Load()
    log.SetFormatter(&log.JSONFormatter{})
    if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil { log.SetLevel(lvl) }

    cfg, err := config.Load(*configPath)
    if err != nil { log.WithError(err).Fatal("load config") }

    srvDeps, err := api.NewServer(cfg)
    if err != nil { log.WithError(err).Fatal("failed to init server") }

    metrics.RegisterDefault()
    mux := http.NewServeMux()
    srvDeps.Register(mux)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    srv := &http.Server{
        Addr:              cfg.Server.Addr,
        Handler:           logMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    // Start webhook worker
    worker := srvDeps.NewWebhookWorker()
    worker.Start()

    go func() {
        log.WithFields(log.Fields{"addr": cfg.Server.Addr, "build": buildinfo.String()}).Info("API listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.WithError(err).Fatal("server error")
        }
    }()

    stop := make(chan os.Signal, 1)
    signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
    <-stop
    log.Info("shutting down")
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()
    if err := srv.Shutdown(ctx); err != nil { log.WithError(err).Warn("http shutdown") }
    close(worker.Stop)
    if err := srvDeps.Shutdown(ctx); err != nil { log.WithError(err).Warn("runs still in flight") }
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) { r.status = code; r.ResponseWriter.WriteHeader(code) }

// Flush keeps SSE streaming working through the middleware.
func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("response writer does not support hijacking") }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        dur := time.Since(start)
        status := strconv.Itoa(rec.status)
        path := routeLabel(r.URL.Path)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        log.WithFields(log.Fields{"remote": r.RemoteAddr, "method": r.Method, "path": r.URL.Path, "status": rec.status, "duration": dur}).Info("request")
    })
}

// routeLabel collapses run ids so metric cardinality stays bounded.
func routeLabel(p string) string {
    const runs = "/v1/runs/"
    if len(p) > len(runs) && p[:len(runs)] == runs { return runs + "{id}" }
    return p
}
