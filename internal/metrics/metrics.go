package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // Runs counts finished solve runs by policy and outcome
    Runs = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "grasp_runs_total", Help: "Solve runs by policy and status."},
        []string{"policy", "status"},
    )
    // Iterations counts construction passes
    Iterations = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "grasp_iterations_total", Help: "GRASP construction passes by policy."},
        []string{"policy"},
    )
    ConstructionSeconds = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "grasp_run_duration_seconds", Help: "Wall time of a solve run in seconds.", Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60}},
        []string{"policy"},
    )
    // BestFitness is the best fitness of the last finished run per policy
    BestFitness = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{Name: "grasp_best_fitness", Help: "Best fitness of the most recent run."},
        []string{"policy"},
    )
    RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{Name: "grasp_runs_in_flight", Help: "Solve runs currently executing."})

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests, HTTPDuration)
        Registry.MustRegister(Runs, Iterations, ConstructionSeconds, BestFitness, RunsInFlight)
        Registry.MustRegister(WebhookDeliveries, WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
