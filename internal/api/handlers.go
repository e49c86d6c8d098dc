package api

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "toptw/internal/instance"
    "toptw/internal/model"
    "toptw/internal/opt"
    "toptw/internal/store"
)

const maxBodyBytes = 8 << 20

// prepare decodes and validates a solve request, returning the problem and the
// effective options. Errors are written to w.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request) (*model.SolveRequest, *opt.Problem, opt.Options, bool) {
    var req model.SolveRequest
    if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return nil, nil, opt.Options{}, false
    }
    if err := validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
        return nil, nil, opt.Options{}, false
    }
    p, err := s.buildProblem(&req)
    if err != nil {
        status := http.StatusUnprocessableEntity
        if errors.Is(err, errTooLarge) { status = http.StatusRequestEntityTooLarge }
        writeProblem(w, status, "Invalid problem", err.Error(), r.URL.Path)
        return nil, nil, opt.Options{}, false
    }
    o, err := s.solveOptions(req.Params)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
        return nil, nil, opt.Options{}, false
    }
    return &req, p, o, true
}

// SolveHandler runs GRASP synchronously, bounded by the configured solve timeout.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    req, p, o, ok := s.prepare(w, r)
    if !ok { return }
    run, err := s.Store.CreateRun(r.Context(), newRun(req.Instance, o, model.RunRunning))
    if err != nil { writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path); return }

    ctx, cancel := context.WithTimeout(r.Context(), s.Cfg.Server.SolveTimeout)
    defer cancel()
    run = s.execute(ctx, run, p, o, callback{url: req.CallbackURL, secret: req.CallbackSecret})
    if run.Status == model.RunFailed {
        writeProblem(w, http.StatusInternalServerError, "Solve failed", run.Error, r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

// RunsHandler handles POST (queue an asynchronous run) and GET (list runs) on /v1/runs.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        req, p, o, ok := s.prepare(w, r)
        if !ok { return }
        run, err := s.Store.CreateRun(r.Context(), newRun(req.Instance, o, model.RunQueued))
        if err != nil { writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path); return }
        cb := callback{url: req.CallbackURL, secret: req.CallbackSecret}
        s.runs.Add(1)
        go func() {
            defer s.runs.Done()
            ctx, cancel := context.WithTimeout(s.baseCtx, s.Cfg.Server.SolveTimeout)
            defer cancel()
            s.execute(ctx, run, p, o, cb)
        }()
        w.Header().Set("Location", "/v1/runs/"+run.ID)
        writeJSON(w, http.StatusAccepted, map[string]any{
            "id": run.ID, "status": run.Status,
            "links": map[string]string{
                "self": "/v1/runs/" + run.ID,
                "events": "/v1/runs/" + run.ID + "/events/stream",
                "ws": "/v1/runs/" + run.ID + "/ws",
            },
        })
    case http.MethodGet:
        limit := 0
        if v := r.URL.Query().Get("limit"); v != "" {
            n, err := strconv.Atoi(v)
            if err != nil || n < 0 { writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path); return }
            limit = n
        }
        items, next, err := s.Store.ListRuns(r.Context(), r.URL.Query().Get("cursor"), limit)
        if errors.Is(err, store.ErrInvalidCursor) { writeProblem(w, http.StatusBadRequest, "Invalid cursor", r.URL.Query().Get("cursor"), r.URL.Path); return }
        if err != nil { writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// RunByIDHandler serves /v1/runs/{id} and its /events/stream, /ws and /webhooks subresources.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
    parts := strings.Split(strings.Trim(rest, "/"), "/")
    id := parts[0]
    if id == "" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }

    switch strings.Join(parts[1:], "/") {
    case "":
        run, err := s.Store.GetRun(r.Context(), id)
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path); return }
        if err != nil { writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, run)
    case "webhooks":
        if _, err := s.Store.GetRun(r.Context(), id); errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path)
            return
        }
        items, err := s.Store.ListWebhookDeliveries(r.Context(), id)
        if err != nil { writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path); return }
        writeJSON(w, http.StatusOK, map[string]any{"items": items})
    case "events/stream":
        s.streamRunEvents(w, r, id)
    case "ws":
        s.runWebSocket(w, r, id)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    }
}

// GRASPConfigHandler reports the default solver parameters.
func (s *Server) GRASPConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    d := s.Defaults
    writeJSON(w, http.StatusOK, map[string]any{
        "iterations": d.Iterations,
        "rclSize": d.RCLSize,
        "policy": d.Policy.String(),
        "alpha": d.Alpha,
        "seed": d.Seed,
        "timeBudgetMs": d.TimeBudget.Milliseconds(),
        "policies": []string{opt.PolicyRandom.String(), opt.PolicyFuzzyBest.String(), opt.PolicyFuzzyAlphaCut.String()},
        "maxNodes": s.Cfg.Server.MaxNodes,
    })
}

// RunMetricsHandler returns the last recorded metrics per policy for an instance.
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    name := r.URL.Query().Get("instance")
    out := map[string]*model.MetricsOut{}
    for policy, m := range opt.GetMetrics(name) {
        out[policy] = metricsOut(m)
    }
    writeJSON(w, http.StatusOK, map[string]any{"instance": name, "policies": out})
}

// ParseInstanceHandler converts a benchmark instance file into its JSON problem form.
func (s *Server) ParseInstanceHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, err := instance.Read(http.MaxBytesReader(w, r.Body, maxBodyBytes))
    if err != nil { writeProblem(w, http.StatusUnprocessableEntity, "Invalid instance", err.Error(), r.URL.Path); return }
    maxT := p.MaxRouteDuration()
    out := model.ProblemIn{Vehicles: p.VehicleCount(), MaxRouteDuration: &maxT}
    for _, n := range p.Nodes() {
        out.Nodes = append(out.Nodes, model.NodeIn{ID: n.ID, X: n.X, Y: n.Y, Score: n.Score, ReadyTime: n.ReadyTime, DueTime: n.DueTime, ServiceTime: n.ServiceTime})
    }
    writeJSON(w, http.StatusOK, out)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check the database and Redis when configured
    type pinger interface{ Ping(ctx context.Context) error }
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    for _, dep := range []any{s.Store, s.Broker} {
        if p, ok := dep.(pinger); ok {
            if err := p.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
        }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
