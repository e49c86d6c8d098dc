package api

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    log "github.com/sirupsen/logrus"

    "toptw/internal/instance"
    "toptw/internal/metrics"
    "toptw/internal/model"
    "toptw/internal/opt"
    "toptw/internal/webhooks"
)

// Event types published on a run's stream. Terminal events share the callback names.
const (
    EventRunProgress  = "run.progress"
    EventRunCompleted = webhooks.EventRunCompleted
    EventRunFailed    = webhooks.EventRunFailed
)

var errTooLarge = errors.New("problem too large")

func (s *Server) buildProblem(req *model.SolveRequest) (*opt.Problem, error) {
    if req.InstanceText != "" {
        p, err := instance.Read(strings.NewReader(req.InstanceText))
        if err != nil { return nil, err }
        if s.Cfg.Server.MaxNodes > 0 && p.POICount()+1 > s.Cfg.Server.MaxNodes {
            return nil, fmt.Errorf("%d nodes, limit %d: %w", p.POICount()+1, s.Cfg.Server.MaxNodes, errTooLarge)
        }
        return p, nil
    }
    in := req.Problem
    if s.Cfg.Server.MaxNodes > 0 && len(in.Nodes) > s.Cfg.Server.MaxNodes {
        return nil, fmt.Errorf("%d nodes, limit %d: %w", len(in.Nodes), s.Cfg.Server.MaxNodes, errTooLarge)
    }
    nodes := make([]opt.Node, len(in.Nodes))
    for i, n := range in.Nodes {
        nodes[i] = opt.Node{ID: n.ID, X: n.X, Y: n.Y, Score: n.Score, ReadyTime: n.ReadyTime, DueTime: n.DueTime, ServiceTime: n.ServiceTime}
    }
    maxT := 0.0
    if len(nodes) > 0 { maxT = nodes[0].DueTime }
    if in.MaxRouteDuration != nil { maxT = *in.MaxRouteDuration }
    return opt.NewProblem(nodes, in.Vehicles, maxT)
}

// solveOptions overlays request parameters on the configured defaults. A zero seed
// in both request and configuration draws a fresh seed, recorded on the run.
func (s *Server) solveOptions(p model.GRASPParams) (opt.Options, error) {
    o := s.Defaults
    if p.Iterations > 0 { o.Iterations = p.Iterations }
    if p.RCLSize > 0 { o.RCLSize = p.RCLSize }
    if p.Policy != "" {
        pol, err := opt.ParsePolicy(p.Policy)
        if err != nil { return opt.Options{}, err }
        o.Policy = pol
    }
    if p.Alpha != nil { o.Alpha = *p.Alpha }
    if p.Seed != 0 { o.Seed = p.Seed }
    if o.Seed == 0 { o.Seed = opt.DeriveSeed(time.Now().UnixNano(), s.seq.Add(1)) }
    if p.TimeBudgetMs > 0 { o.TimeBudget = time.Duration(p.TimeBudgetMs) * time.Millisecond }
    return o, o.Validate()
}

func newRun(name string, o opt.Options, status string) model.Run {
    return model.Run{
        Instance: name, Status: status, Policy: o.Policy.String(), RCLSize: o.RCLSize,
        Alpha: o.Alpha, Seed: o.Seed, Iterations: o.Iterations, CreatedAt: time.Now().UTC(),
    }
}

type callback struct{ url, secret string }

// execute solves p for run, then stores the outcome, publishes the terminal event and
// enqueues the callback. It returns the finished run.
func (s *Server) execute(ctx context.Context, run model.Run, p *opt.Problem, o opt.Options, cb callback) model.Run {
    logger := log.WithFields(log.Fields{"run_id": run.ID, "instance": run.Instance, "policy": run.Policy, "seed": run.Seed})
    metrics.RunsInFlight.Inc()
    defer metrics.RunsInFlight.Dec()

    run.Status = model.RunRunning
    if err := s.Store.UpdateRun(ctx, run); err != nil {
        logger.WithError(err).Warn("mark run running")
    }
    iterations := metrics.Iterations.WithLabelValues(run.Policy)
    o.Progress = func(pr opt.Progress) {
        iterations.Inc()
        s.Broker.Publish(run.ID, SSEEvent{Type: EventRunProgress, Data: map[string]any{
            "runId": run.ID, "iteration": pr.Iteration, "fitness": pr.Fitness, "best": pr.Best, "improved": pr.Improved,
        }})
        if pr.Improved {
            logger.WithFields(log.Fields{"iteration": pr.Iteration, "fitness": pr.Fitness}).Debug("new best solution")
        }
    }

    sol, m, err := opt.Solve(ctx, p, o)
    now := time.Now().UTC()
    run.FinishedAt = &now
    if err == nil {
        err = sol.Verify(p)
    }
    if err != nil {
        run.Status = model.RunFailed
        run.Error = err.Error()
        logger.WithError(err).Error("run failed")
    } else {
        run.Status = model.RunCompleted
        run.Solution = solutionOut(sol)
        run.Metrics = metricsOut(m)
        opt.RecordMetrics(run.Instance, o.Policy, m)
        metrics.ConstructionSeconds.WithLabelValues(run.Policy).Observe(m.Elapsed.Seconds())
        metrics.BestFitness.WithLabelValues(run.Policy).Set(m.BestFitness)
        logger.WithFields(log.Fields{
            "fitness": sol.Fitness, "iterations": m.Iterations, "routes": len(sol.Routes),
            "unrouted": len(sol.Unrouted), "elapsed": m.Elapsed, "stop": m.StopReason,
        }).Info("run completed")
    }
    metrics.Runs.WithLabelValues(run.Policy, run.Status).Inc()

    // Storage must outlive a cancelled solve context.
    storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
    defer cancel()
    if err := s.Store.UpdateRun(storeCtx, run); err != nil {
        logger.WithError(err).Error("store finished run")
    }
    evt := SSEEvent{Type: EventRunCompleted, Data: map[string]any{"runId": run.ID, "status": run.Status}}
    if run.Status == model.RunFailed {
        evt.Type = EventRunFailed
        evt.Data["error"] = run.Error
    } else {
        evt.Data["fitness"] = run.Solution.Fitness
    }
    s.Broker.Publish(run.ID, evt)
    if _, err := s.Pub.RunFinished(storeCtx, run, cb.url, cb.secret); err != nil {
        logger.WithError(err).Warn("enqueue run callback")
    }
    return run
}

func solutionOut(s opt.Solution) *model.SolutionOut {
    out := &model.SolutionOut{Fitness: s.Fitness, Routes: make([]model.RouteOut, 0, len(s.Routes)), Unrouted: append([]int{}, s.Unrouted...)}
    for _, r := range s.Routes {
        ro := model.RouteOut{Vehicle: r.Vehicle, Score: r.Score, Return: r.Return, Visits: make([]model.VisitOut, 0, len(r.Visits))}
        for _, v := range r.Visits {
            ro.Visits = append(ro.Visits, model.VisitOut{Node: v.Node, Arrival: v.Arrival, Start: v.Start, Departure: v.Departure})
        }
        out.Routes = append(out.Routes, ro)
    }
    return out
}

func metricsOut(m opt.Metrics) *model.MetricsOut {
    return &model.MetricsOut{
        Iterations: m.Iterations, Improvements: m.Improvements, BestIteration: m.BestIteration,
        BestFitness: m.BestFitness, AverageFitness: m.AverageFitness, WorstFitness: m.WorstFitness,
        Insertions: m.Insertions, RoutesOpened: m.RoutesOpened, Evaluations: m.Evaluations,
        ElapsedMs: m.Elapsed.Milliseconds(), StopReason: m.StopReason,
    }
}
