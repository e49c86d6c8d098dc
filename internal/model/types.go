package model

import "time"

// Wire types of the HTTP API.

type NodeIn struct {
    ID          int     `json:"id"`
    X           float64 `json:"x"`
    Y           float64 `json:"y"`
    Score       float64 `json:"score"`
    ReadyTime   float64 `json:"readyTime"`
    DueTime     float64 `json:"dueTime"`
    ServiceTime float64 `json:"serviceTime,omitempty"`
}

// ProblemIn is a JSON instance. Nodes[0] is the depot; MaxRouteDuration defaults to its due time.
type ProblemIn struct {
    Vehicles         int      `json:"vehicles"`
    MaxRouteDuration *float64 `json:"maxRouteDuration,omitempty"`
    Nodes            []NodeIn `json:"nodes"`
}

type GRASPParams struct {
    Iterations   int     `json:"iterations,omitempty"`
    RCLSize      int     `json:"rclSize,omitempty"`
    Policy       string  `json:"policy,omitempty"`
    Alpha        *float64 `json:"alpha,omitempty"`
    Seed         int64   `json:"seed,omitempty"`
    TimeBudgetMs int     `json:"timeBudgetMs,omitempty"`
}

// SolveRequest carries either Problem or InstanceText (the benchmark file format).
type SolveRequest struct {
    Instance       string      `json:"instance,omitempty"`
    Problem        *ProblemIn  `json:"problem,omitempty"`
    InstanceText   string      `json:"instanceText,omitempty"`
    Params         GRASPParams `json:"params"`
    CallbackURL    string      `json:"callbackUrl,omitempty"`
    CallbackSecret string      `json:"callbackSecret,omitempty"`
}

type VisitOut struct {
    Node      int     `json:"node"`
    Arrival   float64 `json:"arrival"`
    Start     float64 `json:"start"`
    Departure float64 `json:"departure"`
}

type RouteOut struct {
    Vehicle int        `json:"vehicle"`
    Visits  []VisitOut `json:"visits"`
    Score   float64    `json:"score"`
    Return  float64    `json:"return"`
}

type SolutionOut struct {
    Fitness  float64    `json:"fitness"`
    Routes   []RouteOut `json:"routes"`
    Unrouted []int      `json:"unrouted"`
}

type MetricsOut struct {
    Iterations     int     `json:"iterations"`
    Improvements   int     `json:"improvements"`
    BestIteration  int     `json:"bestIteration"`
    BestFitness    float64 `json:"bestFitness"`
    AverageFitness float64 `json:"averageFitness"`
    WorstFitness   float64 `json:"worstFitness"`
    Insertions     int     `json:"insertions"`
    RoutesOpened   int     `json:"routesOpened"`
    Evaluations    int     `json:"evaluations"`
    ElapsedMs      int64   `json:"elapsedMs"`
    StopReason     string  `json:"stopReason"`
}

// Run statuses.
const (
    RunQueued    = "queued"
    RunRunning   = "running"
    RunCompleted = "completed"
    RunFailed    = "failed"
)

type Run struct {
    ID         string       `json:"id"`
    Instance   string       `json:"instance,omitempty"`
    Status     string       `json:"status"`
    Policy     string       `json:"policy"`
    RCLSize    int          `json:"rclSize"`
    Alpha      float64      `json:"alpha"`
    Seed       int64        `json:"seed"`
    Iterations int          `json:"iterations"`
    Solution   *SolutionOut `json:"solution,omitempty"`
    Metrics    *MetricsOut  `json:"metrics,omitempty"`
    Error      string       `json:"error,omitempty"`
    CreatedAt  time.Time    `json:"createdAt"`
    FinishedAt *time.Time   `json:"finishedAt,omitempty"`
}
