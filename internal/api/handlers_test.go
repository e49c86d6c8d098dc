package api

import (
    "bufio"
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "os"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "toptw/internal/config"
    "toptw/internal/model"
    "toptw/internal/webhooks"
)

const lineProblemJSON = `{"vehicles":1,"nodes":[
 {"id":0,"x":0,"y":0,"readyTime":0,"dueTime":100},
 {"id":1,"x":10,"y":0,"score":10,"dueTime":100},
 {"id":2,"x":20,"y":0,"score":20,"dueTime":100},
 {"id":3,"x":30,"y":0,"score":30,"dueTime":100}]}`

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
    t.Helper()
    cfg := config.Default()
    cfg.GRASP.Iterations = 5
    if mutate != nil { mutate(&cfg) }
    s, err := NewServer(cfg)
    require.NoError(t, err)
    mux := http.NewServeMux()
    s.Register(mux)
    ts := httptest.NewServer(mux)
    t.Cleanup(func() {
        ts.Close()
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = s.Shutdown(ctx)
    })
    return s, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
    t.Helper()
    resp, err := http.Post(url, "application/json", strings.NewReader(body))
    require.NoError(t, err)
    t.Cleanup(func() { _ = resp.Body.Close() })
    return resp
}

func TestSolveLineProblem(t *testing.T) {
    _, ts := newTestServer(t, nil)
    resp := postJSON(t, ts.URL+"/v1/solve", `{"instance":"line","problem":`+lineProblemJSON+`,"params":{"rclSize":1,"policy":"fuzzy-best"}}`)
    require.Equal(t, http.StatusOK, resp.StatusCode)

    var run model.Run
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
    assert.Equal(t, model.RunCompleted, run.Status)
    assert.Equal(t, "fuzzy-best", run.Policy)
    assert.Equal(t, int64(1), run.Seed)
    require.NotNil(t, run.Solution)
    assert.Equal(t, 60.0, run.Solution.Fitness)
    require.Len(t, run.Solution.Routes, 1)
    visits := run.Solution.Routes[0].Visits
    require.Len(t, visits, 3)
    assert.Equal(t, []int{3, 2, 1}, []int{visits[0].Node, visits[1].Node, visits[2].Node})
    assert.Equal(t, 60.0, run.Solution.Routes[0].Return)
    require.NotNil(t, run.Metrics)
    assert.Equal(t, 5, run.Metrics.Iterations)
    assert.Equal(t, "iterations", run.Metrics.StopReason)
}

func TestSolveAcceptsInstanceText(t *testing.T) {
    _, ts := newTestServer(t, nil)
    text, err := os.ReadFile("../instance/testdata/line3.txt")
    require.NoError(t, err)
    body, err := json.Marshal(model.SolveRequest{Instance: "line3", InstanceText: string(text), Params: model.GRASPParams{RCLSize: 1}})
    require.NoError(t, err)

    resp := postJSON(t, ts.URL+"/v1/solve", string(body))
    require.Equal(t, http.StatusOK, resp.StatusCode)
    var run model.Run
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
    assert.Equal(t, 60.0, run.Solution.Fitness)

    resp = postJSON(t, ts.URL+"/v1/instances/parse", string(text))
    require.Equal(t, http.StatusOK, resp.StatusCode)
    var p model.ProblemIn
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
    assert.Equal(t, 1, p.Vehicles)
    assert.Len(t, p.Nodes, 4)
    require.NotNil(t, p.MaxRouteDuration)
    assert.Equal(t, 100.0, *p.MaxRouteDuration)
}

func TestSolveValidation(t *testing.T) {
    _, ts := newTestServer(t, func(c *config.Config) { c.Server.MaxNodes = 3 })
    cases := map[string]struct {
        body   string
        status int
    }{
        "bad json":     {`{`, http.StatusBadRequest},
        "no problem":   {`{"params":{}}`, http.StatusBadRequest},
        "bad policy":   {`{"problem":` + lineProblemJSON + `,"params":{"policy":"roulette"}}`, http.StatusBadRequest},
        "bad alpha":    {`{"problem":` + lineProblemJSON + `,"params":{"alpha":2}}`, http.StatusBadRequest},
        "bad callback": {`{"problem":` + lineProblemJSON + `,"callbackUrl":"ftp://x"}`, http.StatusBadRequest},
        "too large":    {`{"problem":` + lineProblemJSON + `}`, http.StatusRequestEntityTooLarge},
        "bad window":   {`{"problem":{"vehicles":1,"nodes":[{"id":0,"dueTime":10},{"id":1,"readyTime":5,"dueTime":1}]}}`, http.StatusUnprocessableEntity},
    }
    for name, tc := range cases {
        t.Run(name, func(t *testing.T) {
            resp := postJSON(t, ts.URL+"/v1/solve", tc.body)
            assert.Equal(t, tc.status, resp.StatusCode)
            assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
        })
    }

    resp, err := http.Get(ts.URL + "/v1/solve")
    require.NoError(t, err)
    _ = resp.Body.Close()
    assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func waitRun(t *testing.T, ts *httptest.Server, id string) model.Run {
    t.Helper()
    var run model.Run
    require.Eventually(t, func() bool {
        resp, err := http.Get(ts.URL + "/v1/runs/" + id)
        if err != nil { return false }
        defer resp.Body.Close()
        if resp.StatusCode != http.StatusOK { return false }
        if err := json.NewDecoder(resp.Body).Decode(&run); err != nil { return false }
        return run.Status == model.RunCompleted || run.Status == model.RunFailed
    }, 5*time.Second, 20*time.Millisecond)
    return run
}

func TestAsyncRunLifecycle(t *testing.T) {
    s, ts := newTestServer(t, nil)
    resp := postJSON(t, ts.URL+"/v1/runs", `{"instance":"line","problem":`+lineProblemJSON+`,"params":{"seed":7}}`)
    require.Equal(t, http.StatusAccepted, resp.StatusCode)
    var accepted struct {
        ID     string            `json:"id"`
        Status string            `json:"status"`
        Links  map[string]string `json:"links"`
    }
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
    require.NotEmpty(t, accepted.ID)
    assert.Equal(t, "/v1/runs/"+accepted.ID, resp.Header.Get("Location"))
    assert.Equal(t, "/v1/runs/"+accepted.ID+"/events/stream", accepted.Links["events"])

    run := waitRun(t, ts, accepted.ID)
    assert.Equal(t, model.RunCompleted, run.Status)
    assert.Equal(t, int64(7), run.Seed)
    assert.NotNil(t, run.FinishedAt)

    list, err := http.Get(ts.URL + "/v1/runs?limit=10")
    require.NoError(t, err)
    defer list.Body.Close()
    var page struct{ Items []model.Run `json:"items"` }
    require.NoError(t, json.NewDecoder(list.Body).Decode(&page))
    require.Len(t, page.Items, 1)
    assert.Equal(t, accepted.ID, page.Items[0].ID)

    m, err := http.Get(ts.URL + "/v1/admin/run-metrics?instance=line")
    require.NoError(t, err)
    defer m.Body.Close()
    var metrics struct{ Policies map[string]model.MetricsOut `json:"policies"` }
    require.NoError(t, json.NewDecoder(m.Body).Decode(&metrics))
    assert.Contains(t, metrics.Policies, s.Defaults.Policy.String())

    hooks, err := http.Get(ts.URL + "/v1/runs/" + accepted.ID + "/webhooks")
    require.NoError(t, err)
    defer hooks.Body.Close()
    var deliveries struct{ Items []map[string]any `json:"items"` }
    require.NoError(t, json.NewDecoder(hooks.Body).Decode(&deliveries))
    assert.Empty(t, deliveries.Items, "no callback requested")

    for path, status := range map[string]int{
        "/v1/runs/nope":          http.StatusNotFound,
        "/v1/runs/nope/webhooks": http.StatusNotFound,
        "/v1/runs?cursor=bogus":  http.StatusBadRequest,
    } {
        resp, err := http.Get(ts.URL + path)
        require.NoError(t, err)
        _ = resp.Body.Close()
        assert.Equal(t, status, resp.StatusCode, path)
    }
}

func TestRunEventStreamEndsWithTerminalEvent(t *testing.T) {
    _, ts := newTestServer(t, nil)
    resp := postJSON(t, ts.URL+"/v1/solve", `{"problem":`+lineProblemJSON+`}`)
    var run model.Run
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))

    stream, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/events/stream")
    require.NoError(t, err)
    defer stream.Body.Close()
    assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

    var events []string
    sc := bufio.NewScanner(stream.Body)
    for sc.Scan() {
        if v, ok := strings.CutPrefix(sc.Text(), "event: "); ok { events = append(events, v) }
    }
    assert.Equal(t, []string{"heartbeat", EventRunCompleted}, events)
}

func TestRunWebSocketRelaysProgress(t *testing.T) {
    s, ts := newTestServer(t, nil)
    p, err := s.buildProblem(&model.SolveRequest{Problem: &model.ProblemIn{Vehicles: 1, Nodes: []model.NodeIn{
        {ID: 0, DueTime: 100}, {ID: 1, X: 10, Score: 10, DueTime: 100},
    }}})
    require.NoError(t, err)
    o, err := s.solveOptions(model.GRASPParams{Iterations: 3})
    require.NoError(t, err)
    run, err := s.Store.CreateRun(context.Background(), newRun("ws", o, model.RunQueued))
    require.NoError(t, err)

    url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/runs/" + run.ID + "/ws"
    conn, _, err := websocket.DefaultDialer.Dial(url, nil)
    require.NoError(t, err)
    defer conn.Close()

    go s.execute(context.Background(), run, p, o, callback{})

    var types []string
    for {
        var m wsMessage
        require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
        if err := conn.ReadJSON(&m); err != nil { break }
        types = append(types, m.Type)
    }
    assert.Equal(t, []string{EventRunProgress, EventRunProgress, EventRunProgress, EventRunCompleted}, types)
}

func TestExecuteDeliversTerminalEventToLaggingSubscriber(t *testing.T) {
    s, _ := newTestServer(t, nil)
    p, err := s.buildProblem(&model.SolveRequest{Problem: &model.ProblemIn{Vehicles: 1, Nodes: []model.NodeIn{
        {ID: 0, DueTime: 100}, {ID: 1, X: 10, Score: 10, DueTime: 100}, {ID: 2, Y: 10, Score: 5, DueTime: 100},
    }}})
    require.NoError(t, err)
    o, err := s.solveOptions(model.GRASPParams{Iterations: 100})
    require.NoError(t, err)
    run, err := s.Store.CreateRun(context.Background(), newRun("lag", o, model.RunQueued))
    require.NoError(t, err)

    ch := s.Broker.Subscribe(run.ID)
    defer s.Broker.Unsubscribe(run.ID, ch)
    done := s.execute(context.Background(), run, p, o, callback{})
    require.Equal(t, model.RunCompleted, done.Status)

    got := drain(ch)
    require.Len(t, got, subscriberBuffer)
    assert.Equal(t, EventRunCompleted, got[len(got)-1].Type)
    assert.Equal(t, EventRunProgress, got[0].Type)
}

func TestRunCallbackUsesTerminalEventType(t *testing.T) {
    _, ts := newTestServer(t, nil)
    resp := postJSON(t, ts.URL+"/v1/solve", `{"problem":`+lineProblemJSON+`,"callbackUrl":"http://127.0.0.1:1/hook","callbackSecret":"s3cret"}`)
    require.Equal(t, http.StatusOK, resp.StatusCode)
    var run model.Run
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))

    hooks, err := http.Get(ts.URL + "/v1/runs/" + run.ID + "/webhooks")
    require.NoError(t, err)
    defer hooks.Body.Close()
    var deliveries struct{ Items []map[string]any `json:"items"` }
    require.NoError(t, json.NewDecoder(hooks.Body).Decode(&deliveries))
    require.Len(t, deliveries.Items, 1)
    assert.Equal(t, EventRunCompleted, deliveries.Items[0]["eventType"])
    assert.Equal(t, webhooks.EventRunCompleted, EventRunCompleted)
    assert.NotContains(t, deliveries.Items[0], "Secret")
}

func TestNewServerRejectsZeroSolveTimeout(t *testing.T) {
    cfg := config.Default()
    cfg.Server.SolveTimeout = 0
    _, err := NewServer(cfg)
    require.ErrorIs(t, err, config.ErrInvalid)
}

func TestRateLimit(t *testing.T) {
    _, ts := newTestServer(t, func(c *config.Config) { c.Server.RateRPS = 0.001; c.Server.RateBurst = 1 })
    body := `{"problem":` + lineProblemJSON + `}`
    first := postJSON(t, ts.URL+"/v1/solve", body)
    assert.Equal(t, http.StatusOK, first.StatusCode)
    second := postJSON(t, ts.URL+"/v1/solve", body)
    assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
    assert.NotEmpty(t, second.Header.Get("Retry-After"))
}

func TestConfigHealthAndDebug(t *testing.T) {
    _, ts := newTestServer(t, nil)
    for _, path := range []string{"/healthz", "/readyz", "/v1/grasp/config", "/v1/admin/debug"} {
        resp, err := http.Get(ts.URL + path)
        require.NoError(t, err)
        var buf bytes.Buffer
        _, _ = buf.ReadFrom(resp.Body)
        _ = resp.Body.Close()
        assert.Equal(t, http.StatusOK, resp.StatusCode, path)
        assert.True(t, json.Valid(buf.Bytes()), path)
    }
}
