package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    log "github.com/sirupsen/logrus"

    "toptw/internal/model"
)

const heartbeatInterval = 15 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
    Type    string         `json:"type"`
    Payload map[string]any `json:"payload,omitempty"`
}

func isTerminal(evt SSEEvent) bool {
    return evt.Type == EventRunCompleted || evt.Type == EventRunFailed
}

// finishedEvent returns the terminal event of a run that already finished.
func (s *Server) finishedEvent(r *http.Request, id string) (SSEEvent, bool, error) {
    run, err := s.Store.GetRun(r.Context(), id)
    if err != nil { return SSEEvent{}, false, err }
    switch run.Status {
    case model.RunCompleted:
        fitness := 0.0
        if run.Solution != nil { fitness = run.Solution.Fitness }
        return SSEEvent{Type: EventRunCompleted, Data: map[string]any{"runId": id, "status": run.Status, "fitness": fitness}}, true, nil
    case model.RunFailed:
        return SSEEvent{Type: EventRunFailed, Data: map[string]any{"runId": id, "status": run.Status, "error": run.Error}}, true, nil
    }
    return SSEEvent{}, false, nil
}

// streamRunEvents relays run events as Server-Sent Events until the run finishes
// or the client goes away.
func (s *Server) streamRunEvents(w http.ResponseWriter, r *http.Request, id string) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path); return }

    // Subscribe before checking status so the terminal event cannot slip between.
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    done, finished, err := s.finishedEvent(r, id)
    if err != nil { writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path); return }

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    send := func(evt SSEEvent) {
        b, _ := json.Marshal(evt.Data)
        fmt.Fprintf(w, "event: %s\n", evt.Type)
        fmt.Fprintf(w, "data: %s\n\n", string(b))
        flusher.Flush()
    }
    heartbeat := func() {
        send(SSEEvent{Type: "heartbeat", Data: map[string]any{"runId": id, "ts": time.Now().UTC().Format(time.RFC3339)}})
    }
    heartbeat()
    if finished { send(done); return }

    ticker := time.NewTicker(heartbeatInterval)
    defer ticker.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            send(evt)
            if isTerminal(evt) { return }
        case <-ticker.C:
            heartbeat()
        }
    }
}

// runWebSocket relays run events over a WebSocket connection.
func (s *Server) runWebSocket(w http.ResponseWriter, r *http.Request, id string) {
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    done, finished, err := s.finishedEvent(r, id)
    if err != nil { writeProblem(w, http.StatusNotFound, "Run not found", id, r.URL.Path); return }

    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil { return }
    defer func() { _ = conn.Close() }()
    logger := log.WithField("run_id", id)

    // Reader: surfaces client close.
    closed := make(chan struct{})
    go func() {
        defer close(closed)
        for {
            if _, _, err := conn.ReadMessage(); err != nil { return }
        }
    }()

    write := func(evt SSEEvent) error {
        _ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
        return conn.WriteJSON(wsMessage{Type: evt.Type, Payload: evt.Data})
    }
    bye := func() {
        msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
        _ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
    }
    if finished {
        if err := write(done); err == nil { bye() }
        return
    }

    ticker := time.NewTicker(heartbeatInterval)
    defer ticker.Stop()
    for {
        select {
        case <-closed:
            return
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            if err := write(evt); err != nil { logger.WithError(err).Debug("ws write"); return }
            if isTerminal(evt) { bye(); return }
        case <-ticker.C:
            if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil { return }
        }
    }
}
