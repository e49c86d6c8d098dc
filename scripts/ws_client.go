// Package main runs a demo WebSocket client that follows a solve run.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Queue a small run
	body := []byte(`{"instance":"demo","params":{"iterations":200,"rclSize":3,"policy":"fuzzy-alpha-cut","alpha":0.7},
"problem":{"vehicles":2,"nodes":[
{"id":0,"x":35,"y":35,"dueTime":230},
{"id":1,"x":41,"y":49,"score":10,"readyTime":161,"dueTime":171,"serviceTime":10},
{"id":2,"x":35,"y":17,"score":7,"readyTime":50,"dueTime":60,"serviceTime":10},
{"id":3,"x":55,"y":45,"score":13,"readyTime":116,"dueTime":126,"serviceTime":10},
{"id":4,"x":55,"y":20,"score":19,"readyTime":149,"dueTime":159,"serviceTime":10},
{"id":5,"x":15,"y":30,"score":26,"readyTime":34,"dueTime":44,"serviceTime":10}]}}`)
	resp, err := http.Post(base+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("queue run: %s", resp.Status)
	}
	var accepted struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", accepted.ID)

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + accepted.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("read: %v", err)
				}
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	select {
	case <-time.After(30 * time.Second):
	case <-done:
	}
}
