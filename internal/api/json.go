package api

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("write response")
	}
}

// writeProblem writes a problem document; server-side failures are also logged.
func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"status": status, "path": instance, "detail": detail}).Error(title)
	}
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}
