package api

import (
    "encoding/json"
    "net/http"
    "time"

    "toptw/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "addr": s.Cfg.Server.Addr,
            "rateRps": s.Cfg.Server.RateRPS,
            "rateBurst": s.Cfg.Server.RateBurst,
            "solveTimeout": s.Cfg.Server.SolveTimeout.String(),
            "maxNodes": s.Cfg.Server.MaxNodes,
            "webhookMaxAttempts": s.Cfg.Webhooks.MaxAttempts,
            "hasDatabaseURL": s.Cfg.Storage.DatabaseURL != "",
            "hasRedisURL": s.Cfg.Storage.RedisURL != "",
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
