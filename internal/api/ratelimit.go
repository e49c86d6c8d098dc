package api

import (
    "math"
    "net/http"
    "strconv"
)

// RateLimited rejects requests beyond the configured solve rate with 429.
func (s *Server) RateLimited(next http.HandlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { next(w, r); return }
        res := s.limiter.Reserve()
        if delay := res.Delay(); delay > 0 {
            res.Cancel()
            w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate limit exceeded", r.URL.Path)
            return
        }
        next(w, r)
    }
}
