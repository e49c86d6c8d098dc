package opt

import "sync"

type key struct{
    Instance string
    Policy string
}

var (
    mu sync.Mutex
    store = map[key]Metrics{}
)

// RecordMetrics keeps the latest metrics of a solve, per instance and policy.
func RecordMetrics(instance string, policy Policy, m Metrics) {
    m.Snapshots = append([]FitnessSnapshot(nil), m.Snapshots...)
    mu.Lock()
    store[key{Instance: instance, Policy: policy.String()}] = m
    mu.Unlock()
}

func GetMetrics(instance string) map[string]Metrics {
    mu.Lock()
    defer mu.Unlock()
    out := map[string]Metrics{}
    for k, v := range store {
        if k.Instance == instance {
            out[k.Policy] = v
        }
    }
    return out
}

func resetMetrics() {
    mu.Lock()
    store = map[key]Metrics{}
    mu.Unlock()
}
