// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ReadinessReporter is implemented by the invalidation consumer.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = time.Second

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

type readiness struct {
	Status     string  `json:"status"`
	Consumer   string  `json:"consumer"`
	Partitions []int32 `json:"partitions,omitempty"`
	Cache      string  `json:"cache"`
}

// Readiness answers 503 until the consumer holds its partitions and the
// cache answers a ping. Either dependency may be nil.
func Readiness(rr ReadinessReporter, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := readiness{Status: "ready", Consumer: "disabled", Cache: "disabled"}

		if rr != nil {
			ok, parts := rr.Readiness()
			if ok {
				out.Consumer = "ready"
				out.Partitions = parts
			} else {
				out.Consumer = "not_ready"
				out.Status = "not_ready"
			}
		}
		if cache != nil {
			ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
			err := cache.Ping(ctx)
			cancel()
			if err != nil {
				out.Cache = "unreachable"
				out.Status = "not_ready"
			} else {
				out.Cache = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
