package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// Health serves liveness, readiness and a per-dependency status report
type Health struct {
	critical map[string]Check
	optional map[string]Check
	timeout  time.Duration
}

// NewHealth creates an empty health reporter
func NewHealth() *Health {
	return &Health{
		critical: make(map[string]Check),
		optional: make(map[string]Check),
		timeout:  3 * time.Second,
	}
}

// Critical registers a dependency readiness depends on
func (h *Health) Critical(name string, c Check) *Health {
	h.critical[name] = c
	return h
}

// Optional registers a dependency that only degrades the status report
func (h *Health) Optional(name string, c Check) *Health {
	h.optional[name] = c
	return h
}

// Liveness handles Kubernetes liveness probes. It never checks dependencies.
func (h *Health) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// Readiness handles Kubernetes readiness probes
func (h *Health) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for _, name := range sortedNames(h.critical) {
		if err := h.critical[name](ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":    "not_ready",
				"reason":    name + "_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

// Status reports every registered dependency
func (h *Health) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	run := func(set map[string]Check, critical bool) {
		for _, name := range sortedNames(set) {
			if err := set[name](ctx); err != nil {
				status = "degraded"
				if critical {
					httpStatus = http.StatusServiceUnavailable
				}
				checks[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
				continue
			}
			checks[name] = map[string]interface{}{"status": "healthy"}
		}
	}
	run(h.critical, true)
	run(h.optional, false)

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

func sortedNames(set map[string]Check) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
