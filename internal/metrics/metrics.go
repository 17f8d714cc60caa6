package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// Recorder exposes recomputation and HTTP metrics on its own registry
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	scoreChanges  prometheus.Counter
	teamChanges   prometheus.Counter
	lastCommit    prometheus.Gauge
	requests      *prometheus.CounterVec
}

// NewRecorder registers the pool collectors plus the Go and process collectors
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pool",
			Name:      "recompute_cycles_total",
			Help:      "Recomputation cycles by outcome (committed, unchanged, failed).",
		}, []string{"outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pool",
			Name:      "recompute_duration_seconds",
			Help:      "Wall time of a recomputation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		scoreChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pool",
			Name:      "participant_score_changes_total",
			Help:      "Participant totals rewritten by committed cycles.",
		}),
		teamChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pool",
			Name:      "team_total_changes_total",
			Help:      "Team rows rewritten by committed cycles.",
		}),
		lastCommit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pool",
			Name:      "last_commit_timestamp_seconds",
			Help:      "Unix time of the last committed cycle.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pool",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		r.cycles, r.cycleDuration, r.scoreChanges, r.teamChanges, r.lastCommit, r.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveCycle records one recomputation
func (r *Recorder) ObserveCycle(d time.Duration, report *models.CycleReport, err error) {
	r.cycleDuration.Observe(d.Seconds())

	switch {
	case err != nil:
		r.cycles.WithLabelValues("failed").Inc()
	case report == nil || len(report.Scores)+len(report.Teams) == 0:
		r.cycles.WithLabelValues("unchanged").Inc()
	default:
		r.cycles.WithLabelValues("committed").Inc()
		r.scoreChanges.Add(float64(len(report.Scores)))
		r.teamChanges.Add(float64(len(report.Teams)))
		r.lastCommit.Set(float64(report.At.Unix()))
	}
}

// ObserveRequest counts one served HTTP request
func (r *Recorder) ObserveRequest(route string, code int) {
	r.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
