package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

func TestObserveCycle(t *testing.T) {
	r := NewRecorder()

	r.ObserveCycle(time.Millisecond, nil, errors.New("boom"))
	r.ObserveCycle(time.Millisecond, &models.CycleReport{}, nil)
	r.ObserveCycle(2*time.Millisecond, &models.CycleReport{
		At:     time.Unix(1671390000, 0),
		Teams:  []models.TeamUpdate{{Name: "Argentinië"}},
		Scores: []models.ScoreChange{{ParticipantID: 1}, {ParticipantID: 2}},
	}, nil)

	tests := []struct {
		outcome string
		want    float64
	}{
		{"failed", 1},
		{"unchanged", 1},
		{"committed", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(r.cycles.WithLabelValues(tt.outcome)); got != tt.want {
			t.Errorf("cycles{outcome=%q} = %v, want %v", tt.outcome, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(r.scoreChanges); got != 2 {
		t.Errorf("score changes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.lastCommit); got != 1671390000 {
		t.Errorf("last commit = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveRequest("/api/standings", http.StatusOK)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"pool_http_requests_total", "pool_recompute_duration_seconds", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("exposition misses %s", name)
		}
	}
}
