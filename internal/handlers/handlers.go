package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Billy-Davies-2/knockout-pool/internal/dal"
	"github.com/Billy-Davies-2/knockout-pool/internal/engine"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

// Scoring is the part of engine.Service the API serves
type Scoring interface {
	Standings(ctx context.Context, code string) (models.Standings, error)
	AllStandings(ctx context.Context) ([]models.Standings, error)
	Leaderboard(ctx context.Context, top int) ([]models.LeaderboardEntry, error)
	ParticipantBreakdown(ctx context.Context, id int) (*models.ParticipantBreakdown, error)
	TeamTotals(ctx context.Context) ([]models.TeamTotal, error)
	SlotMapping(ctx context.Context) (map[string]string, error)
	Games(ctx context.Context) ([]models.Game, error)
	Recompute(ctx context.Context) (*models.CycleReport, error)
	SubmitResults(ctx context.Context, results []models.Result) (*models.CycleReport, error)
	ReplaceSlotMapping(ctx context.Context, mapping map[string]string) (*models.CycleReport, error)
}

// History looks up recorded score changes
type History interface {
	ScoreHistory(ctx context.Context, participantID int) ([]models.ScorePoint, error)
}

// EventSource feeds the SSE stream
type EventSource interface {
	Subscribe() chan pubsub.Event
	Unsubscribe(chan pubsub.Event)
}

// APIHandlers contains all API handler methods
type APIHandlers struct {
	svc       Scoring
	events    EventSource
	history   History
	keepalive time.Duration
}

// NewAPIHandlers creates a new API handlers instance. history may be nil.
func NewAPIHandlers(svc Scoring, events EventSource, history History) *APIHandlers {
	return &APIHandlers{
		svc:       svc,
		events:    events,
		history:   history,
		keepalive: 30 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps service errors onto status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, dal.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrValidation), errors.Is(err, dal.ErrPartialScore):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, dal.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		return
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("body must not be empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// ListStandings returns every stage table in tournament order
func (h *APIHandlers) ListStandings(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.AllStandings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// GetStandings returns the table of one stage code
func (h *APIHandlers) GetStandings(w http.ResponseWriter, r *http.Request) {
	table, err := h.svc.Standings(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// GetLeaderboard returns ranked participants, limited by ?top=N
func (h *APIHandlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	top := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, fmt.Errorf("top must be a non-negative integer"))
			return
		}
		top = n
	}

	board, err := h.svc.Leaderboard(r.Context(), top)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func participantID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("participant id must be a positive integer")
	}
	return id, nil
}

// GetParticipant returns a participant's score per draft entry
func (h *APIHandlers) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := participantID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	breakdown, err := h.svc.ParticipantBreakdown(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// GetParticipantHistory returns the audited score changes of a participant
func (h *APIHandlers) GetParticipantHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "score history not configured"})
		return
	}
	id, err := participantID(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	history, err := h.history.ScoreHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// ListTeams returns every team with its total game points
func (h *APIHandlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.TeamTotals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// ListGames returns every fixture
func (h *APIHandlers) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.svc.Games(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetSlots returns the slot mapping, unresolved slots mapped to ""
func (h *APIHandlers) GetSlots(w http.ResponseWriter, r *http.Request) {
	mapping, err := h.svc.SlotMapping(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}

// ReplaceSlots swaps in a complete slot mapping and recomputes
func (h *APIHandlers) ReplaceSlots(w http.ResponseWriter, r *http.Request) {
	var mapping map[string]string
	if err := readJSON(w, r, &mapping); err != nil {
		badRequest(w, err)
		return
	}

	report, err := h.svc.ReplaceSlotMapping(r.Context(), mapping)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SubmitResults stores goal pairs and recomputes
func (h *APIHandlers) SubmitResults(w http.ResponseWriter, r *http.Request) {
	var results []models.Result
	if err := readJSON(w, r, &results); err != nil {
		badRequest(w, err)
		return
	}

	report, err := h.svc.SubmitResults(r.Context(), results)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Recompute runs a recomputation cycle on demand
func (h *APIHandlers) Recompute(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Recompute(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// EventsSSE provides Server-Sent Events for realtime updates. ?types=a,b
// limits the stream to the listed event types.
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	var only map[string]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		only = make(map[string]bool)
		for _, t := range strings.Split(raw, ",") {
			only[strings.TrimSpace(t)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.events.Subscribe()
	defer h.events.Unsubscribe(eventChan)

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if only != nil && !only[event.Type] {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Warn("Failed to encode event", "type", event.Type, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
