// Package engine runs the recomputation cycle: standings per stage code,
// game-point totals per canonical team, and participant scores.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/knockout-pool/internal/bracket"
	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
	"github.com/Billy-Davies-2/knockout-pool/internal/scoring"
	"github.com/Billy-Davies-2/knockout-pool/internal/standings"
)

// Event types published on the bus
const (
	EventScoresUpdated    = "scores:updated"
	EventResultsSubmitted = "results:submitted"
	EventSlotsReplaced    = "slots:replaced"
)

var (
	// ErrValidation is returned when stored data or input violates the rules
	// of the tournament. Nothing is committed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for an unknown participant, stage code or fixture
	ErrNotFound = errors.New("not found")
)

// Store is the storage the engine reads snapshots from and commits to
type Store interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	Commit(ctx context.Context, c models.Commit) error
	UpdateResults(ctx context.Context, results []models.Result) error
	ReplaceSlotMapping(ctx context.Context, mapping map[string]string) error
}

// Publisher receives events after a committed change
type Publisher interface {
	Publish(pubsub.Event)
}

// AuditSink records committed cycles
type AuditSink interface {
	RecordCycle(ctx context.Context, report models.CycleReport) error
}

// Observer is told about every cycle, failed or not
type Observer interface {
	ObserveCycle(d time.Duration, report *models.CycleReport, err error)
}

// Service owns the recomputation cycle of one tournament. Cycles and writes
// are serialized; queries read a snapshot without taking the cycle lock.
type Service struct {
	mu sync.Mutex

	store      Store
	tournament *config.Tournament
	rules      scoring.Rules
	calc       *standings.Calculator
	agg        *Aggregator

	publisher Publisher
	audit     AuditSink
	observer  Observer

	instance string
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithPublisher publishes cycle and result events
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithAuditSink records every committed cycle
func WithAuditSink(a AuditSink) Option {
	return func(s *Service) { s.audit = a }
}

// WithObserver reports cycle timings and outcomes
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scoring service for one tournament
func NewService(store Store, t *config.Tournament, opts ...Option) *Service {
	rules := scoring.NewRules(t)
	calc := standings.NewCalculator(t, rules)
	s := &Service{
		store:      store,
		tournament: t,
		rules:      rules,
		calc:       calc,
		agg:        NewAggregator(t, calc),
		instance:   uuid.NewString(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instance identifies this service in published events
func (s *Service) Instance() string { return s.instance }

// Tournament returns the tournament the service scores
func (s *Service) Tournament() *config.Tournament { return s.tournament }

// evaluation is everything derived from one snapshot
type evaluation struct {
	snapshot *models.Snapshot
	resolver *bracket.Resolver
	tables   []models.Standings
	totals   map[string]int
}

func (e *evaluation) scorer(t *config.Tournament) scorer {
	return scorer{tournament: t, resolver: e.resolver, totals: e.totals}
}

func (s *Service) evaluate(ctx context.Context) (*evaluation, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	resolver, err := bracket.NewResolver(s.tournament, snap.SlotMapping)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := s.calc.Validate(snap.Games, snap.Teams); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validateDraft(snap.Draft); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	tables, err := s.agg.Tables(ctx, snap.Games)
	if err != nil {
		return nil, fmt.Errorf("failed to build standings: %w", err)
	}

	return &evaluation{
		snapshot: snap,
		resolver: resolver,
		tables:   tables,
		totals:   Totals(tables, resolver),
	}, nil
}

// validateDraft rejects a participant reusing a value or a reference
func validateDraft(draft []models.DraftEntry) error {
	type key struct {
		participant int
		value       int
	}
	type ref struct {
		participant int
		reference   string
	}
	values := make(map[key]struct{}, len(draft))
	refs := make(map[ref]struct{}, len(draft))
	for _, e := range draft {
		if _, dup := values[key{e.ParticipantID, e.Value}]; dup {
			return fmt.Errorf("participant %d uses draft value %d twice", e.ParticipantID, e.Value)
		}
		values[key{e.ParticipantID, e.Value}] = struct{}{}

		r := ref{e.ParticipantID, config.NormalizeCode(e.Reference)}
		if _, dup := refs[r]; dup {
			return fmt.Errorf("participant %d drafts %q twice", e.ParticipantID, e.Reference)
		}
		refs[r] = struct{}{}
	}
	return nil
}

// Recompute runs one full cycle: it reads a snapshot, derives standings,
// team totals and participant scores, and commits whatever changed in a
// single write. Running it twice on the same data commits nothing the
// second time.
func (s *Service) Recompute(ctx context.Context) (*models.CycleReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(ctx)
}

func (s *Service) recomputeLocked(ctx context.Context) (report *models.CycleReport, err error) {
	start := s.now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveCycle(s.now().Sub(start), report, err)
		}
	}()

	logger.Debug("Recompute started", "tournament", s.tournament.Name())

	eval, err := s.evaluate(ctx)
	if err != nil {
		logger.Error("Recompute failed", "error", err)
		return nil, err
	}

	commit := models.Commit{
		Teams:        teamUpdates(eval.snapshot.Teams, eval.totals, eval.resolver),
		Participants: eval.scorer(s.tournament).changes(eval.snapshot.Participants, eval.snapshot.Draft),
	}

	if !commit.Empty() {
		if err := s.store.Commit(ctx, commit); err != nil {
			logger.Error("Recompute commit failed", "error", err)
			return nil, fmt.Errorf("failed to commit cycle: %w", err)
		}
	}

	report = &models.CycleReport{
		ID:       uuid.NewString(),
		At:       start.UTC(),
		Duration: s.now().Sub(start),
		Teams:    commit.Teams,
		Scores:   commit.Participants,
	}

	for _, t := range commit.Teams {
		logger.Debug("Team total updated", "team", t.Name, "identity", t.FinalIdentity, "old", t.OldTotal, "new", t.TotalGamePoints)
	}
	for _, c := range commit.Participants {
		logger.Info("Participant score updated", "participant", c.Name, "old", c.OldScore, "new", c.NewScore, "delta", fmt.Sprintf("%+d", c.Delta))
	}
	logger.Info("Recompute finished",
		"cycle", report.ID,
		"changed", len(commit.Participants),
		"teams", len(commit.Teams),
		"duration", report.Duration.String())

	if !commit.Empty() {
		s.afterCommit(ctx, report)
	}

	return report, nil
}

// afterCommit publishes and audits a committed cycle. Failures are logged
// and never undo the commit.
func (s *Service) afterCommit(ctx context.Context, report *models.CycleReport) {
	if s.publisher != nil {
		s.publisher.Publish(pubsub.Event{
			Type: EventScoresUpdated,
			Payload: map[string]interface{}{
				"cycle":   report.ID,
				"origin":  s.instance,
				"changed": len(report.Scores),
				"teams":   len(report.Teams),
			},
		})
	}
	if s.audit != nil {
		if err := s.audit.RecordCycle(ctx, *report); err != nil {
			logger.Warn("Failed to record cycle audit", "cycle", report.ID, "error", err)
		}
	}
}

// SubmitResults stores goal pairs and recomputes. A result must carry both
// goal counts or neither; neither clears the fixture.
func (s *Service) SubmitResults(ctx context.Context, results []models.Result) (*models.CycleReport, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no results given", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	games := make(map[int]struct{}, len(snap.Games))
	for _, g := range snap.Games {
		games[g.ID] = struct{}{}
	}

	for _, r := range results {
		if _, ok := games[r.GameID]; !ok {
			return nil, fmt.Errorf("%w: fixture %d", ErrNotFound, r.GameID)
		}
		if (r.HomeGoals == nil) != (r.AwayGoals == nil) {
			return nil, fmt.Errorf("%w: %w: fixture %d", ErrValidation, standings.ErrPartialScore, r.GameID)
		}
		if r.HomeGoals != nil && (*r.HomeGoals < 0 || *r.AwayGoals < 0) {
			return nil, fmt.Errorf("%w: %w: fixture %d", ErrValidation, standings.ErrNegativeScore, r.GameID)
		}
	}

	if err := s.store.UpdateResults(ctx, results); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}
	logger.Info("Results stored", "count", len(results))

	if s.publisher != nil {
		ids := make([]interface{}, len(results))
		for i, r := range results {
			ids[i] = r.GameID
		}
		s.publisher.Publish(pubsub.Event{
			Type:    EventResultsSubmitted,
			Payload: map[string]interface{}{"origin": s.instance, "games": ids},
		})
	}

	return s.recomputeLocked(ctx)
}

// ReplaceSlotMapping validates a complete slot table, stores it in place of
// the current one and recomputes
func (s *Service) ReplaceSlotMapping(ctx context.Context, mapping map[string]string) (*models.CycleReport, error) {
	resolver, err := bracket.NewResolver(s.tournament, mapping)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ReplaceSlotMapping(ctx, resolver.Mapping()); err != nil {
		return nil, fmt.Errorf("failed to store slot mapping: %w", err)
	}
	logger.Info("Slot mapping replaced", "resolved", resolver.Resolved(), "slots", len(s.tournament.Slots()))

	if s.publisher != nil {
		s.publisher.Publish(pubsub.Event{
			Type:    EventSlotsReplaced,
			Payload: map[string]interface{}{"origin": s.instance, "resolved": resolver.Resolved()},
		})
	}

	return s.recomputeLocked(ctx)
}

// Standings returns the table of one stage code
func (s *Service) Standings(ctx context.Context, code string) (models.Standings, error) {
	code = config.NormalizeCode(code)
	if _, ok := s.tournament.StageOf(code); !ok {
		return models.Standings{}, fmt.Errorf("%w: stage code %q", ErrNotFound, code)
	}

	eval, err := s.evaluate(ctx)
	if err != nil {
		return models.Standings{}, err
	}
	for _, table := range eval.tables {
		if table.Code == code {
			return table, nil
		}
	}
	return models.Standings{}, fmt.Errorf("%w: stage code %q", ErrNotFound, code)
}

// AllStandings returns every table in tournament order
func (s *Service) AllStandings(ctx context.Context) ([]models.Standings, error) {
	eval, err := s.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return eval.tables, nil
}

// Leaderboard ranks participants by their stored total. top <= 0 returns all.
func (s *Service) Leaderboard(ctx context.Context, top int) ([]models.LeaderboardEntry, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	board := rankLeaderboard(snap.Participants)
	if top > 0 && top < len(board) {
		board = board[:top]
	}
	return board, nil
}

// ParticipantBreakdown returns a participant with the score of every entry
func (s *Service) ParticipantBreakdown(ctx context.Context, id int) (*models.ParticipantBreakdown, error) {
	eval, err := s.evaluate(ctx)
	if err != nil {
		return nil, err
	}

	i := slices.IndexFunc(eval.snapshot.Participants, func(p models.Participant) bool { return p.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("%w: participant %d", ErrNotFound, id)
	}

	_, entries := eval.scorer(s.tournament).participant(groupDraft(eval.snapshot.Draft)[id])
	return &models.ParticipantBreakdown{
		Participant: eval.snapshot.Participants[i],
		Entries:     entries,
	}, nil
}

// TeamTotals returns every configured team with its total game points
func (s *Service) TeamTotals(ctx context.Context) ([]models.TeamTotal, error) {
	eval, err := s.evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return TeamTotals(s.tournament, eval.totals), nil
}

// SlotMapping returns the stored slot table with every slot present
func (s *Service) SlotMapping(ctx context.Context) (map[string]string, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	resolver, err := bracket.NewResolver(s.tournament, snap.SlotMapping)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return resolver.Mapping(), nil
}

// Games returns every fixture in id order
func (s *Service) Games(ctx context.Context) ([]models.Game, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return snap.Games, nil
}
