package ingest

import (
	"context"
	"fmt"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// Store is the part of storage ingestion writes to
type Store interface {
	AddTeams(ctx context.Context, names []string) error
	AddGames(ctx context.Context, games []models.Game) error
	AddParticipant(ctx context.Context, p models.Participant, draft []models.DraftEntry) (*models.Participant, error)
	ReplaceSlotMapping(ctx context.Context, mapping map[string]string) error
}

// Loader writes workbook contents to storage
type Loader struct {
	store      Store
	tournament *config.Tournament
}

// NewLoader creates a loader for one tournament
func NewLoader(store Store, t *config.Tournament) *Loader {
	return &Loader{store: store, tournament: t}
}

// Init stores every team and slot placeholder of the tournament and its
// configured slot mapping
func (l *Loader) Init(ctx context.Context) error {
	names := append(l.tournament.Teams(), l.tournament.Slots()...)
	if err := l.store.AddTeams(ctx, names); err != nil {
		return fmt.Errorf("failed to add teams: %w", err)
	}
	if err := l.store.ReplaceSlotMapping(ctx, l.tournament.InitialSlotMapping()); err != nil {
		return fmt.Errorf("failed to store slot mapping: %w", err)
	}
	logger.Info("Tournament initialized", "edition", l.tournament.Name(), "teams", len(l.tournament.Teams()), "slots", len(l.tournament.Slots()))
	return nil
}

// LoadSchedule stores the fixtures of a schedule workbook together with the
// teams they refer to
func (l *Loader) LoadSchedule(ctx context.Context, path string) ([]models.Game, error) {
	games, err := ReadSchedule(path, l.tournament.Schedule(), l.tournament)
	if err != nil {
		return nil, err
	}
	if err := l.store.AddTeams(ctx, Teams(games)); err != nil {
		return nil, fmt.Errorf("failed to add teams: %w", err)
	}
	if err := l.store.AddGames(ctx, games); err != nil {
		return nil, fmt.Errorf("failed to add games: %w", err)
	}

	played := 0
	for _, g := range games {
		if g.Played() {
			played++
		}
	}
	logger.Info("Schedule loaded", "path", path, "games", len(games), "played", played)
	return games, nil
}

// LoadForms stores a participant with their draft for every form in dir
func (l *Loader) LoadForms(ctx context.Context, dir string) ([]models.Participant, error) {
	forms, err := ReadDraftForms(dir, l.tournament)
	if err != nil {
		return nil, err
	}

	out := make([]models.Participant, 0, len(forms))
	for _, form := range forms {
		p, err := l.store.AddParticipant(ctx, form.Participant, form.Entries)
		if err != nil {
			return nil, fmt.Errorf("failed to add participant %q: %w", form.Participant.Name, err)
		}
		logger.Debug("Draft form loaded", "participant", p.Name, "id", p.ID, "file", form.File)
		out = append(out, *p)
	}
	logger.Info("Draft forms loaded", "dir", dir, "participants", len(out))
	return out, nil
}
