package dal

import (
	"context"
	"errors"
	"fmt"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

var (
	// ErrNotFound is returned when a fixture, team or participant does not exist
	ErrNotFound = errors.New("record not found")
	// ErrPartialScore is returned for a result with exactly one goal count
	ErrPartialScore = errors.New("result must carry both goal counts or neither")
	// ErrConflict is returned when a commit finds a value changed since its snapshot
	ErrConflict = errors.New("stored value changed since snapshot")
	// ErrDuplicateEntry is returned for a draft reusing a value or a team
	ErrDuplicateEntry = errors.New("duplicate draft entry")
)

// Store is the storage collaborator of the scoring engine. Teams, fixtures,
// participants and draft entries are written by ingestion; the engine only
// writes derived totals, results and the slot mapping.
type Store interface {
	// Snapshot reads everything a recomputation needs in one read transaction
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	// Commit writes the changed team rows and participant totals atomically
	Commit(ctx context.Context, c models.Commit) error
	// UpdateResults writes goal pairs for existing fixtures
	UpdateResults(ctx context.Context, results []models.Result) error
	// ReplaceSlotMapping swaps the whole slot table
	ReplaceSlotMapping(ctx context.Context, mapping map[string]string) error

	// AddTeams inserts teams and slot placeholders, skipping existing names
	AddTeams(ctx context.Context, names []string) error
	// AddGames inserts fixtures or replaces those with the same id
	AddGames(ctx context.Context, games []models.Game) error
	// AddParticipant creates or replaces a participant by name with their draft
	AddParticipant(ctx context.Context, p models.Participant, draft []models.DraftEntry) (*models.Participant, error)

	Ping(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}

func checkResults(results []models.Result) error {
	for _, r := range results {
		if (r.HomeGoals == nil) != (r.AwayGoals == nil) {
			return ErrPartialScore
		}
	}
	return nil
}

func cloneGoals(g *int) *int {
	if g == nil {
		return nil
	}
	v := *g
	return &v
}

func cleanDraft(participantID int, draft []models.DraftEntry) ([]models.DraftEntry, error) {
	out := make([]models.DraftEntry, len(draft))
	refs := make(map[string]struct{}, len(draft))
	values := make(map[int]struct{}, len(draft))
	for i, e := range draft {
		ref := models.CleanTeamName(e.Reference)
		if _, dup := refs[ref]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, ref)
		}
		if _, dup := values[e.Value]; dup {
			return nil, fmt.Errorf("%w: value %d", ErrDuplicateEntry, e.Value)
		}
		refs[ref] = struct{}{}
		values[e.Value] = struct{}{}
		out[i] = models.DraftEntry{
			ParticipantID: participantID,
			Reference:     ref,
			Value:         e.Value,
		}
	}
	return out, nil
}
