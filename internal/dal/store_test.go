package dal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

func init() {
	logger.Init()
}

// storeFactories lists every implementation that runs without a server
func storeFactories() map[string]func(*testing.T) Store {
	return map[string]func(*testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryDAL() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteDAL(filepath.Join(t.TempDir(), "pool.sqlite"))
			if err != nil {
				t.Fatalf("NewSQLiteDAL() failed: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func seedStore(t *testing.T, s Store) *models.Participant {
	t.Helper()
	ctx := context.Background()

	if err := s.AddTeams(ctx, []string{"Nederland", "Spanje", "WQF1", "Nederland"}); err != nil {
		t.Fatalf("AddTeams() failed: %v", err)
	}
	games := []models.Game{
		{ID: 1, Stage: models.StageGroup, Code: "A", Date: time.Date(2022, 11, 21, 17, 0, 0, 0, time.UTC), Stadium: "Al Thumama",
			Home: models.Leg{Team: "Nederland"}, Away: models.Leg{Team: "Spanje"}},
		{ID: 2, Stage: models.StageSemiFinal, Code: "SF1",
			Home: models.Leg{Team: "WQF1", Goals: models.Goals(1)}, Away: models.Leg{Team: "Spanje", Goals: models.Goals(0)}},
	}
	if err := s.AddGames(ctx, games); err != nil {
		t.Fatalf("AddGames() failed: %v", err)
	}

	p, err := s.AddParticipant(ctx, models.Participant{Name: "Anna", TeamName: "Oranje Boven"}, []models.DraftEntry{
		{Reference: "Spanje", Value: 43},
		{Reference: "Nederland", Value: 50},
		{Reference: "WQF1", Value: 38},
	})
	if err != nil {
		t.Fatalf("AddParticipant() failed: %v", err)
	}
	return p
}

func TestStoreSnapshot(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			p := seedStore(t, s)

			snap, err := s.Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot() failed: %v", err)
			}

			var teams []string
			for _, team := range snap.Teams {
				teams = append(teams, team.Name)
			}
			if diff := cmp.Diff([]string{"Nederland", "Spanje", "WQF1"}, teams); diff != "" {
				t.Errorf("teams mismatch (-want +got):\n%s", diff)
			}

			if len(snap.Games) != 2 {
				t.Fatalf("expected 2 games, got %d", len(snap.Games))
			}
			if snap.Games[0].Played() {
				t.Error("fixture 1 should be unplayed")
			}
			if !snap.Games[0].Date.Equal(time.Date(2022, 11, 21, 17, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected kickoff %v", snap.Games[0].Date)
			}
			if !snap.Games[1].Played() || *snap.Games[1].Home.Goals != 1 {
				t.Errorf("fixture 2 should be 1-0, got %+v", snap.Games[1])
			}

			want := []models.DraftEntry{
				{ParticipantID: p.ID, Reference: "Nederland", Value: 50},
				{ParticipantID: p.ID, Reference: "Spanje", Value: 43},
				{ParticipantID: p.ID, Reference: "WQF1", Value: 38},
			}
			if diff := cmp.Diff(want, snap.Draft); diff != "" {
				t.Errorf("draft mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreCommit(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			p := seedStore(t, s)

			commit := models.Commit{
				Teams:        []models.TeamUpdate{{Name: "Spanje", FinalIdentity: "Spanje", TotalGamePoints: 7}},
				Participants: []models.ScoreChange{{ParticipantID: p.ID, OldScore: 0, NewScore: 301, Delta: 301}},
			}
			if err := s.Commit(ctx, commit); err != nil {
				t.Fatalf("Commit() failed: %v", err)
			}

			snap, _ := s.Snapshot(ctx)
			if snap.Participants[0].TotalScore != 301 {
				t.Errorf("expected score 301, got %d", snap.Participants[0].TotalScore)
			}
			for _, team := range snap.Teams {
				if team.Name == "Spanje" && (team.TotalGamePoints != 7 || team.FinalIdentity != "Spanje") {
					t.Errorf("team not updated: %+v", team)
				}
			}

			// Stale old score is a conflict and writes nothing
			stale := models.Commit{
				Teams:        []models.TeamUpdate{{Name: "Nederland", FinalIdentity: "Nederland", TotalGamePoints: 99}},
				Participants: []models.ScoreChange{{ParticipantID: p.ID, OldScore: 0, NewScore: 5}},
			}
			if err := s.Commit(ctx, stale); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
			snap, _ = s.Snapshot(ctx)
			for _, team := range snap.Teams {
				if team.Name == "Nederland" && team.TotalGamePoints != 0 {
					t.Errorf("failed commit left a partial write: %+v", team)
				}
			}

			missing := models.Commit{Participants: []models.ScoreChange{{ParticipantID: 999, NewScore: 1}}}
			if err := s.Commit(ctx, missing); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreUpdateResults(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedStore(t, s)

			err := s.UpdateResults(ctx, []models.Result{
				{GameID: 1, HomeGoals: models.Goals(2), AwayGoals: models.Goals(2)},
				{GameID: 2},
			})
			if err != nil {
				t.Fatalf("UpdateResults() failed: %v", err)
			}

			snap, _ := s.Snapshot(ctx)
			if !snap.Games[0].Played() || *snap.Games[0].Away.Goals != 2 {
				t.Errorf("fixture 1 not updated: %+v", snap.Games[0])
			}
			if snap.Games[1].Played() {
				t.Errorf("fixture 2 should be cleared: %+v", snap.Games[1])
			}

			if err := s.UpdateResults(ctx, []models.Result{{GameID: 1, HomeGoals: models.Goals(1)}}); !errors.Is(err, ErrPartialScore) {
				t.Errorf("expected ErrPartialScore, got %v", err)
			}
			if err := s.UpdateResults(ctx, []models.Result{{GameID: 42}}); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreSlotMappingAndParticipants(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			p := seedStore(t, s)

			if err := s.ReplaceSlotMapping(ctx, map[string]string{"WQF1": "Nederland", "WQF2": ""}); err != nil {
				t.Fatalf("ReplaceSlotMapping() failed: %v", err)
			}
			if err := s.ReplaceSlotMapping(ctx, map[string]string{"WQF1": "Spanje"}); err != nil {
				t.Fatalf("ReplaceSlotMapping() failed: %v", err)
			}
			snap, _ := s.Snapshot(ctx)
			if diff := cmp.Diff(map[string]string{"WQF1": "Spanje"}, snap.SlotMapping); diff != "" {
				t.Errorf("mapping mismatch (-want +got):\n%s", diff)
			}

			// Same name replaces the draft and keeps the id
			again, err := s.AddParticipant(ctx, models.Participant{Name: "Anna"}, []models.DraftEntry{{Reference: "Spanje", Value: 50}})
			if err != nil {
				t.Fatalf("AddParticipant() failed: %v", err)
			}
			if again.ID != p.ID {
				t.Errorf("expected id %d, got %d", p.ID, again.ID)
			}
			snap, _ = s.Snapshot(ctx)
			if len(snap.Draft) != 1 || len(snap.Participants) != 1 {
				t.Errorf("expected a single replaced draft, got %+v", snap.Draft)
			}

			_, err = s.AddParticipant(ctx, models.Participant{Name: "Bram"}, []models.DraftEntry{
				{Reference: "Spanje", Value: 50},
				{Reference: "Nederland", Value: 50},
			})
			if !errors.Is(err, ErrDuplicateEntry) {
				t.Errorf("expected ErrDuplicateEntry, got %v", err)
			}

			if err := s.Reset(ctx); err != nil {
				t.Fatalf("Reset() failed: %v", err)
			}
			snap, _ = s.Snapshot(ctx)
			if len(snap.Teams)+len(snap.Games)+len(snap.Participants)+len(snap.SlotMapping) != 0 {
				t.Errorf("expected empty store after reset, got %+v", snap)
			}
			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping() failed: %v", err)
			}
		})
	}
}

func TestAddGamesRejectsUnknownTeamAndPartialScore(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedStore(t, s)

			partial := []models.Game{{ID: 3, Stage: models.StageGroup, Code: "A",
				Home: models.Leg{Team: "Nederland", Goals: models.Goals(1)}, Away: models.Leg{Team: "Spanje"}}}
			if err := s.AddGames(ctx, partial); !errors.Is(err, ErrPartialScore) {
				t.Errorf("expected ErrPartialScore, got %v", err)
			}

			unknown := []models.Game{{ID: 4, Stage: models.StageGroup, Code: "A",
				Home: models.Leg{Team: "Nederland"}, Away: models.Leg{Team: "Atlantis"}}}
			if err := s.AddGames(ctx, unknown); err == nil {
				t.Error("expected fixture with unknown team to fail")
			}
		})
	}
}

func TestRebind(t *testing.T) {
	s := newPostgresStore(nil)
	got := s.rebind(`UPDATE games SET home_goals = ?, away_goals = ? WHERE id = ?`)
	want := `UPDATE games SET home_goals = $1, away_goals = $2 WHERE id = $3`
	if got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}

	lite := &sqlStore{}
	if q := lite.rebind("SELECT ?"); q != "SELECT ?" {
		t.Errorf("sqlite query rewritten: %q", q)
	}
}
