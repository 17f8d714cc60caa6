package fuzz

import (
	"context"
	"testing"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/dal"
	"github.com/Billy-Davies-2/knockout-pool/internal/engine"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

func init() {
	logger.Init()
}

const fuzzTournament = `
name: fuzz cup
stages:
  - kind: group
    codes: [A]
  - kind: final
    codes: [FINAL]
teams: [Alpha, Bravo, Charlie]
draft_values: [30, 20, 10]
tournament_points: {win: 3, draw: 1, loss: 0}
game_points: {win: 3, draw: 2, loss: 1}
slots: [W1, W2]
`

func tournament(t testing.TB) *config.Tournament {
	t.Helper()
	tour, err := config.ParseTournament([]byte(fuzzTournament))
	if err != nil {
		t.Fatalf("ParseTournament() failed: %v", err)
	}
	return tour
}

// newService seeds a small pool every fuzz iteration can mutate freely
func newService(t testing.TB) (*engine.Service, *pubsub.PubSub) {
	t.Helper()
	ctx := context.Background()

	store := dal.NewMemoryDAL()
	if err := store.AddTeams(ctx, []string{"Alpha", "Bravo", "Charlie", "W1", "W2"}); err != nil {
		t.Fatalf("AddTeams() failed: %v", err)
	}
	err := store.AddGames(ctx, []models.Game{
		{ID: 1, Stage: models.StageGroup, Code: "A", Home: models.Leg{Team: "Alpha"}, Away: models.Leg{Team: "Bravo"}},
		{ID: 2, Stage: models.StageGroup, Code: "A", Home: models.Leg{Team: "Bravo"}, Away: models.Leg{Team: "Charlie"}},
		{ID: 3, Stage: models.StageFinal, Code: "FINAL", Home: models.Leg{Team: "W1"}, Away: models.Leg{Team: "W2"}},
	})
	if err != nil {
		t.Fatalf("AddGames() failed: %v", err)
	}
	_, err = store.AddParticipant(ctx, models.Participant{Name: "Fuzzer"}, []models.DraftEntry{
		{Reference: "Alpha", Value: 30},
		{Reference: "W1", Value: 20},
	})
	if err != nil {
		t.Fatalf("AddParticipant() failed: %v", err)
	}

	bus := pubsub.New()
	return engine.NewService(store, tournament(t), engine.WithPublisher(bus)), bus
}
