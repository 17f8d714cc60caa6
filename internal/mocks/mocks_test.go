package mocks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/pubsub"
)

func init() {
	logger.Init()
}

func TestMockClickHouseHistory(t *testing.T) {
	ctx := context.Background()
	ch := NewMockClickHouseClient()
	at := time.Date(2022, 12, 18, 20, 0, 0, 0, time.UTC)

	report := models.CycleReport{ID: "c1", At: at, Scores: []models.ScoreChange{
		{ParticipantID: 1, OldScore: 0, NewScore: 120, Delta: 120},
		{ParticipantID: 2, OldScore: 10, NewScore: 5, Delta: -5},
	}}
	if err := ch.RecordCycle(ctx, report); err != nil {
		t.Fatalf("RecordCycle() failed: %v", err)
	}

	got, _ := ch.ScoreHistory(ctx, 2)
	want := []models.ScorePoint{{CycleID: "c1", At: at, OldScore: 10, NewScore: 5, Delta: -5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	if got, _ := ch.ScoreHistory(ctx, 99); len(got) != 0 {
		t.Errorf("expected empty history, got %+v", got)
	}

	boom := errors.New("clickhouse down")
	ch.FailWith(boom)
	if err := ch.RecordCycle(ctx, report); !errors.Is(err, boom) {
		t.Errorf("expected injected failure, got %v", err)
	}
	if len(ch.Cycles()) != 1 {
		t.Errorf("failed record should not be kept, got %d cycles", len(ch.Cycles()))
	}
}

func TestMockNATSRecordsAndDelivers(t *testing.T) {
	bus := NewMockNATSPubSub()
	ch := bus.Subscribe()

	bus.Publish(pubsub.Event{Type: "results:submitted"})
	bus.Publish(pubsub.Event{Type: "scores:updated"})

	if got := len(bus.Published()); got != 2 {
		t.Errorf("expected 2 events, got %d", got)
	}
	if got := bus.Published("scores:updated"); len(got) != 1 || got[0].Type != "scores:updated" {
		t.Errorf("type filter failed: %+v", got)
	}
	if len(ch) != 2 {
		t.Errorf("expected 2 delivered events, got %d", len(ch))
	}
}

func TestMockPostgresDAL(t *testing.T) {
	store, err := NewMockPostgresDAL(filepath.Join(t.TempDir(), "mock.sqlite"))
	if err != nil {
		t.Fatalf("NewMockPostgresDAL() failed: %v", err)
	}
	defer store.Close()

	if err := store.AddTeams(context.Background(), []string{"Nederland"}); err != nil {
		t.Fatalf("AddTeams() failed: %v", err)
	}
	snap, err := store.Snapshot(context.Background())
	if err != nil || len(snap.Teams) != 1 {
		t.Errorf("unexpected snapshot %+v, err %v", snap, err)
	}
}
