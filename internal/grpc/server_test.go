package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

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

const testTournament = `
name: test cup
stages:
  - kind: group
    codes: [A]
  - kind: final
    codes: [FINAL]
teams: [Alpha, Bravo]
draft_values: [50, 43]
tournament_points: {win: 3, draw: 1, loss: 0}
game_points: {win: 3, draw: 2, loss: 1}
slots: [W1, W2]
`

func dial(t *testing.T) (*Client, *pubsub.PubSub, int) {
	t.Helper()
	ctx := context.Background()

	tour, err := config.ParseTournament([]byte(testTournament))
	if err != nil {
		t.Fatalf("ParseTournament() failed: %v", err)
	}
	store := dal.NewMemoryDAL()
	if err := store.AddTeams(ctx, []string{"Alpha", "Bravo", "W1", "W2"}); err != nil {
		t.Fatalf("AddTeams() failed: %v", err)
	}
	err = store.AddGames(ctx, []models.Game{
		{ID: 1, Stage: models.StageGroup, Code: "A",
			Home: models.Leg{Team: "Alpha", Goals: models.Goals(1)}, Away: models.Leg{Team: "Bravo", Goals: models.Goals(1)}},
		{ID: 2, Stage: models.StageFinal, Code: "FINAL",
			Home: models.Leg{Team: "W1"}, Away: models.Leg{Team: "W2"}},
	})
	if err != nil {
		t.Fatalf("AddGames() failed: %v", err)
	}
	p, err := store.AddParticipant(ctx, models.Participant{Name: "Bram"}, []models.DraftEntry{{Reference: "Bravo", Value: 50}})
	if err != nil {
		t.Fatalf("AddParticipant() failed: %v", err)
	}

	bus := pubsub.New()
	svc := engine.NewService(store, tour, engine.WithPublisher(bus))

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc, bus)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return NewClient(conn), bus, p.ID
}

func TestGetStandings(t *testing.T) {
	client, _, _ := dial(t)
	ctx := context.Background()

	resp, err := client.GetStandings(ctx, "a")
	if err != nil {
		t.Fatalf("GetStandings() failed: %v", err)
	}
	var table models.Standings
	if err := FromStruct(resp, &table); err != nil {
		t.Fatalf("FromStruct() failed: %v", err)
	}
	// 1-1 draw: 1 point and 2*(1+1) game points each, ordered by name
	if len(table.Rows) != 2 || table.Rows[0].Team != "Alpha" || table.Rows[0].Points != 1 || table.Rows[0].GamePoints != 4 {
		t.Errorf("unexpected table %+v", table)
	}

	all, err := client.GetStandings(ctx, "")
	if err != nil {
		t.Fatalf("GetStandings(all) failed: %v", err)
	}
	if n := len(all.GetFields()["tables"].GetListValue().GetValues()); n != 2 {
		t.Errorf("expected 2 tables, got %d", n)
	}

	_, err = client.GetStandings(ctx, "QF1")
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestRecomputeThenLeaderboardAndParticipant(t *testing.T) {
	client, _, id := dial(t)
	ctx := context.Background()

	report, err := client.Recompute(ctx)
	if err != nil {
		t.Fatalf("Recompute() failed: %v", err)
	}
	var cycle models.CycleReport
	if err := FromStruct(report, &cycle); err != nil {
		t.Fatalf("FromStruct() failed: %v", err)
	}
	if len(cycle.Scores) != 1 || cycle.Scores[0].NewScore != 200 {
		t.Errorf("unexpected cycle %+v", cycle)
	}

	board, err := client.GetLeaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("GetLeaderboard() failed: %v", err)
	}
	var out struct {
		Entries []models.LeaderboardEntry `json:"entries"`
	}
	if err := FromStruct(board, &out); err != nil {
		t.Fatalf("FromStruct() failed: %v", err)
	}
	if len(out.Entries) != 1 || out.Entries[0].TotalScore != 200 {
		t.Errorf("unexpected leaderboard %+v", out.Entries)
	}

	if _, err := client.GetParticipant(ctx, id); err != nil {
		t.Errorf("GetParticipant() failed: %v", err)
	}
	if _, err := client.GetParticipant(ctx, 404); status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, err := client.GetParticipant(ctx, 0); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}

	bad, _ := structpb.NewStruct(map[string]interface{}{"top": "ten"})
	if _, err := client.invoke(ctx, "GetLeaderboard", bad); status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument for a string top, got %v", err)
	}
}

func TestStreamEvents(t *testing.T) {
	client, bus, _ := dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.StreamEvents(ctx)
	if err != nil {
		t.Fatalf("StreamEvents() failed: %v", err)
	}

	// The server subscribes once the stream is open; publish until it lands
	go func() {
		for ctx.Err() == nil {
			bus.Publish(pubsub.Event{Type: engine.EventScoresUpdated, Payload: map[string]interface{}{"changed": 1}})
			time.Sleep(20 * time.Millisecond)
		}
	}()

	msg, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv() failed: %v", err)
	}
	if got := msg.GetFields()["type"].GetStringValue(); got != engine.EventScoresUpdated {
		t.Errorf("expected %s, got %q", engine.EventScoresUpdated, got)
	}
}
