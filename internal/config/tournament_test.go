package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

func TestBuiltInEditions(t *testing.T) {
	tests := []struct {
		edition string
		teams   int
		groups  int
		codes   int
		slots   int
		top     int
	}{
		{edition: "ek2021", teams: 24, groups: 6, codes: 21, slots: 30, top: 50},
		{edition: "wk2022", teams: 32, groups: 8, codes: 24, slots: 32, top: 100},
	}

	for _, tt := range tests {
		t.Run(tt.edition, func(t *testing.T) {
			tour, err := LoadTournament(tt.edition)
			if err != nil {
				t.Fatalf("LoadTournament(%q) failed: %v", tt.edition, err)
			}
			if got := len(tour.Teams()); got != tt.teams {
				t.Errorf("expected %d teams, got %d", tt.teams, got)
			}
			if got := len(tour.GroupCodes()); got != tt.groups {
				t.Errorf("expected %d groups, got %d", tt.groups, got)
			}
			if got := len(tour.StageCodes()); got != tt.codes {
				t.Errorf("expected %d stage codes, got %d", tt.codes, got)
			}
			if got := len(tour.Slots()); got != tt.slots {
				t.Errorf("expected %d slots, got %d", tt.slots, got)
			}
			values := tour.DraftValues()
			if values[0] != tt.top || values[len(values)-1] != 1 {
				t.Errorf("unexpected draft values %v", values)
			}
			if tour.TournamentPoints() != (PointsTable{Win: 3, Draw: 1, Loss: 0}) {
				t.Errorf("unexpected tournament points %+v", tour.TournamentPoints())
			}
			if tour.GamePointMultipliers() != (PointsTable{Win: 3, Draw: 2, Loss: 1}) {
				t.Errorf("unexpected multipliers %+v", tour.GamePointMultipliers())
			}
		})
	}
}

func TestEditionsListed(t *testing.T) {
	if diff := cmp.Diff([]string{"ek2021", "wk2022"}, Editions()); diff != "" {
		t.Errorf("Editions() mismatch (-want +got):\n%s", diff)
	}
}

func TestStageLookupIsCaseInsensitive(t *testing.T) {
	tour, err := LoadTournament("wk2022")
	if err != nil {
		t.Fatalf("LoadTournament failed: %v", err)
	}

	kind, ok := tour.StageOf(" qf2 ")
	if !ok || kind != models.StageQuarterFinal {
		t.Errorf("expected qf2 to be a quarterfinal, got %q (%v)", kind, ok)
	}
	if kind, _ := tour.StageOf("BRONZE"); kind != models.StageFinal {
		t.Errorf("expected BRONZE in final stage, got %q", kind)
	}
	if _, ok := tour.StageOf("Z"); ok {
		t.Error("expected unknown code to be rejected")
	}
	if !tour.IsSlot("wqf1") {
		t.Error("expected wqf1 to be a slot code")
	}
	if tour.IsSlot("Nederland") {
		t.Error("team name reported as slot")
	}
	if !tour.IsTeam("Saudi-Arabië") {
		t.Error("expected Saudi-Arabië to be a team")
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	tour, err := LoadTournament("ek2021")
	if err != nil {
		t.Fatalf("LoadTournament failed: %v", err)
	}

	values := tour.DraftValues()
	values[0] = 9999
	if tour.DraftValues()[0] != 50 {
		t.Error("draft values were mutated through accessor")
	}

	mapping := tour.InitialSlotMapping()
	mapping["2A"] = "Nederland"
	if tour.InitialSlotMapping()["2A"] != "" {
		t.Error("slot mapping was mutated through accessor")
	}

	stages := tour.Stages()
	stages[0].Codes[0] = "X"
	if tour.Stages()[0].Codes[0] != "A" {
		t.Error("stage codes were mutated through accessor")
	}
}

func TestParseTournamentValidation(t *testing.T) {
	base := `
name: test
stages:
  - kind: group
    codes: [A]
  - kind: final
    codes: [FINAL]
teams: [Alpha, Beta]
draft_values: [2, 1]
tournament_points: {win: 3, draw: 1, loss: 0}
game_points: {win: 3, draw: 2, loss: 1}
slots: [WA]
`
	if _, err := ParseTournament([]byte(base)); err != nil {
		t.Fatalf("valid tournament rejected: %v", err)
	}

	tests := []struct {
		name    string
		replace [2]string
		want    string
	}{
		{"duplicate code", [2]string{"codes: [FINAL]", "codes: [A]"}, "duplicate stage code"},
		{"stage order", [2]string{"kind: final", "kind: group"}, "out of order"},
		{"unknown kind", [2]string{"kind: final", "kind: playoff"}, "unknown stage kind"},
		{"value count", [2]string{"draft_values: [2, 1]", "draft_values: [2]"}, "draft values for"},
		{"not descending", [2]string{"draft_values: [2, 1]", "draft_values: [1, 2]"}, "strictly descending"},
		{"duplicate team", [2]string{"teams: [Alpha, Beta]", "teams: [Alpha, Alpha]"}, "duplicate team"},
		{"slot is team", [2]string{"slots: [WA]", "slots: [Alpha]"}, "also a team name"},
		{"slot is team in other case", [2]string{"slots: [WA]", "slots: [beta]"}, "also a team name"},
		{"negative points", [2]string{"loss: 0}", "loss: -1}"}, "negative"},
		{"mapping unknown team", [2]string{"slots: [WA]", "slots: [WA]\nslot_mapping: {WA: Gamma}"}, "unknown team"},
		{"mapping unknown slot", [2]string{"slots: [WA]", "slots: [WA]\nslot_mapping: {WB: Alpha}"}, "unknown slot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(base, tt.replace[0], tt.replace[1], 1)
			_, err := ParseTournament([]byte(doc))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidTournament) {
				t.Errorf("expected ErrInvalidTournament, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadTournamentUnknown(t *testing.T) {
	if _, err := LoadTournament("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown edition")
	}
}

func TestConfigValidate(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	c.DBDriver = "postgres"
	if err := c.Validate(); err != nil {
		t.Errorf("development postgres without DATABASE_URL should use the stand-in: %v", err)
	}
	c.Environment = "production"
	c.Authentik = AuthentikConfig{BaseURL: "https://auth.example.com", ClientID: "id", ClientSecret: "secret"}
	if err := c.Validate(); err == nil {
		t.Error("expected missing DATABASE_URL to fail in production")
	}

	c = Default()
	c.Port = "70000"
	if err := c.Validate(); err == nil {
		t.Error("expected out of range port to fail")
	}

	c = Default()
	c.Environment = "production"
	if err := c.Validate(); err == nil {
		t.Error("expected production without Authentik to fail")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("EDITION", "ek2021")
	t.Setenv("EXPORT_BUCKET", "pool")

	c := FromEnv()
	if c.DBDriver != "sqlite" || c.Edition != "ek2021" || c.Export.Bucket != "pool" {
		t.Errorf("environment not applied: %+v", c)
	}
	if c.Port != "3000" {
		t.Errorf("expected default port, got %q", c.Port)
	}
	if c.ExportEnabled() {
		t.Error("export should need credentials")
	}
}
