package fuzz

import (
	"testing"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/scoring"
	"github.com/Billy-Davies-2/knockout-pool/internal/standings"
)

// FuzzClassify checks that both sides of a played match see opposite outcomes
func FuzzClassify(f *testing.F) {
	f.Add(2, 1)
	f.Add(0, 0)
	f.Add(0, 7)

	rules := scoring.DefaultRules()
	f.Fuzz(func(t *testing.T, a, b int) {
		if a < 0 || b < 0 || a > 1000 || b > 1000 {
			return
		}
		home := scoring.Classify(&a, &b)
		away := scoring.Classify(&b, &a)
		if home.Opposite() != away {
			t.Fatalf("%d-%d: home %s, away %s", a, b, home, away)
		}
		if _, gp := rules.Score(&a, &b); gp <= 0 {
			t.Fatalf("%d-%d: played match scored %d game points", a, b, gp)
		}
	})
}

// FuzzStandingsTable feeds arbitrary scores into a group and checks the table bookkeeping
func FuzzStandingsTable(f *testing.F) {
	f.Add(1, 0, 2, 2, 0, 3)
	f.Add(0, 0, 0, 0, 0, 0)
	f.Add(5, 1, 1, 5, 3, 3)

	f.Fuzz(func(t *testing.T, a1, b1, a2, b2, a3, b3 int) {
		scores := []int{a1, b1, a2, b2, a3, b3}
		for _, s := range scores {
			if s < 0 || s > 50 {
				return
			}
		}

		tour := tournament(t)
		calc := standings.NewCalculator(tour, scoring.NewRules(tour))
		games := []models.Game{
			{ID: 1, Code: "A", Home: models.Leg{Team: "Alpha", Goals: &scores[0]}, Away: models.Leg{Team: "Bravo", Goals: &scores[1]}},
			{ID: 2, Code: "A", Home: models.Leg{Team: "Bravo", Goals: &scores[2]}, Away: models.Leg{Team: "Charlie", Goals: &scores[3]}},
			{ID: 3, Code: "A", Home: models.Leg{Team: "Charlie", Goals: &scores[4]}, Away: models.Leg{Team: "Alpha", Goals: &scores[5]}},
		}

		table, err := calc.Table("A", games)
		if err != nil {
			t.Fatalf("Table() failed: %v", err)
		}

		var played, goalDiff int
		for _, r := range table.Rows {
			if r.Won+r.Drawn+r.Lost != r.Played {
				t.Fatalf("row %+v: results do not add up to played", r)
			}
			if r.GoalsFor-r.GoalsAgainst != r.GoalDifference {
				t.Fatalf("row %+v: goal difference mismatch", r)
			}
			played += r.Played
			goalDiff += r.GoalDifference
		}
		if played != 6 || goalDiff != 0 {
			t.Fatalf("table not balanced: played %d, goal difference %d", played, goalDiff)
		}
		for i := 1; i < len(table.Rows); i++ {
			if table.Rows[i-1].Points < table.Rows[i].Points {
				t.Fatalf("rows not sorted by points: %+v", table.Rows)
			}
		}
	})
}

// FuzzParseTournament must never panic on arbitrary YAML
func FuzzParseTournament(f *testing.F) {
	f.Add(fuzzTournament)
	f.Add("name: x\nstages: []\n")
	f.Add("teams: [a, a]")

	f.Fuzz(func(t *testing.T, data string) {
		tour, err := config.ParseTournament([]byte(data))
		if err == nil && len(tour.Teams()) != len(tour.DraftValues()) {
			t.Fatalf("accepted tournament with %d teams and %d draft values", len(tour.Teams()), len(tour.DraftValues()))
		}
	})
}

// FuzzCleanTeamName checks that cleaning is idempotent
func FuzzCleanTeamName(f *testing.F) {
	f.Add("Nederland")
	f.Add("  Bosnië-Herzegovina (ABC)  ")
	f.Add("Korea\tRep.")

	f.Fuzz(func(t *testing.T, name string) {
		once := models.CleanTeamName(name)
		if twice := models.CleanTeamName(once); twice != once {
			t.Fatalf("CleanTeamName not idempotent: %q -> %q -> %q", name, once, twice)
		}
	})
}
