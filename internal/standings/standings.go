// Package standings builds the sorted table of one group or knockout code.
package standings

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/scoring"
)

var (
	// ErrUnknownCode is returned for a fixture whose code is not a stage code
	ErrUnknownCode = errors.New("unknown stage code")
	// ErrPartialScore is returned for a fixture with only one goal count
	ErrPartialScore = errors.New("fixture has a partial score")
	// ErrNegativeScore is returned for a fixture with a negative goal count
	ErrNegativeScore = errors.New("fixture has a negative score")
	// ErrUnknownTeam is returned for a fixture leg naming no known team
	ErrUnknownTeam = errors.New("fixture references unknown team")
)

// Calculator computes standings tables for a tournament
type Calculator struct {
	tournament *config.Tournament
	rules      scoring.Rules
}

// NewCalculator creates a calculator
func NewCalculator(t *config.Tournament, rules scoring.Rules) *Calculator {
	return &Calculator{tournament: t, rules: rules}
}

// Validate checks every fixture before any table is built. Each leg must be
// a configured team or slot; teams additionally lists the stored team
// records, and a nil slice skips that check.
func (c *Calculator) Validate(games []models.Game, teams []models.Team) error {
	var known map[string]struct{}
	if teams != nil {
		known = make(map[string]struct{}, len(teams))
		for _, t := range teams {
			known[t.Name] = struct{}{}
		}
	}

	for _, g := range games {
		if _, ok := c.tournament.StageOf(g.Code); !ok {
			return fmt.Errorf("%w %q in fixture %d", ErrUnknownCode, g.Code, g.ID)
		}
		if err := checkScore(g); err != nil {
			return err
		}
		for _, leg := range []models.Leg{g.Home, g.Away} {
			if leg.Team == "" {
				return fmt.Errorf("%w: fixture %d has an empty leg", ErrUnknownTeam, g.ID)
			}
			if !c.tournament.IsTeam(leg.Team) && !c.tournament.IsSlot(leg.Team) {
				return fmt.Errorf("%w %q in fixture %d is not part of %s", ErrUnknownTeam, leg.Team, g.ID, c.tournament.Name())
			}
			if known == nil {
				continue
			}
			if _, ok := known[leg.Team]; !ok {
				return fmt.Errorf("%w %q in fixture %d", ErrUnknownTeam, leg.Team, g.ID)
			}
		}
	}
	return nil
}

// Table builds the standings for one code from the fixtures tagged with it.
// Fixtures with other codes are ignored.
func (c *Calculator) Table(code string, games []models.Game) (models.Standings, error) {
	code = config.NormalizeCode(code)
	kind, ok := c.tournament.StageOf(code)
	if !ok {
		return models.Standings{}, fmt.Errorf("%w %q", ErrUnknownCode, code)
	}

	var fixtures []models.Game
	for _, g := range games {
		if config.NormalizeCode(g.Code) == code {
			fixtures = append(fixtures, g)
		}
	}
	slices.SortStableFunc(fixtures, func(a, b models.Game) int {
		return cmp.Compare(a.ID, b.ID)
	})

	var rows []models.StandingRow
	index := make(map[string]int)
	row := func(team string) *models.StandingRow {
		i, ok := index[team]
		if !ok {
			i = len(rows)
			index[team] = i
			rows = append(rows, models.StandingRow{Team: team})
		}
		return &rows[i]
	}

	for _, g := range fixtures {
		if err := checkScore(g); err != nil {
			return models.Standings{}, err
		}
		home := row(g.Home.Team)
		c.apply(home, g.Home.Goals, g.Away.Goals)
		away := row(g.Away.Team)
		c.apply(away, g.Away.Goals, g.Home.Goals)
	}

	sortRows(rows)

	return models.Standings{Code: code, Stage: kind, Rows: rows}, nil
}

func (c *Calculator) apply(r *models.StandingRow, goalsFor, goalsAgainst *int) {
	outcome, gamePoints := c.rules.Score(goalsFor, goalsAgainst)
	if outcome == scoring.Unplayed {
		return
	}

	r.Played++
	r.Points += c.rules.TournamentPoints(outcome)
	switch outcome {
	case scoring.Win:
		r.Won++
	case scoring.Draw:
		r.Drawn++
	case scoring.Loss:
		r.Lost++
	}
	r.GoalsFor += *goalsFor
	r.GoalsAgainst += *goalsAgainst
	r.GoalDifference = r.GoalsFor - r.GoalsAgainst
	r.GamePoints += gamePoints
}

// sortRows orders by name while nothing is played, otherwise by points,
// goal difference, fewest played and game points. Head-to-head is not used.
func sortRows(rows []models.StandingRow) {
	anyPlayed := slices.ContainsFunc(rows, func(r models.StandingRow) bool { return r.Played > 0 })
	if !anyPlayed {
		slices.SortStableFunc(rows, func(a, b models.StandingRow) int {
			return cmp.Compare(a.Team, b.Team)
		})
		return
	}

	slices.SortStableFunc(rows, func(a, b models.StandingRow) int {
		return cmp.Or(
			cmp.Compare(b.Points, a.Points),
			cmp.Compare(b.GoalDifference, a.GoalDifference),
			cmp.Compare(a.Played, b.Played),
			cmp.Compare(b.GamePoints, a.GamePoints),
		)
	})
}

func checkScore(g models.Game) error {
	if g.Partial() {
		return fmt.Errorf("%w: fixture %d", ErrPartialScore, g.ID)
	}
	if g.Played() && (*g.Home.Goals < 0 || *g.Away.Goals < 0) {
		return fmt.Errorf("%w: fixture %d", ErrNegativeScore, g.ID)
	}
	return nil
}
