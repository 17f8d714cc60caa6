// Package scoring turns a match result into outcomes, standings points and
// game points. Everything here is pure.
package scoring

import "github.com/Billy-Davies-2/knockout-pool/internal/config"

// Outcome is a match result seen from one leg's team
type Outcome int

const (
	Unplayed Outcome = iota
	Win
	Draw
	Loss
)

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	case Loss:
		return "loss"
	default:
		return "unplayed"
	}
}

// Opposite returns the outcome of the other leg
func (o Outcome) Opposite() Outcome {
	switch o {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return o
	}
}

// Classify evaluates a result from the perspective of the team that scored goalsFor.
// Either count missing means Unplayed.
func Classify(goalsFor, goalsAgainst *int) Outcome {
	if goalsFor == nil || goalsAgainst == nil {
		return Unplayed
	}
	switch {
	case *goalsFor == *goalsAgainst:
		return Draw
	case *goalsFor > *goalsAgainst:
		return Win
	default:
		return Loss
	}
}

// Rules holds the points tables of one tournament edition
type Rules struct {
	tournament  config.PointsTable
	multipliers config.PointsTable
}

// DefaultRules uses 3/1/0 tournament points and 3/2/1 multipliers
func DefaultRules() Rules {
	return Rules{
		tournament:  config.PointsTable{Win: 3, Draw: 1, Loss: 0},
		multipliers: config.PointsTable{Win: 3, Draw: 2, Loss: 1},
	}
}

// NewRules builds rules from a tournament's tables
func NewRules(t *config.Tournament) Rules {
	return Rules{
		tournament:  t.TournamentPoints(),
		multipliers: t.GamePointMultipliers(),
	}
}

// GamePoints is multiplier(outcome) * (goalsFor + 1), and 0 when unplayed
func (r Rules) GamePoints(o Outcome, goalsFor int) int {
	if o == Unplayed {
		return 0
	}
	if goalsFor < 0 {
		goalsFor = 0
	}
	return lookup(r.multipliers, o) * (goalsFor + 1)
}

// TournamentPoints is the classic standings points for an outcome
func (r Rules) TournamentPoints(o Outcome) int {
	if o == Unplayed {
		return 0
	}
	return lookup(r.tournament, o)
}

// Score classifies a leg and returns its outcome with its game points
func (r Rules) Score(goalsFor, goalsAgainst *int) (Outcome, int) {
	o := Classify(goalsFor, goalsAgainst)
	if o == Unplayed {
		return o, 0
	}
	return o, r.GamePoints(o, *goalsFor)
}

func lookup(tbl config.PointsTable, o Outcome) int {
	switch o {
	case Win:
		return tbl.Win
	case Draw:
		return tbl.Draw
	case Loss:
		return tbl.Loss
	}
	return 0
}
