package engine

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Billy-Davies-2/knockout-pool/internal/bracket"
	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
	"github.com/Billy-Davies-2/knockout-pool/internal/standings"
)

// Aggregator builds the standings of every stage code and sums each team's
// game points under its canonical identity.
type Aggregator struct {
	tournament *config.Tournament
	calc       *standings.Calculator
}

// NewAggregator creates an aggregator
func NewAggregator(t *config.Tournament, calc *standings.Calculator) *Aggregator {
	return &Aggregator{tournament: t, calc: calc}
}

// Tables builds one table per stage code, returned in tournament order.
// Codes are computed concurrently; each table only reads games.
func (a *Aggregator) Tables(ctx context.Context, games []models.Game) ([]models.Standings, error) {
	codes := a.tournament.StageCodes()
	tables := make([]models.Standings, len(codes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, code := range codes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			table, err := a.calc.Table(code, games)
			if err != nil {
				return err
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tables, nil
}

// Totals sums game points per canonical identity. Rows of unresolved slots
// stay under their own code.
func Totals(tables []models.Standings, r *bracket.Resolver) map[string]int {
	totals := make(map[string]int)
	for _, table := range tables {
		for _, row := range table.Rows {
			totals[r.Resolve(row.Team)] += row.GamePoints
		}
	}
	return totals
}

// TeamTotals returns the totals of real teams, highest first and then by name.
// Configured teams that have not appeared in a fixture are listed with zero.
func TeamTotals(t *config.Tournament, totals map[string]int) []models.TeamTotal {
	out := make([]models.TeamTotal, 0, len(t.Teams()))
	for _, team := range t.Teams() {
		out = append(out, models.TeamTotal{Team: team, GamePoints: totals[team]})
	}
	slices.SortStableFunc(out, func(a, b models.TeamTotal) int {
		return cmp.Or(cmp.Compare(b.GamePoints, a.GamePoints), cmp.Compare(a.Team, b.Team))
	})
	return out
}

// teamUpdates compares stored team rows against the new totals and returns
// the rows whose identity or total changed
func teamUpdates(teams []models.Team, totals map[string]int, r *bracket.Resolver) []models.TeamUpdate {
	var updates []models.TeamUpdate
	for _, team := range teams {
		identity := r.Resolve(team.Name)
		total := totals[identity]
		if identity == team.FinalIdentity && total == team.TotalGamePoints {
			continue
		}
		updates = append(updates, models.TeamUpdate{
			Name:            team.Name,
			FinalIdentity:   identity,
			OldTotal:        team.TotalGamePoints,
			TotalGamePoints: total,
		})
	}
	return updates
}
