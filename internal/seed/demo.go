// Package seed fills a store with a generated demo pool
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/ingest"
	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// Options controls what Demo generates
type Options struct {
	Participants int
	// Results plays every group fixture with random goals
	Results bool
	// Seed makes the output reproducible; zero picks one from the clock
	Seed uint64
	// Start is the kick-off of the first fixture
	Start time.Time
}

// Summary counts what Demo wrote
type Summary struct {
	Teams        int
	Games        int
	Played       int
	Participants int
}

// Demo writes teams, slot placeholders, fixtures and fake participants for
// the tournament. Teams are spread over the groups in order; every group
// plays a round robin and each knockout code gets the next two slots.
func Demo(ctx context.Context, store ingest.Store, t *config.Tournament, opts Options) (*Summary, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	faker := gofakeit.New(seed)
	start := opts.Start
	if start.IsZero() {
		start = time.Date(2022, 11, 20, 13, 0, 0, 0, time.UTC)
	}

	if err := ingest.NewLoader(store, t).Init(ctx); err != nil {
		return nil, err
	}

	games := Fixtures(t, start)
	sum := &Summary{Teams: len(t.Teams()), Games: len(games)}
	if opts.Results {
		for i := range games {
			if games[i].Stage != models.StageGroup {
				continue
			}
			games[i].Home.Goals = models.Goals(faker.Number(0, 4))
			games[i].Away.Goals = models.Goals(faker.Number(0, 4))
			sum.Played++
		}
	}
	if err := store.AddGames(ctx, games); err != nil {
		return nil, fmt.Errorf("failed to add games: %w", err)
	}

	names := make(map[string]struct{}, opts.Participants)
	values := t.DraftValues()
	for len(names) < opts.Participants {
		name := faker.Name()
		if _, dup := names[name]; dup {
			continue
		}
		names[name] = struct{}{}

		ranking := t.Teams()
		faker.ShuffleStrings(ranking)
		draft := make([]models.DraftEntry, len(values))
		for i, v := range values {
			draft[i] = models.DraftEntry{Reference: ranking[i], Value: v}
		}

		p := models.Participant{Name: name, TeamName: faker.Company(), Email: faker.Email()}
		if _, err := store.AddParticipant(ctx, p, draft); err != nil {
			return nil, fmt.Errorf("failed to add participant %q: %w", name, err)
		}
		sum.Participants++
	}

	logger.Info("Demo pool generated",
		"edition", t.Name(),
		"games", sum.Games,
		"played", sum.Played,
		"participants", sum.Participants,
		"seed", seed,
	)
	return sum, nil
}

// Fixtures builds the unplayed schedule Demo stores, numbered from 1 and
// three hours apart
func Fixtures(t *config.Tournament, start time.Time) []models.Game {
	var games []models.Game
	add := func(stage models.StageKind, code, home, away string) {
		games = append(games, models.Game{
			ID:    len(games) + 1,
			Stage: stage,
			Code:  code,
			Date:  start.Add(time.Duration(len(games)) * 3 * time.Hour),
			Home:  models.Leg{Team: home},
			Away:  models.Leg{Team: away},
		})
	}

	groups := t.GroupCodes()
	if len(groups) > 0 {
		members := make([][]string, len(groups))
		for i, team := range t.Teams() {
			members[i%len(groups)] = append(members[i%len(groups)], team)
		}
		for g, code := range groups {
			teams := members[g]
			for i := 0; i < len(teams); i++ {
				for j := i + 1; j < len(teams); j++ {
					add(models.StageGroup, code, teams[i], teams[j])
				}
			}
		}
	}

	slots := t.Slots()
	next := 0
	for _, stage := range t.Stages() {
		if stage.Kind == models.StageGroup {
			continue
		}
		for _, code := range stage.Codes {
			if next+1 >= len(slots) {
				return games
			}
			add(stage.Kind, code, slots[next], slots[next+1])
			next += 2
		}
	}
	return games
}
