package engine

import (
	"cmp"
	"slices"

	"github.com/Billy-Davies-2/knockout-pool/internal/bracket"
	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// scorer turns draft entries into participant totals
type scorer struct {
	tournament *config.Tournament
	resolver   *bracket.Resolver
	totals     map[string]int
}

// entry scores one draft entry. Only a resolved, configured team earns
// points; a pending slot or unknown reference contributes zero. Fixtures
// naming a team outside the tournament never get this far: the calculator
// rejects them before any totals are computed.
func (s scorer) entry(e models.DraftEntry) models.EntryScore {
	identity := s.resolver.Resolve(e.Reference)
	score := models.EntryScore{
		Reference: e.Reference,
		Identity:  identity,
		Pending:   s.resolver.Pending(e.Reference),
		Value:     e.Value,
	}
	if !score.Pending && s.tournament.IsTeam(identity) {
		score.TeamPoints = s.totals[identity]
	}
	score.Contribution = score.Value * score.TeamPoints
	return score
}

// participant scores all entries, ordered by draft value descending
func (s scorer) participant(entries []models.DraftEntry) (int, []models.EntryScore) {
	scores := make([]models.EntryScore, 0, len(entries))
	total := 0
	for _, e := range entries {
		es := s.entry(e)
		total += es.Contribution
		scores = append(scores, es)
	}
	slices.SortStableFunc(scores, func(a, b models.EntryScore) int {
		return cmp.Compare(b.Value, a.Value)
	})
	return total, scores
}

// changes recomputes every participant and keeps only the totals that moved
func (s scorer) changes(participants []models.Participant, draft []models.DraftEntry) []models.ScoreChange {
	byParticipant := groupDraft(draft)

	var changes []models.ScoreChange
	for _, p := range participants {
		total, _ := s.participant(byParticipant[p.ID])
		if total == p.TotalScore {
			continue
		}
		changes = append(changes, models.ScoreChange{
			ParticipantID: p.ID,
			Name:          p.Name,
			OldScore:      p.TotalScore,
			NewScore:      total,
			Delta:         total - p.TotalScore,
		})
	}
	return changes
}

func groupDraft(draft []models.DraftEntry) map[int][]models.DraftEntry {
	out := make(map[int][]models.DraftEntry)
	for _, e := range draft {
		out[e.ParticipantID] = append(out[e.ParticipantID], e)
	}
	return out
}

// rankLeaderboard orders by score descending, then name and id. Equal
// scores share the rank of the first of them.
func rankLeaderboard(participants []models.Participant) []models.LeaderboardEntry {
	sorted := slices.Clone(participants)
	slices.SortStableFunc(sorted, func(a, b models.Participant) int {
		return cmp.Or(
			cmp.Compare(b.TotalScore, a.TotalScore),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.ID, b.ID),
		)
	})

	out := make([]models.LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		rank := i + 1
		if i > 0 && p.TotalScore == sorted[i-1].TotalScore {
			rank = out[i-1].Rank
		}
		out[i] = models.LeaderboardEntry{
			Rank:          rank,
			ParticipantID: p.ID,
			Name:          p.Name,
			TeamName:      p.TeamName,
			TotalScore:    p.TotalScore,
		}
	}
	return out
}
