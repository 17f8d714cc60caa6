package dal

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// MemoryDAL implements Store using in-memory storage
type MemoryDAL struct {
	mu           sync.RWMutex
	teams        map[string]models.Team
	games        map[int]models.Game
	participants map[int]models.Participant
	draft        map[int][]models.DraftEntry
	slots        map[string]string
	nextID       int
}

// NewMemoryDAL creates a new in-memory data access layer
func NewMemoryDAL() *MemoryDAL {
	m := &MemoryDAL{}
	m.reset()
	return m
}

func (m *MemoryDAL) reset() {
	m.teams = make(map[string]models.Team)
	m.games = make(map[int]models.Game)
	m.participants = make(map[int]models.Participant)
	m.draft = make(map[int][]models.DraftEntry)
	m.slots = make(map[string]string)
	m.nextID = 1
}

func (m *MemoryDAL) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Create copies to avoid race conditions
	snap := &models.Snapshot{
		Teams:        make([]models.Team, 0, len(m.teams)),
		Games:        make([]models.Game, 0, len(m.games)),
		Participants: make([]models.Participant, 0, len(m.participants)),
		SlotMapping:  maps.Clone(m.slots),
	}

	for _, name := range slices.Sorted(maps.Keys(m.teams)) {
		snap.Teams = append(snap.Teams, m.teams[name])
	}
	for _, id := range slices.Sorted(maps.Keys(m.games)) {
		g := m.games[id]
		g.Home.Goals = cloneGoals(g.Home.Goals)
		g.Away.Goals = cloneGoals(g.Away.Goals)
		snap.Games = append(snap.Games, g)
	}
	for _, id := range slices.Sorted(maps.Keys(m.participants)) {
		snap.Participants = append(snap.Participants, m.participants[id])
		entries := slices.Clone(m.draft[id])
		slices.SortFunc(entries, func(a, b models.DraftEntry) int { return cmp.Compare(b.Value, a.Value) })
		snap.Draft = append(snap.Draft, entries...)
	}

	return snap, nil
}

func (m *MemoryDAL) Commit(ctx context.Context, c models.Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check everything first so a failed commit leaves no partial writes
	for _, t := range c.Teams {
		if _, ok := m.teams[t.Name]; !ok {
			return fmt.Errorf("%w: team %q", ErrNotFound, t.Name)
		}
	}
	for _, p := range c.Participants {
		stored, ok := m.participants[p.ParticipantID]
		if !ok {
			return fmt.Errorf("%w: participant %d", ErrNotFound, p.ParticipantID)
		}
		if stored.TotalScore != p.OldScore {
			return fmt.Errorf("%w: participant %d", ErrConflict, p.ParticipantID)
		}
	}

	for _, t := range c.Teams {
		team := m.teams[t.Name]
		team.FinalIdentity = t.FinalIdentity
		team.TotalGamePoints = t.TotalGamePoints
		m.teams[t.Name] = team
	}
	for _, p := range c.Participants {
		participant := m.participants[p.ParticipantID]
		participant.TotalScore = p.NewScore
		m.participants[p.ParticipantID] = participant
	}

	return nil
}

func (m *MemoryDAL) UpdateResults(ctx context.Context, results []models.Result) error {
	if err := checkResults(results); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range results {
		if _, ok := m.games[r.GameID]; !ok {
			return fmt.Errorf("%w: fixture %d", ErrNotFound, r.GameID)
		}
	}
	for _, r := range results {
		g := m.games[r.GameID]
		g.Home.Goals = cloneGoals(r.HomeGoals)
		g.Away.Goals = cloneGoals(r.AwayGoals)
		m.games[r.GameID] = g
	}

	return nil
}

func (m *MemoryDAL) ReplaceSlotMapping(ctx context.Context, mapping map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slots = maps.Clone(mapping)
	if m.slots == nil {
		m.slots = make(map[string]string)
	}
	return nil
}

func (m *MemoryDAL) AddTeams(ctx context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range names {
		name = models.CleanTeamName(name)
		if name == "" {
			continue
		}
		if _, ok := m.teams[name]; !ok {
			m.teams[name] = models.Team{Name: name}
		}
	}
	return nil
}

func (m *MemoryDAL) AddGames(ctx context.Context, games []models.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range games {
		if g.Partial() {
			return fmt.Errorf("%w: fixture %d", ErrPartialScore, g.ID)
		}
		g.Home.Team = models.CleanTeamName(g.Home.Team)
		g.Away.Team = models.CleanTeamName(g.Away.Team)
		for _, team := range []string{g.Home.Team, g.Away.Team} {
			if _, ok := m.teams[team]; !ok {
				return fmt.Errorf("%w: team %q in fixture %d", ErrNotFound, team, g.ID)
			}
		}
	}

	for _, g := range games {
		g.Home.Team = models.CleanTeamName(g.Home.Team)
		g.Away.Team = models.CleanTeamName(g.Away.Team)
		g.Home.Goals = cloneGoals(g.Home.Goals)
		g.Away.Goals = cloneGoals(g.Away.Goals)
		m.games[g.ID] = g
	}
	return nil
}

func (m *MemoryDAL) AddParticipant(ctx context.Context, p models.Participant, draft []models.DraftEntry) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := 0
	entries, err := cleanDraft(0, draft)
	if err != nil {
		return nil, err
	}

	for existing, stored := range m.participants {
		if stored.Name == p.Name {
			id = existing
			p.TotalScore = stored.TotalScore
			break
		}
	}
	if id == 0 {
		id = m.nextID
		m.nextID++
		p.TotalScore = 0
	}
	p.ID = id

	for i := range entries {
		entries[i].ParticipantID = id
	}
	m.participants[id] = p
	m.draft[id] = entries

	return &p, nil
}

func (m *MemoryDAL) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryDAL) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	return nil
}

func (m *MemoryDAL) Close() error {
	return nil
}
