package models

import (
	"strings"
	"time"
	"unicode"
)

// StageKind is one phase of the tournament. The zero value is invalid.
type StageKind string

const (
	StageGroup        StageKind = "group"
	StageRoundOfN     StageKind = "round_of_n"
	StageQuarterFinal StageKind = "quarterfinal"
	StageSemiFinal    StageKind = "semifinal"
	StageFinal        StageKind = "final"
)

// StageKinds lists every stage kind in tournament order
var StageKinds = []StageKind{StageGroup, StageRoundOfN, StageQuarterFinal, StageSemiFinal, StageFinal}

// Order returns the position of the kind in StageKinds, or -1 when unknown
func (k StageKind) Order() int {
	for i, s := range StageKinds {
		if s == k {
			return i
		}
	}
	return -1
}

// Team is a competing team or a bracket slot placeholder that fixtures refer to
type Team struct {
	Name            string `json:"name"`
	FinalIdentity   string `json:"finalIdentity"`
	TotalGamePoints int    `json:"totalGamePoints"`
}

// Leg is one side of a fixture. Goals is nil while the match is unplayed.
type Leg struct {
	Team  string `json:"team"`
	Goals *int   `json:"goals"`
}

// Game represents a single fixture with exactly one home and one away leg
type Game struct {
	ID      int       `json:"id"`
	Stage   StageKind `json:"stage"`
	Code    string    `json:"code"`
	Date    time.Time `json:"date,omitempty"`
	Stadium string    `json:"stadium,omitempty"`
	Home    Leg       `json:"home"`
	Away    Leg       `json:"away"`
}

// Played reports whether both goal counts are present
func (g Game) Played() bool {
	return g.Home.Goals != nil && g.Away.Goals != nil
}

// Partial reports a fixture with exactly one goal count present
func (g Game) Partial() bool {
	return (g.Home.Goals == nil) != (g.Away.Goals == nil)
}

// DraftEntry is one value a participant assigned to a team or slot
type DraftEntry struct {
	ParticipantID int    `json:"participantId"`
	Reference     string `json:"reference"`
	Value         int    `json:"value"`
}

// Participant is a pool player
type Participant struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	TeamName   string `json:"teamName,omitempty"`
	Email      string `json:"email,omitempty"`
	TotalScore int    `json:"totalScore"`
}

// Result carries a goal pair for a fixture. Both nil clears the result.
type Result struct {
	GameID    int  `json:"gameId"`
	HomeGoals *int `json:"homeGoals"`
	AwayGoals *int `json:"awayGoals"`
}

// StandingRow is a team's accumulated statistics within one group or stage
type StandingRow struct {
	Team           string `json:"team"`
	Played         int    `json:"played"`
	Points         int    `json:"points"`
	Won            int    `json:"won"`
	Drawn          int    `json:"drawn"`
	Lost           int    `json:"lost"`
	GoalsFor       int    `json:"goalsFor"`
	GoalsAgainst   int    `json:"goalsAgainst"`
	GoalDifference int    `json:"goalDifference"`
	GamePoints     int    `json:"gamePoints"`
}

// Standings is the sorted table of one group or stage code
type Standings struct {
	Code  string        `json:"code"`
	Stage StageKind     `json:"stage"`
	Rows  []StandingRow `json:"rows"`
}

// Row looks a team up by name
func (s *Standings) Row(team string) (StandingRow, bool) {
	for _, r := range s.Rows {
		if r.Team == team {
			return r, true
		}
	}
	return StandingRow{}, false
}

// Snapshot is a consistent read of everything a recomputation needs
type Snapshot struct {
	Teams        []Team            `json:"teams"`
	Games        []Game            `json:"games"`
	Draft        []DraftEntry      `json:"draft"`
	Participants []Participant     `json:"participants"`
	SlotMapping  map[string]string `json:"slotMapping"`
}

// TeamUpdate is a changed derived team row
type TeamUpdate struct {
	Name            string `json:"name"`
	FinalIdentity   string `json:"finalIdentity"`
	OldTotal        int    `json:"oldTotal"`
	TotalGamePoints int    `json:"totalGamePoints"`
}

// ScoreChange is a changed participant total
type ScoreChange struct {
	ParticipantID int    `json:"participantId"`
	Name          string `json:"name"`
	OldScore      int    `json:"oldScore"`
	NewScore      int    `json:"newScore"`
	Delta         int    `json:"delta"`
}

// Commit holds the derived values written back at the end of a cycle
type Commit struct {
	Teams        []TeamUpdate  `json:"teams"`
	Participants []ScoreChange `json:"participants"`
}

// Empty reports whether the commit carries no writes
func (c *Commit) Empty() bool {
	return len(c.Teams) == 0 && len(c.Participants) == 0
}

// CycleReport describes one committed recomputation
type CycleReport struct {
	ID       string        `json:"id"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
	Teams    []TeamUpdate  `json:"teams"`
	Scores   []ScoreChange `json:"scores"`
}

// LeaderboardEntry is one ranked participant
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID int    `json:"participantId"`
	Name          string `json:"name"`
	TeamName      string `json:"teamName,omitempty"`
	TotalScore    int    `json:"totalScore"`
}

// EntryScore is a participant's contribution from one draft entry
type EntryScore struct {
	Reference    string `json:"reference"`
	Identity     string `json:"identity"`
	Pending      bool   `json:"pending"`
	TeamPoints   int    `json:"teamPoints"`
	Value        int    `json:"value"`
	Contribution int    `json:"contribution"`
}

// ParticipantBreakdown is a participant with the terms of their score
type ParticipantBreakdown struct {
	Participant
	Entries []EntryScore `json:"entries"`
}

// TeamTotal is a canonical team with its total game points
type TeamTotal struct {
	Team       string `json:"team"`
	GamePoints int    `json:"gamePoints"`
}

// CleanTeamName keeps letters, digits, spaces and hyphens
func CleanTeamName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == ' ' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Goals returns a pointer to n, for building results inline
func Goals(n int) *int {
	return &n
}

// ScorePoint is one recorded change of a participant's total
type ScorePoint struct {
	CycleID  string    `json:"cycleId"`
	At       time.Time `json:"at"`
	OldScore int       `json:"oldScore"`
	NewScore int       `json:"newScore"`
	Delta    int       `json:"delta"`
}
