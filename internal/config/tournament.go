package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

//go:embed editions/*.yaml
var editionFiles embed.FS

// ErrInvalidTournament is returned when a tournament definition fails validation
var ErrInvalidTournament = errors.New("invalid tournament configuration")

// PointsTable maps a match outcome to a number
type PointsTable struct {
	Win  int `yaml:"win" json:"win"`
	Draw int `yaml:"draw" json:"draw"`
	Loss int `yaml:"loss" json:"loss"`
}

// Stage is one tournament phase with the group/slot codes played in it
type Stage struct {
	Kind  models.StageKind `yaml:"kind" json:"kind"`
	Codes []string         `yaml:"codes" json:"codes"`
}

// ScheduleLayout describes where the schedule workbook keeps its columns.
// Column positions are zero based.
type ScheduleLayout struct {
	Sheet     string         `yaml:"sheet"`
	HeaderRow int            `yaml:"header_row"`
	Columns   map[string]int `yaml:"columns"`
}

type tournamentFile struct {
	Name             string            `yaml:"name"`
	Stages           []Stage           `yaml:"stages"`
	Teams            []string          `yaml:"teams"`
	DraftValues      []int             `yaml:"draft_values"`
	TournamentPoints PointsTable       `yaml:"tournament_points"`
	GamePoints       PointsTable       `yaml:"game_points"`
	Slots            []string          `yaml:"slots"`
	SlotMapping      map[string]string `yaml:"slot_mapping"`
	Schedule         ScheduleLayout    `yaml:"schedule"`
}

// Tournament is an immutable tournament edition. Accessors hand out copies.
type Tournament struct {
	name             string
	stages           []Stage
	stageOf          map[string]models.StageKind
	teams            []string
	teamSet          map[string]struct{}
	draftValues      []int
	tournamentPoints PointsTable
	gamePoints       PointsTable
	slots            []string
	slotSet          map[string]struct{}
	slotMapping      map[string]string
	schedule         ScheduleLayout
}

// Editions lists the built-in tournament editions
func Editions() []string {
	entries, err := editionFiles.ReadDir("editions")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// LoadTournament loads a built-in edition by name or a YAML file by path
func LoadTournament(nameOrPath string) (*Tournament, error) {
	if nameOrPath == "" {
		return nil, fmt.Errorf("%w: no edition given", ErrInvalidTournament)
	}

	data, err := editionFiles.ReadFile(path.Join("editions", strings.ToLower(nameOrPath)+".yaml"))
	if err != nil {
		data, err = os.ReadFile(nameOrPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read tournament %q (built-in editions: %s): %w",
				nameOrPath, strings.Join(Editions(), ", "), err)
		}
	}

	return ParseTournament(data)
}

// ParseTournament decodes and validates a YAML tournament definition
func ParseTournament(data []byte) (*Tournament, error) {
	var f tournamentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTournament, err)
	}

	t := &Tournament{
		name:             f.Name,
		stageOf:          make(map[string]models.StageKind),
		teamSet:          make(map[string]struct{}),
		draftValues:      slices.Clone(f.DraftValues),
		tournamentPoints: f.TournamentPoints,
		gamePoints:       f.GamePoints,
		slotSet:          make(map[string]struct{}),
		slotMapping:      make(map[string]string),
		schedule:         f.Schedule,
	}

	for _, s := range f.Stages {
		stage := Stage{Kind: s.Kind}
		for _, code := range s.Codes {
			stage.Codes = append(stage.Codes, NormalizeCode(code))
		}
		t.stages = append(t.stages, stage)
	}
	for _, team := range f.Teams {
		t.teams = append(t.teams, models.CleanTeamName(team))
	}
	for _, slot := range f.Slots {
		t.slots = append(t.slots, NormalizeCode(slot))
	}
	for code, team := range f.SlotMapping {
		t.slotMapping[NormalizeCode(code)] = models.CleanTeamName(team)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the invariants every component relies on
func (t *Tournament) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidTournament, fmt.Sprintf(format, args...))
	}

	if len(t.stages) == 0 {
		return invalid("no stages defined")
	}

	lastOrder := -1
	for _, s := range t.stages {
		order := s.Kind.Order()
		if order < 0 {
			return invalid("unknown stage kind %q", s.Kind)
		}
		if order <= lastOrder {
			return invalid("stage %q is out of order", s.Kind)
		}
		lastOrder = order

		if len(s.Codes) == 0 {
			return invalid("stage %q has no codes", s.Kind)
		}
		for _, code := range s.Codes {
			if code == "" {
				return invalid("stage %q has an empty code", s.Kind)
			}
			if _, dup := t.stageOf[code]; dup {
				return invalid("duplicate stage code %q", code)
			}
			t.stageOf[code] = s.Kind
		}
	}

	if len(t.teams) == 0 {
		return invalid("no teams defined")
	}
	for _, team := range t.teams {
		if team == "" {
			return invalid("empty team name")
		}
		if _, dup := t.teamSet[team]; dup {
			return invalid("duplicate team %q", team)
		}
		t.teamSet[team] = struct{}{}
	}

	if len(t.draftValues) != len(t.teams) {
		return invalid("%d draft values for %d teams", len(t.draftValues), len(t.teams))
	}
	for i, v := range t.draftValues {
		if v <= 0 {
			return invalid("draft value %d is not positive", v)
		}
		if i > 0 && v >= t.draftValues[i-1] {
			return invalid("draft values must be strictly descending (%d after %d)", v, t.draftValues[i-1])
		}
	}

	for _, tbl := range []PointsTable{t.tournamentPoints, t.gamePoints} {
		if tbl.Win < 0 || tbl.Draw < 0 || tbl.Loss < 0 {
			return invalid("negative points table entry %+v", tbl)
		}
	}

	upperTeams := make(map[string]struct{}, len(t.teams))
	for _, team := range t.teams {
		upperTeams[NormalizeCode(team)] = struct{}{}
	}
	for _, slot := range t.slots {
		if slot == "" {
			return invalid("empty slot code")
		}
		if _, dup := t.slotSet[slot]; dup {
			return invalid("duplicate slot code %q", slot)
		}
		if _, clash := upperTeams[slot]; clash {
			return invalid("slot code %q is also a team name", slot)
		}
		t.slotSet[slot] = struct{}{}
	}

	for code, team := range t.slotMapping {
		if _, ok := t.slotSet[code]; !ok {
			return invalid("slot mapping refers to unknown slot %q", code)
		}
		if _, ok := t.teamSet[team]; team != "" && !ok {
			return invalid("slot %q maps to unknown team %q", code, team)
		}
	}

	return nil
}

// Name returns the edition name
func (t *Tournament) Name() string { return t.name }

// Stages returns the stages in tournament order
func (t *Tournament) Stages() []Stage {
	out := make([]Stage, len(t.stages))
	for i, s := range t.stages {
		out[i] = Stage{Kind: s.Kind, Codes: slices.Clone(s.Codes)}
	}
	return out
}

// StageCodes returns every group/slot code from group stage through final
func (t *Tournament) StageCodes() []string {
	var codes []string
	for _, s := range t.stages {
		codes = append(codes, s.Codes...)
	}
	return codes
}

// StageOf returns the stage a code belongs to
func (t *Tournament) StageOf(code string) (models.StageKind, bool) {
	kind, ok := t.stageOf[NormalizeCode(code)]
	return kind, ok
}

// GroupCodes returns the codes of the group stage, if the edition has one
func (t *Tournament) GroupCodes() []string {
	for _, s := range t.stages {
		if s.Kind == models.StageGroup {
			return slices.Clone(s.Codes)
		}
	}
	return nil
}

// Teams returns the team names in configured order
func (t *Tournament) Teams() []string { return slices.Clone(t.teams) }

// IsTeam reports whether name is a configured team
func (t *Tournament) IsTeam(name string) bool {
	_, ok := t.teamSet[name]
	return ok
}

// DraftValues returns the descending draft-value sequence
func (t *Tournament) DraftValues() []int { return slices.Clone(t.draftValues) }

// TournamentPoints returns the classic standings points table
func (t *Tournament) TournamentPoints() PointsTable { return t.tournamentPoints }

// GamePointMultipliers returns the game-points multiplier table
func (t *Tournament) GamePointMultipliers() PointsTable { return t.gamePoints }

// Slots returns the bracket slot codes
func (t *Tournament) Slots() []string { return slices.Clone(t.slots) }

// IsSlot reports whether code is a bracket slot code
func (t *Tournament) IsSlot(code string) bool {
	_, ok := t.slotSet[NormalizeCode(code)]
	return ok
}

// InitialSlotMapping returns the configured mapping with every slot present
func (t *Tournament) InitialSlotMapping() map[string]string {
	m := make(map[string]string, len(t.slots))
	for _, slot := range t.slots {
		m[slot] = t.slotMapping[slot]
	}
	return m
}

// Schedule returns the schedule workbook layout
func (t *Tournament) Schedule() ScheduleLayout {
	layout := t.schedule
	layout.Columns = make(map[string]int, len(t.schedule.Columns))
	for k, v := range t.schedule.Columns {
		layout.Columns[k] = v
	}
	return layout
}

// NormalizeCode trims and upper-cases a stage or slot code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
