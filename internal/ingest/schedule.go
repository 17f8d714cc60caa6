// Package ingest reads the schedule workbook and the participants' draft
// forms and writes them to storage.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Billy-Davies-2/knockout-pool/internal/config"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

var (
	// ErrInvalidSchedule is returned for a schedule row that cannot become a fixture
	ErrInvalidSchedule = errors.New("invalid schedule")
	// ErrInvalidForm is returned for a draft form that cannot become a draft
	ErrInvalidForm = errors.New("invalid draft form")
)

// Schedule columns every layout must name
var requiredColumns = []string{"code", "home_team", "away_team", "home_goals", "away_goals"}

var (
	dateLayouts = []string{"2006-01-02", "02-01-2006", "2-1-2006", "02/01/2006", "2/1/2006", "01-02-06", "1-2-06"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04:05 PM"}
)

// ReadSchedule reads the fixtures from a schedule workbook on disk
func ReadSchedule(path string, layout config.ScheduleLayout, t *config.Tournament) ([]models.Game, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule: %w", err)
	}
	defer f.Close()
	return ParseSchedule(f, layout, t)
}

// ParseSchedule reads the fixtures of a schedule workbook. Rows below the
// header that are entirely empty are skipped; the others are numbered from 1
// in sheet order and become the fixture ids.
func ParseSchedule(r io.Reader, layout config.ScheduleLayout, t *config.Tournament) ([]models.Game, error) {
	for _, col := range requiredColumns {
		if _, ok := layout.Columns[col]; !ok {
			return nil, fmt.Errorf("%w: layout has no %q column", ErrInvalidSchedule, col)
		}
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheet := layout.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) <= layout.HeaderRow {
		return nil, fmt.Errorf("%w: sheet %q has no rows below the header", ErrInvalidSchedule, sheet)
	}

	var games []models.Game
	for i, row := range rows[layout.HeaderRow+1:] {
		line := layout.HeaderRow + i + 2
		cell := func(col string) string {
			idx, ok := layout.Columns[col]
			if !ok || idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if rowEmpty(layout, cell) {
			continue
		}

		g, err := parseFixture(len(games)+1, cell, t)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		games = append(games, g)
	}
	return games, nil
}

func rowEmpty(layout config.ScheduleLayout, cell func(string) string) bool {
	for col := range layout.Columns {
		if cell(col) != "" {
			return false
		}
	}
	return true
}

func parseFixture(id int, cell func(string) string, t *config.Tournament) (models.Game, error) {
	code := config.NormalizeCode(cell("code"))
	stage, ok := t.StageOf(code)
	if !ok {
		return models.Game{}, fmt.Errorf("%w: unknown stage code %q", ErrInvalidSchedule, cell("code"))
	}

	home, err := reference(t, cell("home_team"))
	if err != nil {
		return models.Game{}, err
	}
	away, err := reference(t, cell("away_team"))
	if err != nil {
		return models.Game{}, err
	}

	homeGoals, err := goals(cell("home_goals"))
	if err != nil {
		return models.Game{}, err
	}
	awayGoals, err := goals(cell("away_goals"))
	if err != nil {
		return models.Game{}, err
	}
	if (homeGoals == nil) != (awayGoals == nil) {
		return models.Game{}, fmt.Errorf("%w: fixture %d has only one goal count", ErrInvalidSchedule, id)
	}

	return models.Game{
		ID:      id,
		Stage:   stage,
		Code:    code,
		Date:    kickoff(cell("date"), cell("time")),
		Stadium: cell("stadium"),
		Home:    models.Leg{Team: home, Goals: homeGoals},
		Away:    models.Leg{Team: away, Goals: awayGoals},
	}, nil
}

// reference cleans a team cell and resolves it to a team name or slot code
func reference(t *config.Tournament, raw string) (string, error) {
	name := models.CleanTeamName(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty team", ErrInvalidSchedule)
	}
	if t.IsTeam(name) {
		return name, nil
	}
	if code := config.NormalizeCode(name); t.IsSlot(code) {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q is neither a team nor a slot", ErrInvalidSchedule, raw)
}

func goals(raw string) (*int, error) {
	if raw == "" || raw == "-" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return nil, fmt.Errorf("%w: goal count %q", ErrInvalidSchedule, raw)
	}
	return models.Goals(int(f)), nil
}

// kickoff combines the date and time cells. Cells hold either an Excel
// serial number or text. An unreadable date yields the zero time.
func kickoff(date, clock string) time.Time {
	day, ok := parseDate(date)
	if !ok {
		return time.Time{}
	}
	if h, m, ok := parseClock(clock); ok {
		day = day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
	}
	return day
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return t.Truncate(24 * time.Hour), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseClock(raw string) (int, int, bool) {
	if raw == "" {
		return 0, 0, false
	}
	if frac, err := strconv.ParseFloat(raw, 64); err == nil && frac >= 0 && frac < 1 {
		minutes := int(frac*24*60 + 0.5)
		return minutes / 60, minutes % 60, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}

// Teams returns the sorted distinct team and slot names the fixtures use
func Teams(games []models.Game) []string {
	seen := make(map[string]struct{})
	for _, g := range games {
		seen[g.Home.Team] = struct{}{}
		seen[g.Away.Team] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Results turns fixtures into result updates. Unplayed fixtures clear any
// stored result.
func Results(games []models.Game) []models.Result {
	results := make([]models.Result, len(games))
	for i, g := range games {
		results[i] = models.Result{GameID: g.ID, HomeGoals: g.Home.Goals, AwayGoals: g.Away.Goals}
	}
	return results
}
