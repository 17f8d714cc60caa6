// Package export writes the pool's standings and leaderboard to a workbook
// and optionally uploads it to an S3 compatible bucket.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// ContentType of the written workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	leaderboardSheet = "Leaderboard"
	teamsSheet       = "Teams"
)

// Source is what a report is collected from
type Source interface {
	Leaderboard(ctx context.Context, top int) ([]models.LeaderboardEntry, error)
	TeamTotals(ctx context.Context) ([]models.TeamTotal, error)
	AllStandings(ctx context.Context) ([]models.Standings, error)
}

// Report is everything a workbook shows
type Report struct {
	Edition     string
	Generated   time.Time
	Leaderboard []models.LeaderboardEntry
	Teams       []models.TeamTotal
	Standings   []models.Standings
}

// Collect reads a full report from src
func Collect(ctx context.Context, edition string, src Source) (*Report, error) {
	leaderboard, err := src.Leaderboard(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	teams, err := src.TeamTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read team totals: %w", err)
	}
	tables, err := src.AllStandings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read standings: %w", err)
	}
	return &Report{
		Edition:     edition,
		Generated:   time.Now().UTC(),
		Leaderboard: leaderboard,
		Teams:       teams,
		Standings:   tables,
	}, nil
}

// WriteWorkbook writes the report as an xlsx workbook: a Leaderboard sheet,
// a Teams sheet and one sheet per stage code
func WriteWorkbook(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), leaderboardSheet); err != nil {
		return err
	}

	rows := [][]interface{}{
		{r.Edition, r.Generated.Format(time.RFC3339)},
		{"Rank", "Participant", "Team", "Score"},
	}
	for _, e := range r.Leaderboard {
		rows = append(rows, []interface{}{e.Rank, e.Name, e.TeamName, e.TotalScore})
	}
	if err := writeRows(f, leaderboardSheet, rows); err != nil {
		return err
	}

	rows = [][]interface{}{{"Team", "Game points"}}
	for _, t := range r.Teams {
		rows = append(rows, []interface{}{t.Team, t.GamePoints})
	}
	if err := addSheet(f, teamsSheet, rows); err != nil {
		return err
	}

	for _, s := range r.Standings {
		rows = [][]interface{}{
			{"Team", "Played", "Won", "Drawn", "Lost", "For", "Against", "Diff", "Points", "Game points"},
		}
		for _, row := range s.Rows {
			rows = append(rows, []interface{}{
				row.Team, row.Played, row.Won, row.Drawn, row.Lost,
				row.GoalsFor, row.GoalsAgainst, row.GoalDifference, row.Points, row.GamePoints,
			})
		}
		if err := addSheet(f, s.Code, rows); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook writes the report to a file
func SaveWorkbook(path string, r *Report) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWorkbook(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addSheet(f *excelize.File, name string, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to add sheet %q: %w", name, err)
	}
	return writeRows(f, name, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		cells := row
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("failed to write sheet %q: %w", sheet, err)
		}
	}
	return nil
}
