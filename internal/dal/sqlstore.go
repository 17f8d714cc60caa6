package dal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// dialect holds what differs between the SQL backends
type dialect struct {
	name      string
	numbered  bool // $1 placeholders instead of ?
	isolation sql.IsolationLevel
	schema    string
	reset     []string
}

// sqlStore implements Store on database/sql. SQLiteDAL and PostgresDAL
// embed it with their own dialect.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

// rebind rewrites ? placeholders for dialects using numbered parameters
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("failed to create %s schema: %w", s.dialect.name, err)
	}
	return nil
}

func (s *sqlStore) withTx(ctx context.Context, opts *sql.TxOptions, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// collect scans every row and closes rows. An iteration error fails the
// whole read instead of returning a truncated slice.
func collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanTeam(rows *sql.Rows) (models.Team, error) {
	var t models.Team
	err := rows.Scan(&t.Name, &t.FinalIdentity, &t.TotalGamePoints)
	return t, err
}

func scanGame(rows *sql.Rows) (models.Game, error) {
	var g models.Game
	var stage string
	var kickoff sql.NullTime
	var home, away sql.NullInt64
	if err := rows.Scan(&g.ID, &stage, &g.Code, &kickoff, &g.Stadium, &g.Home.Team, &home, &g.Away.Team, &away); err != nil {
		return g, err
	}
	g.Stage = models.StageKind(stage)
	if kickoff.Valid {
		g.Date = kickoff.Time
	}
	g.Home.Goals = nullGoals(home)
	g.Away.Goals = nullGoals(away)
	return g, nil
}

func scanParticipant(rows *sql.Rows) (models.Participant, error) {
	var p models.Participant
	err := rows.Scan(&p.ID, &p.Name, &p.TeamName, &p.Email, &p.TotalScore)
	return p, err
}

func scanDraftEntry(rows *sql.Rows) (models.DraftEntry, error) {
	var e models.DraftEntry
	err := rows.Scan(&e.ParticipantID, &e.Reference, &e.Value)
	return e, err
}

type slotRow struct{ code, team string }

func scanSlot(rows *sql.Rows) (slotRow, error) {
	var r slotRow
	err := rows.Scan(&r.code, &r.team)
	return r, err
}

func (s *sqlStore) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{SlotMapping: make(map[string]string)}
	opts := &sql.TxOptions{ReadOnly: true, Isolation: s.dialect.isolation}

	err := s.withTx(ctx, opts, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT name, final_identity, total_game_points FROM teams ORDER BY name`)
		if err != nil {
			return fmt.Errorf("failed to query teams: %w", err)
		}
		if snap.Teams, err = collect(rows, scanTeam); err != nil {
			return fmt.Errorf("failed to read teams: %w", err)
		}

		rows, err = tx.QueryContext(ctx, `
			SELECT id, stage, code, kickoff, stadium, home_team, home_goals, away_team, away_goals
			FROM games ORDER BY id
		`)
		if err != nil {
			return fmt.Errorf("failed to query games: %w", err)
		}
		if snap.Games, err = collect(rows, scanGame); err != nil {
			return fmt.Errorf("failed to read games: %w", err)
		}

		rows, err = tx.QueryContext(ctx, `SELECT id, name, team_name, email, total_score FROM participants ORDER BY id`)
		if err != nil {
			return fmt.Errorf("failed to query participants: %w", err)
		}
		if snap.Participants, err = collect(rows, scanParticipant); err != nil {
			return fmt.Errorf("failed to read participants: %w", err)
		}

		rows, err = tx.QueryContext(ctx, `
			SELECT participant_id, reference, value FROM draft_entries
			ORDER BY participant_id, value DESC
		`)
		if err != nil {
			return fmt.Errorf("failed to query draft entries: %w", err)
		}
		if snap.Draft, err = collect(rows, scanDraftEntry); err != nil {
			return fmt.Errorf("failed to read draft entries: %w", err)
		}

		rows, err = tx.QueryContext(ctx, `SELECT code, team FROM slot_mapping`)
		if err != nil {
			return fmt.Errorf("failed to query slot mapping: %w", err)
		}
		slots, err := collect(rows, scanSlot)
		if err != nil {
			return fmt.Errorf("failed to read slot mapping: %w", err)
		}
		for _, r := range slots {
			snap.SlotMapping[r.code] = r.team
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *sqlStore) Commit(ctx context.Context, c models.Commit) error {
	if c.Empty() {
		return nil
	}

	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for _, t := range c.Teams {
			res, err := tx.ExecContext(ctx, s.rebind(`
				UPDATE teams SET final_identity = ?, total_game_points = ? WHERE name = ?
			`), t.FinalIdentity, t.TotalGamePoints, t.Name)
			if err := expectOne(res, err, "team %q", t.Name); err != nil {
				return err
			}
		}

		for _, p := range c.Participants {
			res, err := tx.ExecContext(ctx, s.rebind(`
				UPDATE participants SET total_score = ? WHERE id = ? AND total_score = ?
			`), p.NewScore, p.ParticipantID, p.OldScore)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				var exists int
				err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM participants WHERE id = ?`), p.ParticipantID).Scan(&exists)
				if err != nil {
					return err
				}
				if exists == 0 {
					return fmt.Errorf("%w: participant %d", ErrNotFound, p.ParticipantID)
				}
				return fmt.Errorf("%w: participant %d", ErrConflict, p.ParticipantID)
			}
		}

		return nil
	})
}

func (s *sqlStore) UpdateResults(ctx context.Context, results []models.Result) error {
	if err := checkResults(results); err != nil {
		return err
	}

	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for _, r := range results {
			res, err := tx.ExecContext(ctx, s.rebind(`
				UPDATE games SET home_goals = ?, away_goals = ? WHERE id = ?
			`), goalsArg(r.HomeGoals), goalsArg(r.AwayGoals), r.GameID)
			if err := expectOne(res, err, "fixture %d", r.GameID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqlStore) ReplaceSlotMapping(ctx context.Context, mapping map[string]string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM slot_mapping`); err != nil {
			return err
		}
		for code, team := range mapping {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO slot_mapping (code, team) VALUES (?, ?)`), code, team); err != nil {
				return fmt.Errorf("failed to store slot %q: %w", code, err)
			}
		}
		return nil
	})
}

func (s *sqlStore) AddTeams(ctx context.Context, names []string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for _, name := range names {
			name = models.CleanTeamName(name)
			if name == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO teams (name, final_identity, total_game_points) VALUES (?, '', 0)
				ON CONFLICT (name) DO NOTHING
			`), name)
			if err != nil {
				return fmt.Errorf("failed to insert team %q: %w", name, err)
			}
		}
		return nil
	})
}

func (s *sqlStore) AddGames(ctx context.Context, games []models.Game) error {
	for _, g := range games {
		if g.Partial() {
			return fmt.Errorf("%w: fixture %d", ErrPartialScore, g.ID)
		}
	}

	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for _, g := range games {
			var kickoff any
			if !g.Date.IsZero() {
				kickoff = g.Date.UTC()
			}
			_, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO games (id, stage, code, kickoff, stadium, home_team, home_goals, away_team, away_goals)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					stage = excluded.stage,
					code = excluded.code,
					kickoff = excluded.kickoff,
					stadium = excluded.stadium,
					home_team = excluded.home_team,
					home_goals = excluded.home_goals,
					away_team = excluded.away_team,
					away_goals = excluded.away_goals
			`), g.ID, string(g.Stage), g.Code, kickoff, g.Stadium,
				models.CleanTeamName(g.Home.Team), goalsArg(g.Home.Goals),
				models.CleanTeamName(g.Away.Team), goalsArg(g.Away.Goals))
			if err != nil {
				return fmt.Errorf("failed to insert fixture %d: %w", g.ID, err)
			}
		}
		return nil
	})
}

func (s *sqlStore) AddParticipant(ctx context.Context, p models.Participant, draft []models.DraftEntry) (*models.Participant, error) {
	entries, err := cleanDraft(0, draft)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, nil, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.rebind(`
			INSERT INTO participants (name, team_name, email, total_score) VALUES (?, ?, ?, 0)
			ON CONFLICT (name) DO UPDATE SET team_name = excluded.team_name, email = excluded.email
			RETURNING id, total_score
		`), p.Name, p.TeamName, p.Email).Scan(&p.ID, &p.TotalScore)
		if err != nil {
			return fmt.Errorf("failed to upsert participant %q: %w", p.Name, err)
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM draft_entries WHERE participant_id = ?`), p.ID); err != nil {
			return err
		}
		for _, e := range entries {
			_, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO draft_entries (participant_id, reference, value) VALUES (?, ?, ?)
			`), p.ID, e.Reference, e.Value)
			if err != nil {
				return fmt.Errorf("failed to insert draft entry %q: %w", e.Reference, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Reset(ctx context.Context) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for _, stmt := range s.dialect.reset {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to reset: %w", err)
			}
		}
		return nil
	})
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func expectOne(res sql.Result, err error, format string, args ...any) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return nil
}

func goalsArg(g *int) any {
	if g == nil {
		return nil
	}
	return int64(*g)
}

func nullGoals(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// pingWithRetry waits for a database that may still be starting
func pingWithRetry(db *sql.DB, attempts int, delay, timeout time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := db.PingContext(ctx)
		cancel()

		if err == nil {
			return nil
		}

		lastErr = err
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("failed to ping after %d retries: %w", attempts, lastErr)
}
