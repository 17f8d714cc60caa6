package dal

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS teams (
		name TEXT PRIMARY KEY,
		final_identity TEXT NOT NULL DEFAULT '',
		total_game_points INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY,
		stage TEXT NOT NULL,
		code TEXT NOT NULL,
		kickoff TIMESTAMP,
		stadium TEXT NOT NULL DEFAULT '',
		home_team TEXT NOT NULL REFERENCES teams(name),
		home_goals INTEGER CHECK (home_goals >= 0),
		away_team TEXT NOT NULL REFERENCES teams(name),
		away_goals INTEGER CHECK (away_goals >= 0),
		CHECK ((home_goals IS NULL) = (away_goals IS NULL))
	);

	CREATE TABLE IF NOT EXISTS participants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		team_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		total_score INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS draft_entries (
		participant_id INTEGER NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
		reference TEXT NOT NULL,
		value INTEGER NOT NULL,
		PRIMARY KEY (participant_id, reference),
		UNIQUE (participant_id, value)
	);

	CREATE TABLE IF NOT EXISTS slot_mapping (
		code TEXT PRIMARY KEY,
		team TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_games_code ON games(code);
`

// SQLiteDAL implements Store using SQLite
type SQLiteDAL struct {
	*sqlStore
}

// NewSQLiteDAL opens (and creates if needed) a SQLite database file
func NewSQLiteDAL(dbPath string) (*SQLiteDAL, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; transactions then never see SQLITE_BUSY
	db.SetMaxOpenConns(1)

	dal := &SQLiteDAL{sqlStore: &sqlStore{
		db: db,
		dialect: dialect{
			name:      "sqlite",
			isolation: sql.LevelDefault,
			schema:    sqliteSchema,
			reset: []string{
				`DELETE FROM draft_entries`,
				`DELETE FROM participants`,
				`DELETE FROM games`,
				`DELETE FROM teams`,
				`DELETE FROM slot_mapping`,
				`DELETE FROM sqlite_sequence WHERE name = 'participants'`,
			},
		},
	}}

	if err := dal.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return dal, nil
}
