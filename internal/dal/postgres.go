package dal

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS teams (
		name TEXT PRIMARY KEY,
		final_identity TEXT NOT NULL DEFAULT '',
		total_game_points INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY,
		stage TEXT NOT NULL,
		code TEXT NOT NULL,
		kickoff TIMESTAMPTZ,
		stadium TEXT NOT NULL DEFAULT '',
		home_team TEXT NOT NULL REFERENCES teams(name),
		home_goals INTEGER CHECK (home_goals >= 0),
		away_team TEXT NOT NULL REFERENCES teams(name),
		away_goals INTEGER CHECK (away_goals >= 0),
		CHECK ((home_goals IS NULL) = (away_goals IS NULL))
	);

	CREATE TABLE IF NOT EXISTS participants (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		team_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		total_score INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
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
	CREATE INDEX IF NOT EXISTS idx_participants_total ON participants(total_score DESC);
`

// PostgresDAL implements Store using PostgreSQL
type PostgresDAL struct {
	*sqlStore
}

// NewPostgresDAL creates a new PostgreSQL data access layer optimized for CloudNativePG
func NewPostgresDAL(connString string) (*PostgresDAL, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	// CloudNativePG default max_connections is 100
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute) // recycle across failovers
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Kubernetes DNS can take a while to resolve a fresh service
	if err := pingWithRetry(db, 5, 5*time.Second, 60*time.Second); err != nil {
		db.Close()
		return nil, err
	}

	dal := &PostgresDAL{sqlStore: newPostgresStore(db)}

	if err := dal.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return dal, nil
}

func newPostgresStore(db *sql.DB) *sqlStore {
	return &sqlStore{
		db: db,
		dialect: dialect{
			name:      "postgres",
			numbered:  true,
			isolation: sql.LevelRepeatableRead,
			schema:    postgresSchema,
			reset: []string{
				`TRUNCATE draft_entries, participants, games, teams, slot_mapping RESTART IDENTITY CASCADE`,
			},
		},
	}
}
