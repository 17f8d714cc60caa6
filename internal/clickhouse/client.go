package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS score_history (
		cycle_id       String,
		at             DateTime64(3, 'UTC'),
		participant_id Int64,
		name           String,
		old_score      Int32,
		new_score      Int32,
		delta          Int32
	) ENGINE = MergeTree ORDER BY (participant_id, at)`,
	`CREATE TABLE IF NOT EXISTS team_history (
		cycle_id   String,
		at         DateTime64(3, 'UTC'),
		team       String,
		identity   String,
		old_total  Int32,
		total      Int32
	) ENGINE = MergeTree ORDER BY (team, at)`,
}

// Client records committed scoring cycles in ClickHouse
type Client struct {
	conn driver.Conn
}

// NewClient creates a new ClickHouse client and ensures the history tables exist
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	c := &Client{conn: conn}
	if err := c.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// EnsureSchema creates the history tables when missing
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create history table: %w", err)
		}
	}
	return nil
}

// RecordCycle appends the changes of one committed cycle
func (c *Client) RecordCycle(ctx context.Context, report models.CycleReport) error {
	if len(report.Scores) > 0 {
		batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO score_history")
		if err != nil {
			return fmt.Errorf("failed to prepare score batch: %w", err)
		}
		for _, s := range report.Scores {
			err := batch.Append(report.ID, report.At, int64(s.ParticipantID), s.Name,
				int32(s.OldScore), int32(s.NewScore), int32(s.Delta))
			if err != nil {
				return fmt.Errorf("failed to append score change: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send score batch: %w", err)
		}
	}

	if len(report.Teams) > 0 {
		batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO team_history")
		if err != nil {
			return fmt.Errorf("failed to prepare team batch: %w", err)
		}
		for _, t := range report.Teams {
			err := batch.Append(report.ID, report.At, t.Name, t.FinalIdentity,
				int32(t.OldTotal), int32(t.TotalGamePoints))
			if err != nil {
				return fmt.Errorf("failed to append team update: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send team batch: %w", err)
		}
	}

	logger.Debug("Cycle recorded in ClickHouse", "cycle", report.ID, "scores", len(report.Scores), "teams", len(report.Teams))
	return nil
}

// ScoreHistory returns the recorded changes of one participant, oldest first
func (c *Client) ScoreHistory(ctx context.Context, participantID int) ([]models.ScorePoint, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT cycle_id, at, old_score, new_score, delta
		FROM score_history
		WHERE participant_id = ?
		ORDER BY at`, int64(participantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.ScorePoint{}
	for rows.Next() {
		var (
			p                      models.ScorePoint
			oldScore, score, delta int32
		)
		if err := rows.Scan(&p.CycleID, &p.At, &oldScore, &score, &delta); err != nil {
			return nil, err
		}
		p.OldScore, p.NewScore, p.Delta = int(oldScore), int(score), int(delta)
		history = append(history, p)
	}
	return history, rows.Err()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
