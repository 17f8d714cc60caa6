package mocks

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/knockout-pool/internal/logger"
	"github.com/Billy-Davies-2/knockout-pool/internal/models"
)

// MockClickHouseClient keeps cycle history in memory for local development
type MockClickHouseClient struct {
	mu      sync.RWMutex
	cycles  []models.CycleReport
	history map[int][]models.ScorePoint
	fail    error
}

// NewMockClickHouseClient creates a mock ClickHouse client
func NewMockClickHouseClient() *MockClickHouseClient {
	logger.Info("Using MOCK ClickHouse client for local development")

	return &MockClickHouseClient{history: make(map[int][]models.ScorePoint)}
}

// FailWith makes every following RecordCycle return err; nil restores success
func (m *MockClickHouseClient) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// RecordCycle stores the cycle and appends each score change to its participant's history
func (m *MockClickHouseClient) RecordCycle(_ context.Context, report models.CycleReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	m.cycles = append(m.cycles, report)
	for _, s := range report.Scores {
		m.history[s.ParticipantID] = append(m.history[s.ParticipantID], models.ScorePoint{
			CycleID:  report.ID,
			At:       report.At,
			OldScore: s.OldScore,
			NewScore: s.NewScore,
			Delta:    s.Delta,
		})
	}
	return nil
}

// ScoreHistory returns the recorded changes of one participant, oldest first
func (m *MockClickHouseClient) ScoreHistory(_ context.Context, participantID int) ([]models.ScorePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.ScorePoint{}, m.history[participantID]...), nil
}

// Cycles returns every recorded cycle
func (m *MockClickHouseClient) Cycles() []models.CycleReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.CycleReport(nil), m.cycles...)
}

// Ping always succeeds
func (m *MockClickHouseClient) Ping(context.Context) error {
	return nil
}

// Close is a no-op for mock client
func (m *MockClickHouseClient) Close() error {
	return nil
}
