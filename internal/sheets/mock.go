package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// MockWriter is an in-memory service.ForecastWriter for tests.
type MockWriter struct {
	WriteFunc       func(ctx context.Context, occurrences []model.Occurrence, summary *service.ForecastSummary) error
	LastSummary     *service.ForecastSummary
	LastOccurrences []model.Occurrence
	WriteCallCount  int
	mu              sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// WriteForecast records the call and delegates to WriteFunc when set.
func (m *MockWriter) WriteForecast(ctx context.Context, occurrences []model.Occurrence, summary *service.ForecastSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastOccurrences = occurrences
	m.LastSummary = summary

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, occurrences, summary)
	}
	return nil
}

// Calls returns how many times WriteForecast ran.
func (m *MockWriter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.WriteCallCount
}

var _ service.ForecastWriter = (*MockWriter)(nil)
