package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOutput collects entries for assertions.
type memOutput struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (m *memOutput) Write(e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memOutput) Sync() error  { return nil }
func (m *memOutput) Close() error { return nil }

func (m *memOutput) all() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func TestSeverityFiltering(t *testing.T) {
	out := &memOutput{}
	logger := NewLogger(Config{Severity: WARN, Outputs: []Output{out}})

	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	entries := out.all()
	require.Len(t, entries, 2)
	assert.Equal(t, WARN, entries[0].Severity)
	assert.Equal(t, ERROR, entries[1].Severity)
}

func TestContextIDsPropagate(t *testing.T) {
	out := &memOutput{}
	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{out}})

	ctx := WithBatchID(WithRolloutID(context.Background(), "r-42"), "b-7")
	logger.Info(ctx, "inside rollout")

	entries := out.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "r-42", entries[0].RolloutID)
	assert.Equal(t, "b-7", entries[0].BatchID)
}

func TestDefaultFields(t *testing.T) {
	out := &memOutput{}
	logger := NewLogger(Config{
		Severity:      DEBUG,
		Outputs:       []Output{out},
		DefaultFields: map[string]interface{}{"component": "memory"},
	})

	logger.Info(context.Background(), "stored item")

	entries := out.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "memory", entries[0].Fields["component"])
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, DEBUG, ParseSeverity("DEBUG"))
	assert.Equal(t, ERROR, ParseSeverity("ERROR"))
	assert.Equal(t, INFO, ParseSeverity("bogus"))
}

func TestGetLoggerSingleton(t *testing.T) {
	a := GetLogger()
	b := GetLogger()
	assert.Same(t, a, b)
}
