package logging

// LogEntry represents a structured log record.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Rollout-specific fields
	RolloutID string // The rollout this entry belongs to, if any
	BatchID   string // The parallel batch, if any

	// General structured data
	Fields map[string]interface{}
}
