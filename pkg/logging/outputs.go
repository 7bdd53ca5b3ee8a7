package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleOutput formats logs for human readability.
type ConsoleOutput struct {
	mu     sync.Mutex
	writer io.Writer
	color  bool // Whether to use ANSI color codes
}

type ConsoleOutputOption func(*ConsoleOutput)

func WithColor(enabled bool) ConsoleOutputOption {
	return func(c *ConsoleOutput) {
		c.color = enabled
	}
}

func NewConsoleOutput(useStderr bool, opts ...ConsoleOutputOption) *ConsoleOutput {
	writer := os.Stdout
	if useStderr {
		writer = os.Stderr
	}

	c := &ConsoleOutput{
		writer: writer,
		color:  true, // Enable colors by default
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Helper function to get ANSI color codes for different severity levels.
func getSeverityColor(s Severity) string {
	switch s {
	case DEBUG:
		return "\033[37m" // Gray
	case INFO:
		return "\033[32m" // Green
	case WARN:
		return "\033[33m" // Yellow
	case ERROR:
		return "\033[31m" // Red
	case FATAL:
		return "\033[35m" // Magenta
	default:
		return ""
	}
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}

	var result string
	for k, v := range fields {
		// Previews and observations can be long; truncate for console display
		if k == "preview" || k == "observation" {
			str := fmt.Sprintf("%v", v)
			if len(str) > 100 {
				str = str[:97] + "..."
			}
			result += fmt.Sprintf("%s=%q ", k, str)
		} else {
			result += fmt.Sprintf("%s=%v ", k, v)
		}
	}

	return result
}

func (o *ConsoleOutput) Write(e LogEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	timestamp := time.Unix(0, e.Time).Format("2006-01-02 15:04:05.000")

	var levelColor, resetColor string
	if o.color {
		levelColor = getSeverityColor(e.Severity)
		resetColor = "\033[0m"
	}

	// Format for easy reading
	basic := fmt.Sprintf("%s %s%-5s%s [%s:%d] %s",
		timestamp,
		levelColor,
		e.Severity,
		resetColor,
		e.File,
		e.Line,
		e.Message,
	)

	if e.RolloutID != "" {
		basic += fmt.Sprintf(" [rollout=%s]", e.RolloutID)
	}
	if e.BatchID != "" {
		basic += fmt.Sprintf(" [batch=%s]", e.BatchID)
	}

	if len(e.Fields) > 0 {
		basic += " " + formatFields(e.Fields)
	}

	_, err := fmt.Fprintln(o.writer, basic)

	return err
}

func (o *ConsoleOutput) Sync() error {
	if syncer, ok := o.writer.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}

// Close cleans up any resources.
func (o *ConsoleOutput) Close() error {
	if closer, ok := o.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// FileOutput writes log entries as JSON lines, one entry per line.
type FileOutput struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileOutput opens (or creates) the log file in append mode.
func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{file: f}, nil
}

type fileEntry struct {
	Time      string                 `json:"time"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	File      string                 `json:"file"`
	Line      int                    `json:"line"`
	RolloutID string                 `json:"rollout_id,omitempty"`
	BatchID   string                 `json:"batch_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (o *FileOutput) Write(e LogEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := json.Marshal(fileEntry{
		Time:      time.Unix(0, e.Time).Format(time.RFC3339Nano),
		Severity:  e.Severity.String(),
		Message:   e.Message,
		File:      e.File,
		Line:      e.Line,
		RolloutID: e.RolloutID,
		BatchID:   e.BatchID,
		Fields:    e.Fields,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(o.file, string(data))
	return err
}

func (o *FileOutput) Sync() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Sync()
}

func (o *FileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Close()
}
