package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatConnections formats a list of connections as JSON
func (f *Formatter) FormatConnections(connections []ConnectionDTO) error {
	return f.encode(connections)
}

// FormatConnection formats a single connection as JSON
func (f *Formatter) FormatConnection(connection ConnectionDTO) error {
	return f.encode(connection)
}

// FormatResult formats a command result as JSON
func (f *Formatter) FormatResult(result ResultDTO) error {
	return f.encode(result)
}

// FormatDiff writes a timestamped header followed by the diff lines.
// An empty diff writes nothing.
func (f *Formatter) FormatDiff(at time.Time, diff string) error {
	if diff == "" {
		return nil
	}
	_, err := fmt.Fprintf(f.writer, "@@ %s\n%s", at.Format(time.RFC3339), diff)
	return err
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
