package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/adhan/internal/schedule"
)

// JSONFormatter formats days as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes the days as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, days []schedule.View) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(days)
}

// FormatSingle writes one day as a JSON object.
func (f *JSONFormatter) FormatSingle(w io.Writer, v schedule.View) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
