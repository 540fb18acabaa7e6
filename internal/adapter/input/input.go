// Package input provides input adapters for timetable sources.
package input

import (
	"context"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// InputAdapter fetches timetable days from a source.
type InputAdapter interface {
	// Name returns the adapter identifier (e.g., "stdin", "file").
	Name() string

	// Import reads timetable days from the source.
	Import(ctx context.Context) ([]model.DailyPrayerTimes, error)
}

// NewAdapter creates an InputAdapter for source. "-" and "stdin" read
// standard input, anything else is a file path. Dates are interpreted in loc.
func NewAdapter(source string, loc *time.Location) (InputAdapter, error) {
	switch source {
	case "":
		return nil, &AdapterError{Source: source, Message: "no timetable source given"}
	case "-", "stdin":
		return NewStdinAdapter(loc), nil
	default:
		return NewFileAdapter(source, loc), nil
	}
}

// AdapterError represents an adapter-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
