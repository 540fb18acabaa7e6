package input

import (
	"context"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/store"
)

// maxInputSize bounds how much timetable data is read from one source.
const maxInputSize = 10 * 1024 * 1024

// StdinAdapter reads a timetable from standard input.
type StdinAdapter struct {
	reader io.Reader
	loc    *time.Location
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter(loc *time.Location) *StdinAdapter {
	return &StdinAdapter{reader: os.Stdin, loc: loc}
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader, loc *time.Location) *StdinAdapter {
	return &StdinAdapter{reader: r, loc: loc}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return "stdin"
}

// Import reads timetable days from standard input.
func (a *StdinAdapter) Import(ctx context.Context) ([]model.DailyPrayerTimes, error) {
	data, err := readAll(ctx, a.reader)
	if err != nil {
		return nil, &AdapterError{Source: "stdin", Message: "failed to read stdin", Err: err}
	}
	days, err := Parse(data, a.loc)
	if err != nil {
		return nil, &AdapterError{Source: "stdin", Message: "failed to parse timetable", Err: err}
	}
	return days, nil
}

// Parse decodes timetable data. Two layouts are accepted:
//  1. The timetable file document ({"days": [...]}, YAML or JSON)
//  2. A bare list of day entries, as produced by most prayer time exports
func Parse(data []byte, loc *time.Location) ([]model.DailyPrayerTimes, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var list []any
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		wrapped, err := yaml.Marshal(map[string]any{"days": list})
		if err != nil {
			return nil, err
		}
		data = wrapped
	}

	return store.ParseTimetable(data, loc)
}

func readAll(ctx context.Context, r io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxInputSize {
		return nil, errInputTooLarge
	}
	return data, nil
}
