package input

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

var errInputTooLarge = fmt.Errorf("input larger than %d bytes", maxInputSize)

// FileAdapter reads a timetable from a file, typically one exported by a
// prayer time service.
type FileAdapter struct {
	path string
	loc  *time.Location
}

// NewFileAdapter creates a FileAdapter for path.
func NewFileAdapter(path string, loc *time.Location) *FileAdapter {
	return &FileAdapter{path: path, loc: loc}
}

// Name returns the adapter identifier.
func (a *FileAdapter) Name() string {
	return "file"
}

// Import reads timetable days from the file.
func (a *FileAdapter) Import(ctx context.Context) ([]model.DailyPrayerTimes, error) {
	f, err := os.Open(a.path)
	if err != nil {
		msg := "failed to open timetable"
		if errors.Is(err, os.ErrNotExist) {
			msg = "timetable file not found"
		}
		return nil, &AdapterError{Source: a.path, Message: msg, Err: err}
	}
	defer f.Close()

	data, err := readAll(ctx, f)
	if err != nil {
		return nil, &AdapterError{Source: a.path, Message: "failed to read timetable", Err: err}
	}
	days, err := Parse(data, a.loc)
	if err != nil {
		return nil, &AdapterError{Source: a.path, Message: "failed to parse timetable", Err: err}
	}
	return days, nil
}
