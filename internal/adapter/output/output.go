// Package output provides output formatters for prayer timetables.
package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/adhan/internal/schedule"
	"github.com/jmylchreest/adhan/internal/store"
)

// Formatter formats timetable days for output.
type Formatter interface {
	// Format writes the formatted days to the writer.
	Format(w io.Writer, days []schedule.View) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatTable FormatType = "table"
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatDmenu FormatType = "dmenu"
)

// ParseFormatType parses a format name. Empty means table.
func ParseFormatType(s string) (FormatType, error) {
	switch f := FormatType(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatPlain, FormatJSON, FormatDmenu:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, plain, json or dmenu)", s)
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatPlain:
		opts.Plain = true
		return NewTableFormatter(opts)
	case FormatTable:
		fallthrough
	default:
		return NewTableFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template   string // Custom per-prayer template for table/dmenu output
	TimeFormat string // Go layout for prayer times
	DateFormat string // Go layout for day headings
	Separator  string // Field separator for dmenu format
	Plain      bool   // No current-prayer marker or blackout line
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		TimeFormat: "3:04 PM",
		DateFormat: "Monday, 2 January 2006",
		Separator:  " | ",
	}
}

// templateData provides data for custom templates.
type templateData struct {
	Index   int    // 1-based prayer number within the day
	Date    string // Day heading, in DateFormat
	Label   string
	Time    string // Resolved time in TimeFormat, or the raw value
	Raw     string // As written in the timetable
	Current bool
	Error   string
}

func newTemplate(name, text string) *template.Template {
	if text == "" {
		return nil
	}
	tmpl, err := template.New(name).Funcs(templateFuncs()).Parse(text)
	if err != nil {
		return nil
	}
	return tmpl
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"pad": func(n int, s string) string {
			if len(s) >= n {
				return s
			}
			return s + strings.Repeat(" ", n-len(s))
		},
	}
}

func entryData(v schedule.View, i int, opts FormatterOptions) templateData {
	e := v.Prayers[i]
	return templateData{
		Index:   i + 1,
		Date:    dayHeading(v.Date, opts.DateFormat),
		Label:   e.Label.String(),
		Time:    entryTime(e, opts.TimeFormat),
		Raw:     e.Time,
		Current: e.Current,
		Error:   e.Error,
	}
}

// entryTime renders the resolved time, falling back to the raw value.
func entryTime(e schedule.Entry, layout string) string {
	switch {
	case e.At != nil:
		return e.At.Format(layout)
	case e.Error != "":
		return e.Time + " (invalid)"
	default:
		return e.Time
	}
}

func dayHeading(date, layout string) string {
	d, err := time.Parse(store.DateLayout, date)
	if err != nil || layout == "" {
		return date
	}
	return d.Format(layout)
}
