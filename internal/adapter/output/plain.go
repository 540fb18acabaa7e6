package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/adhan/internal/schedule"
)

// TableFormatter formats days as aligned text, one block per day.
type TableFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(opts FormatterOptions) *TableFormatter {
	return &TableFormatter{opts: opts, template: newTemplate("table", opts.Template)}
}

// Format writes each day as a heading followed by its prayers.
func (f *TableFormatter) Format(w io.Writer, days []schedule.View) error {
	for i, v := range days {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := f.formatDay(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *TableFormatter) formatDay(w io.Writer, v schedule.View) error {
	var sb strings.Builder
	sb.WriteString(dayHeading(v.Date, f.opts.DateFormat) + "\n")

	for i := range v.Prayers {
		data := entryData(v, i, f.opts)

		// Use custom template if available
		if f.template != nil {
			if err := f.template.Execute(&sb, data); err != nil {
				return err
			}
			sb.WriteString("\n")
			continue
		}

		marker := " "
		if data.Current && !f.opts.Plain {
			marker = ">"
		}
		sb.WriteString(fmt.Sprintf("%s %-8s %s\n", marker, data.Label, data.Time))
	}

	if v.Blackout && !f.opts.Plain {
		sb.WriteString("Congregation in progress\n")
	}

	_, err := w.Write([]byte(sb.String()))
	return err
}
