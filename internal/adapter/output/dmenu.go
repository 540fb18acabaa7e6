package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/adhan/internal/schedule"
)

// DmenuFormatter formats one prayer per line for dmenu/rofi/fuzzel pickers.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	return &DmenuFormatter{opts: opts, template: newTemplate("dmenu", opts.Template)}
}

// Format writes every prayer of every day on its own line.
func (f *DmenuFormatter) Format(w io.Writer, days []schedule.View) error {
	for _, v := range days {
		for i := range v.Prayers {
			line := f.formatLine(entryData(v, i, f.opts))
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatLine formats a single prayer line.
func (f *DmenuFormatter) formatLine(data templateData) string {
	// Use custom template if available
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, data); err == nil {
			return buf.String()
		}
	}

	// Default format: date | label | time
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}
	return strings.Join([]string{data.Date, data.Label, data.Time}, sep)
}
