package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
)

var testDay = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

// testViews returns 19 October at 13:20 (Zuhr current, in blackout) and
// a bare 20 October.
func testViews() []schedule.View {
	today := model.NewDailyPrayerTimes(testDay, "5:30", "1:15", "4:45", "7:10", "8:30")
	tomorrow := model.NewDailyPrayerTimes(testDay.AddDate(0, 0, 1), "5:32", "1:15", "4:43", "7:08", "bad")

	now := testDay.Add(13*time.Hour + 20*time.Minute)
	return []schedule.View{
		schedule.NewResolver(today, &tomorrow).Describe(now, 13),
		schedule.NewResolver(tomorrow, nil).Describe(testDay.AddDate(0, 0, 1), 13),
	}
}

func TestParseFormatType(t *testing.T) {
	tests := []struct {
		input   string
		want    FormatType
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"PLAIN", FormatPlain, false},
		{"json", FormatJSON, false},
		{" dmenu ", FormatDmenu, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormatType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(FormatTable, DefaultFormatterOptions()).Format(&buf, testViews())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Monday, 19 October 2026\n")
	assert.Contains(t, out, "  Fajr     5:30 AM\n")
	assert.Contains(t, out, "> Zuhr     1:15 PM\n")
	assert.Contains(t, out, "Congregation in progress\n")
	assert.Contains(t, out, "\n\nTuesday, 20 October 2026\n")
	assert.Contains(t, out, "  Isha     bad (invalid)\n")
}

func TestTableFormatter_Plain(t *testing.T) {
	var buf bytes.Buffer
	err := NewFormatter(FormatPlain, DefaultFormatterOptions()).Format(&buf, testViews()[:1])
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "  Zuhr     1:15 PM\n")
	assert.NotContains(t, out, ">")
	assert.NotContains(t, out, "Congregation")
}

func TestTableFormatter_CustomTemplate(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.Template = `{{pad 8 .Label}}{{.Raw}}{{if .Current}} *{{end}}`
	opts.TimeFormat = "15:04"

	var buf bytes.Buffer
	require.NoError(t, NewTableFormatter(opts).Format(&buf, testViews()[:1]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "Monday, 19 October 2026", lines[0])
	assert.Equal(t, "Zuhr    1:15 *", lines[2])
	assert.Equal(t, "Isha    8:30", lines[5])
}

func TestDmenuFormatter_Format(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.DateFormat = "Mon 2 Jan"

	var buf bytes.Buffer
	require.NoError(t, NewDmenuFormatter(opts).Format(&buf, testViews()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "Mon 19 Oct | Fajr | 5:30 AM", lines[0])
	assert.Equal(t, "Tue 20 Oct | Maghrib | 7:08 PM", lines[8])
}

func TestDmenuFormatter_CustomTemplate(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index}}: {{upper .Label}} {{.Time}}"

	var buf bytes.Buffer
	require.NoError(t, NewDmenuFormatter(opts).Format(&buf, testViews()[:1]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "3: ASR 4:45 PM", lines[2])
}

func TestDmenuFormatter_BadTemplateFallsBack(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.Template = "{{.Missing"
	opts.Separator = "\t"

	var buf bytes.Buffer
	require.NoError(t, NewDmenuFormatter(opts).Format(&buf, testViews()[:1]))
	assert.True(t, strings.HasPrefix(buf.String(), "Monday, 19 October 2026\tFajr\t5:30 AM\n"))
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).Format(&buf, testViews()))

	var decoded []schedule.View
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "2026-10-19", decoded[0].Date)
	assert.Equal(t, model.Zuhr, decoded[0].Current.Label)
	assert.True(t, decoded[0].Blackout)
}

func TestJSONFormatter_FormatSingle(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).FormatSingle(&buf, testViews()[1]))
	assert.Contains(t, buf.String(), `"date": "2026-10-20"`)
}
