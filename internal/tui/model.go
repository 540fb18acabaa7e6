// Package tui provides the BubbleTea kiosk display: a running clock, the
// day's prayer table and a countdown to the next prayer.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/daemon"
	"github.com/jmylchreest/adhan/internal/dbus"
	"github.com/jmylchreest/adhan/internal/schedule"
	"github.com/jmylchreest/adhan/internal/store"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeMain Mode = iota
	ModeHelp
)

// Daemon is the part of the adhand control interface the display uses.
type Daemon interface {
	Status(ctx context.Context) ([]byte, error)
	SetQuiet(ctx context.Context, enabled bool) error
	Reset(ctx context.Context) error
}

// Options configures the TUI.
type Options struct {
	Config          *config.Config
	Location        string
	Timetable       *store.Timetable
	BlackoutMinutes int
	StatePath       string // Used for quiet mode when Daemon is nil
	Daemon          Daemon
	Signals         <-chan dbus.AnnouncementSignal
	Now             func() time.Time
}

// Model is the main TUI model.
type Model struct {
	cfg       *config.Config
	location  string
	timetable *store.Timetable
	resolvers *daemon.ResolverCache
	blackout  int
	statePath string
	daemon    Daemon
	signals   <-chan dbus.AnnouncementSignal
	refreshCh <-chan store.ChangeEvent
	now       func() time.Time

	mode Mode
	help help.Model
	keys KeyMap

	clock      time.Time
	view       *schedule.View
	quiet      bool
	channel    *daemon.Status
	nowPlaying *dbus.AnnouncementSignal

	width  int
	height int
	ready  bool

	statusMsg string
	statusErr bool
}

// New creates a new TUI model.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := Model{
		cfg:       cfg,
		location:  opts.Location,
		timetable: opts.Timetable,
		resolvers: daemon.NewResolverCache(opts.Timetable, nil),
		blackout:  opts.BlackoutMinutes,
		statePath: opts.StatePath,
		daemon:    opts.Daemon,
		signals:   opts.Signals,
		now:       now,
		mode:      ModeMain,
		help:      help.New(),
		keys:      DefaultKeyMap(),
	}
	m.refreshCh = opts.Timetable.Subscribe()

	if m.daemon == nil && m.statePath != "" {
		if state, err := store.LoadSharedState(m.statePath); err == nil {
			m.quiet = state.Quiet
		}
	}
	m.refreshView(now())
	return m
}

type tickMsg time.Time

type refreshMsg struct{}

type daemonStatusMsg struct {
	status *daemon.Status
	err    error
}

type announcementMsg dbus.AnnouncementSignal

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// Init starts the clock and the watchers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		m.watchForChanges,
		m.watchSignals,
		m.fetchStatus,
	)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(untilNextSecond(m.now()), func(time.Time) tea.Msg {
		return tickMsg(m.now())
	})
}

// watchForChanges waits for the timetable to be reloaded.
func (m Model) watchForChanges() tea.Msg {
	if m.refreshCh == nil {
		return nil
	}
	if _, ok := <-m.refreshCh; !ok {
		return nil
	}
	return refreshMsg{}
}

func (m Model) watchSignals() tea.Msg {
	if m.signals == nil {
		return nil
	}
	sig, ok := <-m.signals
	if !ok {
		return nil
	}
	return announcementMsg(sig)
}

func (m Model) fetchStatus() tea.Msg {
	if m.daemon == nil || !m.cfg.TUI.ShowChannel {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := m.daemon.Status(ctx)
	if err != nil {
		return daemonStatusMsg{err: err}
	}
	var st daemon.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return daemonStatusMsg{err: err}
	}
	return daemonStatusMsg{status: &st}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		m.refreshView(now)
		cmds := []tea.Cmd{m.tick()}
		if now.Second()%5 == 0 {
			cmds = append(cmds, m.fetchStatus)
		}
		return m, tea.Batch(cmds...)

	case refreshMsg:
		m.refreshView(m.now())
		return m, m.watchForChanges

	case daemonStatusMsg:
		if msg.err != nil {
			m.channel = nil
			return m, nil
		}
		m.channel = msg.status
		m.quiet = msg.status.Quiet
		return m, nil

	case announcementMsg:
		sig := dbus.AnnouncementSignal(msg)
		if sig.Finished() {
			m.nowPlaying = nil
		} else {
			m.nowPlaying = &sig
		}
		return m, m.watchSignals

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	return m, nil
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeMain
		} else {
			m.mode = ModeHelp
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.mode = ModeMain
		return m, nil

	case key.Matches(msg, m.keys.Quiet):
		return m.toggleQuiet()

	case key.Matches(msg, m.keys.Reset):
		if m.daemon == nil {
			return m, status("adhand is not connected", true)
		}
		d := m.daemon
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.Reset(ctx); err != nil {
				return statusMsg{text: "Reset failed: " + err.Error(), isErr: true}
			}
			return statusMsg{text: "Audio channel reset"}
		}

	case key.Matches(msg, m.keys.Refresh):
		if err := m.timetable.Hydrate(); err != nil {
			return m, status("Reload failed: "+err.Error(), true)
		}
		m.refreshView(m.now())
		return m, status(fmt.Sprintf("Timetable reloaded (%d days)", m.timetable.Len()), false)
	}

	return m, nil
}

func (m Model) toggleQuiet() (tea.Model, tea.Cmd) {
	enabled := !m.quiet

	if m.daemon != nil {
		d := m.daemon
		m.quiet = enabled
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := d.SetQuiet(ctx, enabled); err != nil {
				return statusMsg{text: "Quiet mode failed: " + err.Error(), isErr: true}
			}
			return statusMsg{text: quietText(enabled)}
		}
	}

	if m.statePath == "" {
		return m, status("No state file configured", true)
	}
	state, err := store.LoadSharedState(m.statePath)
	if err != nil {
		return m, status("Quiet mode failed: "+err.Error(), true)
	}
	state.SetQuiet(enabled, store.QuietTriggerUser, quietText(enabled), "tui", m.now())
	if err := store.SaveSharedState(m.statePath, state); err != nil {
		return m, status("Quiet mode failed: "+err.Error(), true)
	}
	m.quiet = enabled
	return m, status(quietText(enabled), false)
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: text, isErr: isErr} }
}

func quietText(enabled bool) string {
	if enabled {
		return "Quiet mode on"
	}
	return "Quiet mode off"
}

// refreshView recomputes the schedule view for now.
func (m *Model) refreshView(now time.Time) {
	m.clock = now
	r, ok := m.resolvers.ResolverFor(now)
	if !ok {
		m.view = nil
		return
	}
	v := r.Describe(now, m.blackout)
	m.view = &v
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.mode == ModeHelp {
		return m.viewHelp()
	}
	return m.viewMain()
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	clockStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	currentStyle = lipgloss.NewStyle().Underline(true).Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	bannerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
)

func (m Model) viewMain() string {
	var b strings.Builder

	if m.location != "" {
		b.WriteString(titleStyle.Render(m.location) + "\n")
	}
	b.WriteString(clockStyle.Render(m.clock.Format(m.cfg.Display.ClockFormat)) + "\n")
	b.WriteString(dimStyle.Render(m.clock.Format(m.cfg.Display.DateFormat)) + "\n\n")

	if m.view == nil {
		b.WriteString(errorStyle.Render("No prayer times for today") + "\n")
	} else {
		b.WriteString(m.renderTable() + "\n")
		b.WriteString(m.renderNext() + "\n")
		if m.view.Blackout && m.cfg.TUI.ShowBlackout {
			b.WriteString("\n" + bannerStyle.Render("Congregation in progress") + "\n")
		}
	}

	if line := m.renderChannel(); line != "" {
		b.WriteString("\n" + line + "\n")
	}

	b.WriteString("\n")
	if m.statusMsg != "" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.statusMsg))
	} else if m.cfg.TUI.ShowHelp {
		b.WriteString(m.buildKeybindBar(m.width))
	}
	return b.String()
}

func (m Model) renderTable() string {
	var rows []string
	for _, e := range m.view.Prayers {
		name := fmt.Sprintf("%-8s", e.Label.String())
		var at string
		switch {
		case e.At != nil:
			at = e.At.Format(m.cfg.Display.TimeFormat)
		default:
			at = errorStyle.Render(e.Time + " (invalid)")
		}

		row := name + "  " + at
		if e.Current {
			row = currentStyle.Render(row)
		}
		rows = append(rows, "  "+row)
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderNext() string {
	next := m.view.Next
	left, ok := m.view.NextIn(m.clock)
	if !ok {
		return dimStyle.Render("Next: " + next.Label.String() + " tomorrow (no times yet)")
	}

	when := next.Instant.Format(m.cfg.Display.TimeFormat)
	if !next.IsToday {
		when = "tomorrow " + when
	}
	return fmt.Sprintf("Next: %s in %s %s", next.Label, formatCountdown(left), dimStyle.Render("("+when+")"))
}

func (m Model) renderChannel() string {
	var parts []string
	if m.quiet {
		parts = append(parts, "Quiet mode on")
	}
	if m.nowPlaying != nil {
		parts = append(parts, fmt.Sprintf("Playing %s (%s)", m.nowPlaying.Asset, m.nowPlaying.Priority))
	} else if m.channel != nil && !m.channel.Channel.Idle() {
		parts = append(parts, "Playing "+m.channel.Channel.CurrentAsset)
	}
	if !m.timetable.LoadedAt().IsZero() {
		parts = append(parts, dimStyle.Render("timetable loaded "+humanize.Time(m.timetable.LoadedAt())))
	}
	return strings.Join(parts, "  ")
}

func (m Model) viewHelp() string {
	s := titleStyle.MarginBottom(1).Render("Keyboard Shortcuts") + "\n\n"
	s += m.help.FullHelpView(m.keys.FullHelp()) + "\n\n"
	s += dimStyle.Render("Press ? or esc to return")
	return s
}

// buildKeybindBar builds a keybind bar that fits within the given width.
func (m Model) buildKeybindBar(width int) string {
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	binds := []key.Binding{m.keys.Quit, m.keys.Quiet, m.keys.Help, m.keys.Refresh, m.keys.Reset}

	const separator = "  "
	result, plain := "", ""
	for _, b := range binds {
		h := b.Help()
		item := h.Key + " " + h.Desc
		if width > 0 && len(plain)+len(separator)+len(item) > width {
			break
		}
		if result != "" {
			result += separator
			plain += separator
		}
		result += keyStyle.Render(h.Key) + " " + h.Desc
		plain += item
	}
	return dimStyle.Render(result)
}

// formatCountdown renders d as "3h 25m 10s", dropping leading zero units.
func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	mins := int(d % time.Hour / time.Minute)
	secs := int(d % time.Minute / time.Second)

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %02ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

func untilNextSecond(now time.Time) time.Duration {
	return now.Truncate(time.Second).Add(time.Second).Sub(now)
}

// Run starts the TUI.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
