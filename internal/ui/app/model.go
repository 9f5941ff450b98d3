package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	attendancedto "geoattend/internal/modules/attendance/dto"
	"geoattend/internal/ui/components"
	"geoattend/internal/ui/theme"
	todayview "geoattend/internal/ui/views/today"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type trackerPort interface {
	Snapshot() attendancedto.SnapshotOutput
	Watch(ctx context.Context) <-chan attendancedto.SnapshotOutput
	Refresh()
}

// ─── async messages ───────────────────────────────────────────────────────────

type snapshotMsg struct {
	snap attendancedto.SnapshotOutput
}

type watchClosedMsg struct{}

// paletteCommands must stay in sync with the switch in executePalette.
var paletteCommands = []string{"refresh", "log", "help", "quit"}

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Refresh key.Binding
	Log     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Refresh: key.NewBinding(key.WithKeys("r", "c"), key.WithHelp("r", "check now")),
		Log:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "toggle log")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Log},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model of the tracker screen. It only renders
// snapshots pushed by the tracker; every decision is made behind the port.
type Model struct {
	tracker trackerPort
	updates <-chan attendancedto.SnapshotOutput

	snap      attendancedto.SnapshotOutput
	todayView todayview.Model
	showLog   bool
	detached  bool

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	spinner  spinner.Model
	status   string
	width    int
	height   int
}

// ─── constructor ─────────────────────────────────────────────────────────────

// NewModel subscribes to the tracker for the lifetime of ctx.
func NewModel(ctx context.Context, tracker trackerPort) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	m := Model{
		tracker:   tracker,
		updates:   tracker.Watch(ctx),
		todayView: todayview.New(),
		showLog:   true,
		keys:      defaultKeys(),
		help:      help.New(),
		palette:   components.NewPalette(paletteCommands...),
		spinner:   sp,
		status:    "ready",
	}
	m.apply(tracker.Snapshot())
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSnapshot(m.updates))
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The palette intercepts all input while open.
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.todayView, _ = m.todayView.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height - 10})
		return m, nil

	case snapshotMsg:
		m.apply(msg.snap)
		return m, waitForSnapshot(m.updates)

	case watchClosedMsg:
		m.detached = true
		m.status = "tracker stopped"
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m.refresh()
		case key.Matches(msg, m.keys.Log):
			m.showLog = !m.showLog
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Palette):
			return m, m.palette.Open()
		}
	}

	var cmd tea.Cmd
	if m.showLog {
		m.todayView, cmd = m.todayView.Update(msg)
	}
	return m, cmd
}

func (m *Model) apply(snap attendancedto.SnapshotOutput) {
	m.snap = snap
	m.todayView.SetLog(snap.Events, snap.EffectiveMinutes)
	switch {
	case snap.Err != "":
		m.status = snap.Err
	case !snap.UpdatedAt.IsZero():
		m.status = "updated " + snap.UpdatedAt.Local().Format("15:04:05")
	}
}

func (m Model) refresh() (tea.Model, tea.Cmd) {
	if m.detached {
		m.status = "tracker stopped"
		return m, nil
	}
	m.tracker.Refresh()
	m.status = "checking…"
	return m, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderHeader()
	statusBar := m.renderStatusBar()
	contentH := m.height - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < 1 {
		contentH = 1
	}

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	default:
		parts := []string{m.renderCard()}
		if m.showLog {
			parts = append(parts, m.todayView.View())
		}
		content = lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (m Model) renderHeader() string {
	office := m.snap.OfficeName
	if office == "" {
		office = "no office"
	}
	bar := "geoattend  " + theme.Muted.Render(m.snap.UserID+" @ "+office+"  "+m.snap.Day)
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderCard() string {
	var sb strings.Builder
	sb.WriteString(m.renderState() + "\n\n")
	if m.snap.DistanceText != "" {
		sb.WriteString(m.snap.DistanceText + "\n")
	}
	if m.snap.HasLocation {
		sb.WriteString(theme.Muted.Render(fmt.Sprintf("position %.5f, %.5f", m.snap.Latitude, m.snap.Longitude)) + "\n")
	} else {
		sb.WriteString(theme.Muted.Render("position unknown") + "\n")
	}
	sb.WriteString(fmt.Sprintf("office time today %s", theme.Hot.Render(todayview.FormatMinutes(m.snap.EffectiveMinutes))))
	if m.snap.Stale {
		sb.WriteString("\n" + theme.Failure.Render("showing last known state"))
	}
	style := theme.PaneActive
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}
	return style.Render(sb.String())
}

func (m Model) renderState() string {
	label := m.snap.Status
	if label == "" {
		label = "Unknown"
	}
	var styled string
	switch m.snap.State {
	case "IN_RANGE":
		styled = theme.InRange.Render("● " + label)
	case "OUT_OF_RANGE":
		styled = theme.OutOfRange.Render("○ " + label)
	default:
		styled = theme.Muted.Render("◌ " + label)
	}
	if m.snap.IsLoading {
		styled += "  " + m.spinner.View()
	}
	return styled
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.snap.Err != "" {
		left = theme.Failure.Render(m.snap.Err)
	}
	right := theme.Muted.Render("r:check  l:log  ?:help  :::palette  q:quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(input) == "" {
		return m, nil
	}
	switch strings.Fields(input)[0] {
	case "refresh":
		return m.refresh()
	case "log":
		m.showLog = !m.showLog
	case "help":
		m.showHelp = true
	case "quit":
		return m, tea.Quit
	default:
		m.status = "unknown command: " + input
	}
	return m, nil
}

// ─── async commands ───────────────────────────────────────────────────────────

func waitForSnapshot(ch <-chan attendancedto.SnapshotOutput) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return watchClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}
