package today

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	attendancedto "geoattend/internal/modules/attendance/dto"
	"geoattend/internal/ui/theme"
)

// ─── model ───────────────────────────────────────────────────────────────────

// Model renders today's event log and the office time summary.
type Model struct {
	table   table.Model
	events  []attendancedto.EventOutput
	minutes int
	width   int
	height  int
}

func New() Model {
	t := table.New(
		table.WithColumns(columns(60)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Surface1).
		BorderBottom(true).
		Foreground(theme.Sapphire).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(theme.Base).Background(theme.Lavender)
	t.SetStyles(styles)
	return Model{table: t}
}

// SetLog replaces the rows with a fresh snapshot of the log.
func (m *Model) SetLog(events []attendancedto.EventOutput, effectiveMinutes int) {
	m.events = events
	m.minutes = effectiveMinutes
	rows := make([]table.Row, 0, len(events))
	for _, ev := range events {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", ev.Seq),
			ev.Status,
			ev.Timestamp.Local().Format("15:04:05"),
			fmt.Sprintf("%.5f, %.5f", ev.Latitude, ev.Longitude),
			ev.Device,
		})
	}
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
		m.table.SetColumns(columns(size.Width - 6))
		if h := size.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Today") + "\n")
	sb.WriteString(m.summary() + "\n\n")
	if len(m.events) == 0 {
		sb.WriteString(theme.Muted.Render("no check-ins yet"))
	} else {
		sb.WriteString(m.table.View())
	}
	style := theme.Pane
	if m.width > 4 {
		style = style.Width(m.width - 2)
	}
	return style.Render(sb.String())
}

func (m Model) summary() string {
	var first, last string
	for _, ev := range m.events {
		if ev.Status == "checkin" && first == "" {
			first = ev.Timestamp.Local().Format("15:04")
		}
		if ev.Status == "checkout" {
			last = ev.Timestamp.Local().Format("15:04")
		}
	}
	if first == "" {
		first = "-"
	}
	if last == "" {
		last = "-"
	}
	return fmt.Sprintf("first in %s   last out %s   office time %s",
		theme.Hot.Render(first), theme.Hot.Render(last), theme.Hot.Render(FormatMinutes(m.minutes)))
}

// FormatMinutes renders whole minutes as "3h 07m".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func columns(width int) []table.Column {
	if width < 60 {
		width = 60
	}
	device := width - 4 - 10 - 10 - 24 - 10
	if device < 8 {
		device = 8
	}
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Status", Width: 10},
		{Title: "Time", Width: 10},
		{Title: "Position", Width: 24},
		{Title: "Device", Width: device},
	}
}
