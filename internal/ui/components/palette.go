package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"geoattend/internal/ui/theme"
)

// PaletteSubmitMsg carries the trimmed command line after enter.
type PaletteSubmitMsg struct{ Input string }

// PaletteCancelMsg reports that the palette was dismissed with esc.
type PaletteCancelMsg struct{}

const maxSuggestions = 4

var (
	paletteBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Lavender).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	suggestionStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
)

// Palette is the ':' prompt of the tracker screen. It knows the tracker
// commands only as strings; the caller decides what each one does.
type Palette struct {
	input    textinput.Model
	commands []string
	visible  bool
	width    int
}

func NewPalette(commands ...string) Palette {
	ti := textinput.New()
	ti.Prompt = ": "
	ti.Placeholder = strings.Join(commands, " | ")
	ti.CharLimit = 64
	return Palette{input: ti, commands: commands}
}

func (p Palette) Visible() bool { return p.visible }

// Open shows an empty prompt and returns the cursor blink command.
func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.input.Reset()
	return p.input.Focus()
}

func (p *Palette) SetWidth(w int) { p.width = w }

func (p *Palette) close() {
	p.visible = false
	p.input.Blur()
}

// Suggestions lists the commands starting with the first word typed so far.
func (p Palette) Suggestions() []string {
	word := strings.ToLower(strings.TrimSpace(p.input.Value()))
	if i := strings.IndexByte(word, ' '); i >= 0 {
		word = word[:i]
	}
	var out []string
	for _, c := range p.commands {
		if strings.HasPrefix(c, word) {
			out = append(out, c)
		}
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			p.close()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case "enter":
			line := strings.TrimSpace(p.input.Value())
			p.close()
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: line} }
		case "tab":
			if s := p.Suggestions(); len(s) > 0 {
				p.input.SetValue(s[0])
				p.input.CursorEnd()
			}
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	lines := []string{theme.Title.Render("Tracker"), p.input.View()}
	suggestions := p.Suggestions()
	if len(suggestions) == 0 && strings.TrimSpace(p.input.Value()) != "" {
		lines = append(lines, theme.Failure.Render("no such command"))
	}
	for _, s := range suggestions {
		lines = append(lines, suggestionStyle.Render("  "+s))
	}

	w := p.width
	if w < 20 {
		w = 48
	}
	return paletteBox.Width(w - 2).Render(strings.Join(lines, "\n"))
}
