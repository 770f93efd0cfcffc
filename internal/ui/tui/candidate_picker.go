package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/klauern/rulebook/internal/model"
)

// ErrPickerCanceled is returned when the user quits the picker without
// confirming a selection.
var ErrPickerCanceled = errors.New("candidate selection canceled")

type candidatePickerKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	All     key.Binding
	Preview key.Binding
	Confirm key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultCandidatePickerKeyMap() candidatePickerKeyMap {
	return candidatePickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space", "toggle"),
		),
		All: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle all"),
		),
		Preview: key.NewBinding(
			key.WithKeys("p", "tab"),
			key.WithHelp("p", "preview"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

var candidatePickerStyles = struct {
	Title       lipgloss.Style
	Help        lipgloss.Style
	Item        lipgloss.Style
	Cursor      lipgloss.Style
	Description lipgloss.Style
	Status      lipgloss.Style
	Preview     lipgloss.Style
}{
	Title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1),
	Help:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Item:        lipgloss.NewStyle().Padding(0, 2),
	Cursor:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 2),
	Description: lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 6),
	Status:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1),
	Preview:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("241")).Padding(0, 1),
}

const previewHeight = 10

// CandidatePickerModel is the BubbleTea model for choosing which candidate
// rules are relevant to the current request.
type CandidatePickerModel struct {
	candidates  []model.Rule
	selected    map[int]bool
	cursor      int
	keys        candidatePickerKeyMap
	preview     viewport.Model
	showPreview bool
	showHelp    bool
	confirmed   bool
	quitting    bool
	width       int
	title       string
}

// NewCandidatePickerModel creates a picker over candidates, none selected.
func NewCandidatePickerModel(candidates []model.Rule, title string) CandidatePickerModel {
	if title == "" {
		title = "Select relevant rules"
	}
	m := CandidatePickerModel{
		candidates: candidates,
		selected:   make(map[int]bool),
		keys:       defaultCandidatePickerKeyMap(),
		preview:    viewport.New(80, previewHeight),
		width:      80,
		title:      title,
	}
	m.syncPreview()
	return m
}

// Init implements tea.Model.
func (m CandidatePickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m CandidatePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.preview.Width = max(msg.Width-4, 20)
		m.syncPreview()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.syncPreview()
			}

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.candidates)-1 {
				m.cursor++
				m.syncPreview()
			}

		case key.Matches(msg, m.keys.Toggle):
			if len(m.candidates) > 0 {
				m.selected[m.cursor] = !m.selected[m.cursor]
			}

		case key.Matches(msg, m.keys.All):
			all := len(m.Selected()) < len(m.candidates)
			for i := range m.candidates {
				m.selected[i] = all
			}

		case key.Matches(msg, m.keys.Preview):
			m.showPreview = !m.showPreview

		case key.Matches(msg, m.keys.Confirm):
			m.confirmed = true
			m.quitting = true
			return m, tea.Quit
		}
	}

	if m.showPreview {
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CandidatePickerModel) syncPreview() {
	if len(m.candidates) == 0 {
		m.preview.SetContent("")
		return
	}
	m.preview.SetContent(candidatePreview(m.candidates[m.cursor], m.preview.Width-2))
	m.preview.GotoTop()
}

// View implements tea.Model.
func (m CandidatePickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(candidatePickerStyles.Title.Render(m.title))
	b.WriteString("\n\n")

	if len(m.candidates) == 0 {
		b.WriteString(candidatePickerStyles.Item.Render("No candidate rules."))
		b.WriteString("\n")
	}

	for i, rule := range m.candidates {
		check := "[ ]"
		if m.selected[i] {
			check = "[x]"
		}
		label := fmt.Sprintf("%s %s", check, rule.QualifiedName())
		if i == m.cursor {
			b.WriteString(candidatePickerStyles.Cursor.Render("> " + label))
		} else {
			b.WriteString(candidatePickerStyles.Item.Render("  " + label))
		}
		b.WriteString("\n")
		if rule.Description != "" {
			b.WriteString(candidatePickerStyles.Description.Render(candidateLine(rule, max(m.width-8, 20))))
			b.WriteString("\n")
		}
	}

	if m.showPreview && len(m.candidates) > 0 {
		b.WriteString("\n")
		b.WriteString(candidatePickerStyles.Preview.Render(m.preview.View()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	status := fmt.Sprintf("%d of %d selected", len(m.Selected()), len(m.candidates))
	b.WriteString(candidatePickerStyles.Status.Render(status))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.renderFullHelp())
	} else {
		b.WriteString(m.renderShortHelp())
	}

	return b.String()
}

func (m CandidatePickerModel) renderShortHelp() string {
	keys := []string{"↑/↓ navigate", "space toggle", "enter confirm", "? help", "q quit"}
	return candidatePickerStyles.Help.Render(strings.Join(keys, " • "))
}

func (m CandidatePickerModel) renderFullHelp() string {
	help := `Navigation:
  ↑/k      Move up
  ↓/j      Move down

Selection:
  Space    Toggle rule
  a        Toggle all
  p        Preview rule body
  Enter    Confirm selection

General:
  ?        Toggle full help
  q/Esc    Quit without selecting`
	return candidatePickerStyles.Help.Render(help)
}

// Selected returns the selected candidates in their original order.
func (m CandidatePickerModel) Selected() []model.Rule {
	var out []model.Rule
	for i, rule := range m.candidates {
		if m.selected[i] {
			out = append(out, rule)
		}
	}
	return out
}

// Confirmed reports whether the user confirmed the selection.
func (m CandidatePickerModel) Confirmed() bool {
	return m.confirmed
}

// CandidatePicker asks the user which candidate rules apply. It satisfies
// the resolver's relevance judge interface.
type CandidatePicker struct {
	In  io.Reader
	Out io.Writer
	// Title overrides the picker heading.
	Title string
}

// Select runs the picker over candidates. Quitting without confirming
// returns ErrPickerCanceled.
func (p *CandidatePicker) Select(ctx context.Context, candidates []model.Rule, q model.QueryContext) ([]model.Rule, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	title := p.Title
	if title == "" {
		title = "Which rules apply"
		if paths := q.NormalizedPaths(); len(paths) > 0 {
			title += " to " + strings.Join(paths, ", ")
		}
		title += "?"
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	final, err := tea.NewProgram(NewCandidatePickerModel(candidates, title), opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("candidate picker: %w", err)
	}
	m, ok := final.(CandidatePickerModel)
	if !ok || !m.Confirmed() {
		return nil, ErrPickerCanceled
	}
	return m.Selected(), nil
}
