// Package tui provides the interactive suggestion review screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloverfin/clover/internal/lifecycle"
	"github.com/cloverfin/clover/internal/model"
)

// keyMap defines the review screen key bindings.
type keyMap struct {
	Up             key.Binding
	Down           key.Binding
	Accept         key.Binding
	Dismiss        key.Binding
	DismissForever key.Binding
	Refresh        key.Binding
	Quit           key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Accept: key.NewBinding(
		key.WithKeys("a", "enter"),
		key.WithHelp("a", "accept"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "dismiss"),
	),
	DismissForever: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "never suggest"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// Messages.
type refreshedMsg struct {
	suggestions []model.RuleSuggestion
	total       int
}

type acceptedMsg struct {
	rule *model.CategoryRule
}

type errMsg struct {
	err error
}

// ReviewModel is the bubbletea model for reviewing rule suggestions.
type ReviewModel struct {
	ctx         context.Context
	manager     *lifecycle.Manager
	suggestions []model.RuleSuggestion
	spinner     spinner.Model
	status      string
	total       int
	cursor      int
	loading     bool
	quitting    bool
}

// NewReviewModel creates a review model bound to the lifecycle manager.
func NewReviewModel(ctx context.Context, manager *lifecycle.Manager) ReviewModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return ReviewModel{
		ctx:     ctx,
		manager: manager,
		spinner: sp,
		loading: true,
	}
}

// Init starts the first fetch.
func (m ReviewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refreshCmd())
}

func (m ReviewModel) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.manager.Refresh(m.ctx); err != nil {
			return errMsg{err: err}
		}
		return refreshedMsg{
			suggestions: m.manager.Suggestions(),
			total:       m.manager.TotalCorrections(),
		}
	}
}

func (m ReviewModel) acceptCmd(k model.SuggestionKey) tea.Cmd {
	return func() tea.Msg {
		rule, err := m.manager.Accept(m.ctx, k)
		if err != nil {
			return errMsg{err: err}
		}
		return acceptedMsg{rule: rule}
	}
}

// Update handles messages.
func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshedMsg:
		m.loading = false
		m.suggestions = msg.suggestions
		m.total = msg.total
		if m.cursor >= len(m.suggestions) {
			m.cursor = max(0, len(m.suggestions)-1)
		}
		return m, nil

	case acceptedMsg:
		m.status = fmt.Sprintf("Created rule #%d for %q", msg.rule.ID, msg.rule.Pattern)
		m.suggestions = m.manager.Suggestions()
		if m.cursor >= len(m.suggestions) {
			m.cursor = max(0, len(m.suggestions)-1)
		}
		return m, nil

	case errMsg:
		m.loading = false
		// The suggestion stays in the list; the user retries from here.
		m.status = "Error: " + msg.err.Error()
		return m, nil
	}

	return m, nil
}

func (m ReviewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.suggestions)-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.Refresh):
		m.loading = true
		return m, m.refreshCmd()

	case key.Matches(msg, keys.Accept):
		if s, ok := m.current(); ok {
			m.status = fmt.Sprintf("Accepting %q…", s.Pattern)
			return m, m.acceptCmd(s.Key())
		}

	case key.Matches(msg, keys.Dismiss):
		if s, ok := m.current(); ok {
			if err := m.manager.DismissForSession(s.Key()); err == nil {
				m.status = fmt.Sprintf("Dismissed %q for this session", s.Pattern)
				m.suggestions = m.manager.Suggestions()
				if m.cursor >= len(m.suggestions) {
					m.cursor = max(0, len(m.suggestions)-1)
				}
			}
		}

	case key.Matches(msg, keys.DismissForever):
		if s, ok := m.current(); ok {
			if err := m.manager.DismissPermanently(s.Key()); err != nil {
				m.status = "Error: " + err.Error()
			} else {
				m.status = fmt.Sprintf("Never suggesting %q again", s.Pattern)
				m.suggestions = m.manager.Suggestions()
				if m.cursor >= len(m.suggestions) {
					m.cursor = max(0, len(m.suggestions)-1)
				}
			}
		}
	}

	return m, nil
}

func (m ReviewModel) current() (model.RuleSuggestion, bool) {
	if m.cursor < 0 || m.cursor >= len(m.suggestions) {
		return model.RuleSuggestion{}, false
	}
	return m.suggestions[m.cursor], true
}

// View renders the review screen.
func (m ReviewModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Rule suggestions"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(
		fmt.Sprintf("%d suggestions · %d corrections in window", len(m.suggestions), m.total)))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " analysing corrections…\n")
		return b.String()
	}

	if len(m.suggestions) == 0 {
		b.WriteString(subtleStyle.Render("Nothing to suggest. Keep correcting categories and check back."))
		b.WriteString("\n")
	}

	for i, s := range m.suggestions {
		line := fmt.Sprintf("%-30q → %-16s %2d× %3.0f%% (%s)",
			s.Pattern, s.CategoryName, s.CorrectionCount, s.Confidence*100, s.MatchType)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if s, ok := m.current(); ok && len(s.SampleDescriptions) > 0 {
		b.WriteString("\n" + subtleStyle.Render("Evidence: "+strings.Join(s.SampleDescriptions, " · ")))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("a accept · d dismiss · x never suggest · r refresh · q quit"))
	b.WriteString("\n")

	return b.String()
}
