package status

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bnema/itcsync/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

// stateOrder is the order states appear in the header tally.
var stateOrder = []domain.ConnectionState{
	domain.ConnectionAuthenticated,
	domain.ConnectionAwaitingTwoFactor,
	domain.ConnectionAuthError,
	domain.ConnectionNotAuthenticated,
	domain.ConnectionNotConfigured,
}

// tallyMsg carries the per-state project counts, computed before the view is
// drawn so the header can summarize every project.
type tallyMsg map[domain.ConnectionState]int

type model struct {
	statuses []domain.ProjectStatus
	opts     RenderOptions
	styles   styles
	header   string
	output   string
}

func newModel(statuses []domain.ProjectStatus, opts RenderOptions) model {
	sorted := slices.Clone(statuses)
	slices.SortStableFunc(sorted, func(a, b domain.ProjectStatus) int {
		return strings.Compare(string(a.Project.ID), string(b.Project.ID))
	})

	return model{
		statuses: sorted,
		opts:     opts,
		styles:   newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	statuses := m.statuses
	return func() tea.Msg {
		tally := tallyMsg{}
		for _, status := range statuses {
			tally[status.State]++
		}
		return tally
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tallyMsg:
		m.header = headerLine(len(m.statuses), msg)
		m.output = renderView(m.statuses, m.header, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

func headerLine(total int, tally tallyMsg) string {
	header := fmt.Sprintf("projects: %d", total)
	if total == 0 {
		return header
	}

	parts := make([]string, 0, len(tally))
	for _, state := range stateOrder {
		if n := tally[state]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, state.Label()))
		}
	}
	return header + " (" + strings.Join(parts, ", ") + ")"
}

// Render draws statuses sorted by project id.
func Render(statuses []domain.ProjectStatus, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(statuses, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
