package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type syncDoneMsg struct {
	err error
}

// syncProgressMsg replaces the spinner label while work is running.
type syncProgressMsg string

type syncSpinnerModel struct {
	spinner   spinner.Model
	label     string
	startedAt time.Time
	elapsed   lipgloss.Style
	work      tea.Cmd
	err       error
	done      bool
}

func newSyncSpinnerModel(label string, work tea.Cmd) syncSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("39"))),
	)

	return syncSpinnerModel{
		spinner:   s,
		label:     label,
		startedAt: time.Now(),
		elapsed:   lipgloss.NewStyle().Faint(true),
		work:      work,
	}
}

func (m syncSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.work)
}

func (m syncSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case syncProgressMsg:
		m.label = string(msg)
		return m, nil
	case syncDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m syncSpinnerModel) View() string {
	if m.done {
		return ""
	}

	elapsed := time.Since(m.startedAt).Truncate(time.Second)
	return fmt.Sprintf("%s %s %s", m.spinner.View(), m.label, m.elapsed.Render(elapsed.String()))
}

// runSyncSpinner runs work behind a spinner on output. work reports progress
// through the callback it receives; the label shown is the latest report.
func runSyncSpinner(ctx context.Context, output io.Writer, label string, work func(ctx context.Context, progress func(string)) error) error {
	var p *tea.Program
	progress := func(text string) {
		p.Send(syncProgressMsg(text))
	}
	workCmd := func() tea.Msg {
		return syncDoneMsg{err: work(ctx, progress)}
	}

	p = tea.NewProgram(
		newSyncSpinnerModel(label, workCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(syncSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
