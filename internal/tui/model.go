// Package tui is the terminal judging interface: it shows one blind
// comparison at a time, records the operator's preference and exports the
// run once every comparison is judged.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/export"
)

// Exporter resolves and persists a judged run.
type Exporter interface {
	ResolveAndExport(ctx context.Context, run *domain.ArenaRun, op domain.Operator) (*export.Result, error)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	questionStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	answerStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	chosenStyle   = answerStyle.BorderForeground(lipgloss.Color("#4CAF50"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
)

const defaultWidth = 100

// Model is the Bubble Tea model for one judgment session.
type Model struct {
	ctx      context.Context
	session  *arena.Session
	exporter Exporter
	operator domain.Operator

	keys     keyMap
	help     help.Model
	progress progress.Model
	width    int

	status    string
	err       error
	exporting bool
	result    *export.Result
	quitting  bool
}

// NewModel builds a model over session. ctx bounds the export call.
func NewModel(ctx context.Context, session *arena.Session, exporter Exporter, op domain.Operator) Model {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = defaultWidth / 2
	return Model{
		ctx:      ctx,
		session:  session,
		exporter: exporter,
		operator: op,
		keys:     defaultKeyMap(),
		help:     help.New(),
		progress: p,
		width:    defaultWidth,
	}
}

// Result returns the export result once the run has been exported.
func (m Model) Result() *export.Result { return m.result }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

type exportDoneMsg struct {
	result *export.Result
	err    error
}

// Update handles key presses and export completion.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = max(msg.Width/2, 10)
		return m, nil

	case exportDoneMsg:
		m.exporting = false
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.result = msg.result
		m.err = nil
		m.status = fmt.Sprintf("exported %d judgments to %s", len(msg.result.Records), msg.result.Filename)
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.exporting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.PreferLeft):
		m.record(domain.JudgmentA)
	case key.Matches(msg, m.keys.PreferRight):
		m.record(domain.JudgmentB)
	case key.Matches(msg, m.keys.Both):
		m.record(domain.JudgmentBoth)
	case key.Matches(msg, m.keys.Neither):
		m.record(domain.JudgmentNeither)
	case key.Matches(msg, m.keys.Previous):
		m.session.Previous()
	case key.Matches(msg, m.keys.Next):
		m.session.Next()
	case key.Matches(msg, m.keys.Export):
		if !m.session.IsComplete() {
			judged, total := m.session.Progress()
			m.err = fmt.Errorf("%w: %d of %d judged", export.ErrIncompleteJudgment, judged, total)
			return m, nil
		}
		m.exporting = true
		m.err = nil
		m.status = "exporting..."
		return m, m.exportCmd()
	}
	return m, nil
}

func (m *Model) record(j domain.Judgment) {
	if err := m.session.RecordJudgment(j); err != nil {
		m.err = err
		return
	}
	m.err = nil
	if m.session.IsComplete() {
		m.status = "all comparisons judged; press e to export"
	} else {
		m.status = ""
	}
}

func (m Model) exportCmd() tea.Cmd {
	ctx, run, op, exporter := m.ctx, m.session.Snapshot(), m.operator, m.exporter
	return func() tea.Msg {
		res, err := exporter.ResolveAndExport(ctx, run, op)
		return exportDoneMsg{result: res, err: err}
	}
}

// View renders the current comparison.
func (m Model) View() string {
	if m.quitting {
		if m.status != "" {
			return statusStyle.Render(m.status) + "\n"
		}
		return ""
	}

	judged, total := m.session.Progress()
	var b strings.Builder
	b.WriteString(titleStyle.Render("Arena"))
	b.WriteString(statusStyle.Render(fmt.Sprintf("  %d/%d judged", judged, total)))
	b.WriteString("\n")
	if total > 0 {
		b.WriteString(m.progress.ViewAs(float64(judged) / float64(total)))
	}
	b.WriteString("\n\n")

	if failures := m.session.Snapshot().Failures; len(failures) > 0 {
		for _, f := range failures {
			b.WriteString(warnStyle.Render(fmt.Sprintf("backend %s failed: %s", f.Backend, f.Message)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	unit, ok := m.session.Current()
	if !ok {
		b.WriteString("No questions were generated for this document.\n\n")
	} else {
		b.WriteString(questionStyle.Render(fmt.Sprintf("Q%d. %s", m.session.CurrentIndex()+1, unit.Question)))
		b.WriteString("\n")
		b.WriteString(m.renderAnswers(unit))
		b.WriteString("\n")
		if unit.IsJudged() {
			b.WriteString(statusStyle.Render("judgment: " + judgmentText(unit.Judgment)))
			b.WriteString("\n")
		}
	}

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(errorText(m.err)))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderAnswers(u domain.ComparisonUnit) string {
	colWidth := max((m.width-6)/2, 20)
	left, right := answerStyle, answerStyle
	switch u.Judgment {
	case domain.JudgmentA:
		left = chosenStyle
	case domain.JudgmentB:
		right = chosenStyle
	case domain.JudgmentBoth:
		left, right = chosenStyle, chosenStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		left.Width(colWidth).Render("Answer A\n\n"+u.AnswerLeft),
		right.Width(colWidth).Render("Answer B\n\n"+u.AnswerRight),
	)
}

func judgmentText(j domain.Judgment) string {
	switch j {
	case domain.JudgmentA:
		return "left is better"
	case domain.JudgmentB:
		return "right is better"
	case domain.JudgmentBoth:
		return "both are good"
	case domain.JudgmentNeither:
		return "neither is good"
	default:
		return "none"
	}
}

func errorText(err error) string {
	if errors.Is(err, export.ErrPersistence) {
		return "export failed, press e to retry: " + err.Error()
	}
	return err.Error()
}
