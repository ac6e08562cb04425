// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sprint/internal/app"
	"github.com/verte-zerg/sprint/internal/model"
	"github.com/verte-zerg/sprint/internal/session"
	"github.com/verte-zerg/sprint/internal/stats"
)

const (
	frameInterval = 100 * time.Millisecond
	keyQueueSize  = 64
	nameLimit     = 32
)

type phase int

const (
	phaseName phase = iota
	phaseReady
	phaseTyping
	phaseResults
)

// Runner runs a single scored test.
type Runner interface {
	Text() string
	TimeLimit() time.Duration
	RunTest(ctx context.Context, name string, keys session.KeySource, r session.Renderer) (app.Outcome, error)
}

type frameMsg time.Time

type finishedMsg struct {
	outcome app.Outcome
	err     error
}

var (
	acceptedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4D8FFF"))
	mismatchStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C0C0C0")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Model implements the Bubble Tea typing UI.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	runner Runner

	phase     phase
	nameInput textinput.Model
	nameErr   string
	name      string

	targetRunes []rune
	limit       time.Duration
	live        *liveView
	keys        *keyQueue

	outcome app.Outcome
	board   table.Model
	err     error
	aborted bool

	width  int
	height int
}

// NewModel constructs a typing TUI model. A non-empty name skips the prompt.
func NewModel(ctx context.Context, runner Runner, name string) *Model {
	ctx, cancel := context.WithCancel(ctx)
	m := &Model{
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		targetRunes: []rune(runner.Text()),
		limit:       runner.TimeLimit(),
		live:        newLiveView(),
		keys:        newKeyQueue(keyQueueSize),
	}
	m.nameInput = newNameInput()
	if name = strings.TrimSpace(name); name != "" {
		m.name = name
		m.phase = phaseReady
	} else {
		m.nameInput.Focus()
	}
	return m
}

func newNameInput() textinput.Model {
	input := textinput.New()
	input.Prompt = "Name: "
	input.Placeholder = "your name"
	input.CharLimit = nameLimit
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// Err returns the error that ended the program, if any.
func (m *Model) Err() error {
	return m.err
}

// Aborted reports whether the test was cancelled before it finished.
func (m *Model) Aborted() bool {
	return m.aborted
}

// Outcome returns the scored result once the test has finished.
func (m *Model) Outcome() app.Outcome {
	return m.outcome
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.phase == phaseName {
		return textinput.Blink
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.phase == phaseResults {
			m.board.SetWidth(m.contentWidth())
		}
		return m, nil
	case frameMsg:
		if m.phase != phaseTyping {
			return m, nil
		}
		return m, frameTick()
	case finishedMsg:
		return m.finish(msg)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.phase == phaseTyping {
				m.aborted = true
			}
			m.cancel()
			return m, tea.Quit
		}
		switch m.phase {
		case phaseName:
			return m.updateName(msg)
		case phaseReady:
			if msg.Type == tea.KeyEnter {
				return m.start()
			}
			return m, nil
		case phaseTyping:
			m.handleKey(msg)
			return m, nil
		case phaseResults:
			if msg.Type == tea.KeyEnter {
				m.cancel()
				return m, tea.Quit
			}
			var cmd tea.Cmd
			m.board, cmd = m.board.Update(msg)
			return m, cmd
		}
	}
	if m.phase == phaseName {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			m.nameErr = "Name must not be empty."
			return m, nil
		}
		m.name = name
		m.nameErr = ""
		m.nameInput.Blur()
		m.phase = phaseReady
		return m, nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

func (m *Model) start() (tea.Model, tea.Cmd) {
	m.phase = phaseTyping
	ctx, name, runner, keys, live := m.ctx, m.name, m.runner, m.keys, m.live
	run := func() tea.Msg {
		outcome, err := runner.RunTest(ctx, name, keys, live)
		return finishedMsg{outcome: outcome, err: err}
	}
	return m, tea.Batch(run, frameTick())
}

func (m *Model) handleKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeySpace:
		m.keys.push(' ')
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.keys.push(r)
		}
	}
}

func (m *Model) finish(msg finishedMsg) (tea.Model, tea.Cmd) {
	m.outcome = msg.outcome
	if msg.err != nil {
		m.err = msg.err
		if errors.Is(msg.err, context.Canceled) {
			m.aborted = true
		}
		return m, tea.Quit
	}
	m.phase = phaseResults
	m.board = buildBoardTable(m.outcome.Leaderboard, m.name, m.contentWidth())
	return m, nil
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.phase {
	case phaseName:
		content = m.viewName()
	case phaseReady:
		content = m.viewReady()
	case phaseTyping:
		content = m.viewTyping()
	case phaseResults:
		content = m.viewResults()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := ""
	if m.phase == phaseTyping {
		footer = m.renderFooter(m.live.snapshot())
	}
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	w := int(float64(m.width) * 0.70)
	if w < 1 {
		w = 1
	}
	return w
}

func (m *Model) viewName() string {
	lines := []string{
		headerStyle.Render("Typing speed test"),
		"",
		m.nameInput.View(),
	}
	if m.nameErr != "" {
		lines = append(lines, errorStyle.Render(m.nameErr))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) viewReady() string {
	seconds := int(m.limit / time.Second)
	return strings.Join([]string{
		headerStyle.Render(fmt.Sprintf("Hi, %s!", m.name)),
		"",
		fmt.Sprintf("Type the passage as fast as you can. You have %d seconds.", seconds),
		"A wrong key does not move the cursor.",
		"",
		footerStyle.Render("Press Enter to start."),
	}, "\n")
}

func (m *Model) viewTyping() string {
	snap := m.live.snapshot()
	styled := buildStyledRunes(m.targetRunes, snap.cursor, snap.mismatchAt)
	width := m.contentWidth()
	if width == 0 {
		return renderStyledRunes(styled)
	}
	return lipgloss.NewStyle().Width(width).Render(wrapStyledRunes(styled, width))
}

func (m *Model) renderFooter(snap liveSnapshot) string {
	progress := 0
	if len(m.targetRunes) > 0 {
		progress = int(float64(snap.cursor) / float64(len(m.targetRunes)) * 100)
	}
	segments := []string{
		fmt.Sprintf("Elapsed %ds / %ds", int(snap.elapsed/time.Second), int(m.limit/time.Second)),
		fmt.Sprintf("Progress %d%%", progress),
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) viewResults() string {
	res := m.outcome.Result
	wpm, acc := stats.SessionMetrics(res.Typed, res.Mistakes, res.Elapsed)
	status := "Time is up."
	if res.Completed {
		status = "Passage complete."
	}
	summary := fmt.Sprintf("%d chars/min · %.1f WPM · %.1f%% accuracy · %d/%d chars in %.1fs",
		res.CPM, wpm, acc*100, res.Typed, len(m.targetRunes), res.Elapsed.Seconds())
	return strings.Join([]string{
		headerStyle.Render(status),
		summary,
		"",
		m.board.View(),
		"",
		footerStyle.Render("Press Enter to continue."),
	}, "\n")
}

func buildBoardTable(ranked []model.ScoreRecord, highlight string, width int) table.Model {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Name", Width: nameLimit},
		{Title: "Chars/min", Width: 10},
	}
	rows := make([]table.Row, 0, len(ranked))
	selected := 0
	for i, rec := range ranked {
		if rec.Name == highlight {
			selected = i
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			rec.Name,
			fmt.Sprintf("%d", rec.Score),
		})
	}
	height := len(rows)
	if height > 10 {
		height = 10
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height)),
		table.WithFocused(true),
	)
	if width > 0 {
		t.SetWidth(width)
	}
	t.SetStyles(boardStyles())
	t.SetCursor(selected)
	return t
}

func boardStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(acceptedStyle.GetForeground()).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
