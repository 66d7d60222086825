// Package shell is the Bubble Tea model behind cmd/pgnative-shell: an
// interactive REPL over one pgnative.Session, using the bubbletea.Model
// shape, manual cursor-tracked text input, and $EDITOR round-trip, wired
// directly to this module's own Session.Query.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mickamy/pgnative"
	"github.com/mickamy/pgnative/highlight"
	"github.com/mickamy/pgnative/internal/detect"
)

// alertSink collects N+1 alerts from Session.WatchNPlus1's synchronous
// callback (fired on whatever goroutine is running the query, i.e. one of
// Bubble Tea's Cmd goroutines) so the next queryResultMsg can carry them
// into the model without the callback touching Model directly.
type alertSink struct {
	mu     sync.Mutex
	alerts []detect.Alert
}

func (a *alertSink) push(alert detect.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
}

func (a *alertSink) drain() []detect.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.alerts
	a.alerts = nil
	return out
}

// historyEntry is one executed statement, kept for the scrollback view.
type historyEntry struct {
	sql      string
	err      error
	rowCount int
	tag      string
	duration time.Duration
}

// Model is the Bubble Tea model for pgnative-shell.
type Model struct {
	session *pgnative.Session
	sink    *alertSink

	input  string
	cursor int

	submitted  []string // input texts, most recent last
	submitIdx  int       // browsing position into submitted; len(submitted) means "editing fresh"

	history []historyEntry
	alerts  []detect.Alert

	width, height int
	quitting      bool
}

// New returns a Model ready to drive session.
func New(session *pgnative.Session) Model {
	sink := &alertSink{}
	session.WatchNPlus1(sink.push)
	return Model{session: session, sink: sink}
}

func (m Model) Init() tea.Cmd {
	return nil
}

type queryResultMsg struct {
	sql      string
	result   *pgnative.ExecResult
	err      error
	duration time.Duration
	alerts   []detect.Alert
}

func runQuery(session *pgnative.Session, sink *alertSink, sql string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		res, err := session.Query(context.Background(), sql)
		return queryResultMsg{
			sql:      sql,
			result:   res,
			err:      err,
			duration: time.Since(start),
			alerts:   sink.drain(),
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case queryResultMsg:
		entry := historyEntry{sql: msg.sql, err: msg.err, duration: msg.duration}
		if msg.err == nil && msg.result != nil {
			entry.tag = msg.result.CommandTag
			if msg.result.Rows != nil {
				entry.rowCount = msg.result.Rows.Len()
			} else {
				entry.rowCount = int(msg.result.RowsAffected)
			}
		}
		m.history = append(m.history, entry)
		m.alerts = append(m.alerts, msg.alerts...)
		return m, nil

	case editorResultMsg:
		if editorErr := msg.err; editorErr != nil {
			m.history = append(m.history, historyEntry{err: editorErr})
			return m, nil
		}
		m.input = msg.query
		m.cursor = len([]rune(m.input))
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+e":
		return m, openEditor(m.input)

	case "enter":
		sql := strings.TrimSpace(m.input)
		if sql == "" {
			return m, nil
		}
		m.submitted = append(m.submitted, m.input)
		m.submitIdx = len(m.submitted)
		m.input = ""
		m.cursor = 0
		return m, runQuery(m.session, m.sink, sql)

	case "up":
		if m.submitIdx > 0 {
			m.submitIdx--
			m.input = m.submitted[m.submitIdx]
			m.cursor = len([]rune(m.input))
		}
		return m, nil

	case "down":
		if m.submitIdx < len(m.submitted) {
			m.submitIdx++
		}
		if m.submitIdx == len(m.submitted) {
			m.input = ""
		} else {
			m.input = m.submitted[m.submitIdx]
		}
		m.cursor = len([]rune(m.input))
		return m, nil

	case "left":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "right":
		if m.cursor < len([]rune(m.input)) {
			m.cursor++
		}
		return m, nil

	case "backspace":
		runes := []rune(m.input)
		if m.cursor > 0 && m.cursor <= len(runes) {
			m.input = string(runes[:m.cursor-1]) + string(runes[m.cursor:])
			m.cursor--
		}
		return m, nil

	default:
		if len(msg.Runes) > 0 {
			runes := []rune(m.input)
			m.input = string(runes[:m.cursor]) + string(msg.Runes) + string(runes[m.cursor:])
			m.cursor += len(msg.Runes)
		}
		return m, nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := lipgloss.NewStyle().Bold(true).Render("pgnative-shell")
	status := fmt.Sprintf(" [%s] pid=%d", m.session.State(), m.session.BackendPID())
	header := title + status
	if m.width > 0 {
		header = padRight(header, m.width)
	}
	fmt.Fprintln(&b, header)
	fmt.Fprintln(&b)

	for _, h := range m.history {
		fmt.Fprintln(&b, highlight.SQL(truncate(h.sql, 100)))
		switch {
		case h.err != nil:
			fmt.Fprintln(&b, friendlyError(h.err))
		case h.tag != "":
			fmt.Fprintf(&b, "%s (%s)\n", h.tag, padLeft(formatDuration(h.duration), 8))
		default:
			fmt.Fprintf(&b, "%d rows (%s)\n", h.rowCount, padLeft(formatDuration(h.duration), 8))
		}
	}

	for _, alert := range m.alerts {
		fmt.Fprintln(&b, lipgloss.NewStyle().Faint(true).Render(
			fmt.Sprintf("N+1 detected: %q seen %d times", truncate(alert.Query, 60), alert.Count)))
	}

	fmt.Fprintln(&b)
	line := highlight.SQL(renderInputWithCursor(m.input, m.cursor))
	if m.width > 2 {
		line = truncateHighlighted(line, m.width-2)
	}
	fmt.Fprintln(&b, "> "+line)

	help := "enter: run  ctrl+e: edit in $EDITOR  up/down: history  ctrl+c: quit"
	fmt.Fprintln(&b, lipgloss.NewStyle().Faint(true).Render(help))

	return b.String()
}
