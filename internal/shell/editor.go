package shell

import (
	"context"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// editorResultMsg carries the outcome of editing a query in $EDITOR.
type editorResultMsg struct {
	query string
	err   error
}

func openEditor(query string) tea.Cmd {
	f, err := os.CreateTemp("", "pgnative-shell-*.sql")
	if err != nil {
		return func() tea.Msg { return editorResultMsg{err: err} }
	}
	path := f.Name()

	header := "-- Edit this query, then save and quit to put it back on the input line.\n" +
		"-- To cancel, clear the file or quit without saving.\n" +
		"-- Lines starting with -- are stripped before execution.\n\n"

	if _, err := f.WriteString(header + query); err != nil {
		_ = f.Close()
		_ = os.Remove(path) //nolint:gosec // path is a controlled temp file created by this function
		return func() tea.Msg { return editorResultMsg{err: err} }
	}
	_ = f.Close()

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	c := exec.CommandContext(context.Background(), editor, path) //nolint:gosec // $EDITOR is user-controlled by design
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	return tea.ExecProcess(c, func(err error) tea.Msg {
		defer func() { _ = os.Remove(path) }()

		if err != nil {
			return editorResultMsg{err: err}
		}

		edited, err := os.ReadFile(path) //nolint:gosec // path is our own temp file
		if err != nil {
			return editorResultMsg{err: err}
		}

		return editorResultMsg{query: stripComments(string(edited))}
	})
}

// stripComments removes SQL single-line comments (-- ...) and trims
// whitespace.
func stripComments(s string) string {
	lines := make([]string, 0)
	for line := range strings.SplitSeq(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
