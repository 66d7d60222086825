package shell

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// padRight and padLeft measure width with lipgloss so ANSI styling never
// throws off column alignment.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func padLeft(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}

var reSpaces = regexp.MustCompile(`\s+`)

// truncate collapses whitespace and clips plain (non-ANSI) text to maxLen
// runes, for history-row display.
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if len([]rune(s)) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-1]) + "…"
}

// truncateHighlighted clips an ANSI-highlighted string to maxWidth visible
// columns without corrupting escape sequences, for horizontal scroll of a
// highlighted line.
func truncateHighlighted(s string, maxWidth int) string {
	return ansi.Cut(s, 0, maxWidth)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// renderInputWithCursor renders the input line with a block cursor at the
// given rune position.
func renderInputWithCursor(text string, cursorPos int) string {
	runes := []rune(text)
	if cursorPos >= len(runes) {
		return text + "█"
	}
	return string(runes[:cursorPos]) + "█" + string(runes[cursorPos:])
}

func friendlyError(err error) string {
	if err == nil {
		return ""
	}
	return "Error: " + err.Error()
}
