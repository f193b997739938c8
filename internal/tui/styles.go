package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	blue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusStyles = map[string]lipgloss.Style{
		StatusOK:      green,
		StatusRunning: green,

		"starting":   blue,
		"stopping":   blue,
		"restarting": blue,

		StatusSkipped:   yellow,
		StatusStopped:   lipgloss.NewStyle().Faint(true),
		StatusFailed:    red,
		StatusPending:   lipgloss.NewStyle().Faint(true),
		StatusCancelled: yellow,
		StatusNotFound:  yellow,
	}
)

// Row statuses shared by the progress table and plain output.
const (
	StatusPending  = "pending"
	StatusOK       = "ok"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
	StatusRunning  = "RUNNING"
	StatusStopped  = "STOPPED"
	StatusNotFound = "missing"

	// StatusCancelled marks rows an interrupted run never reached.
	StatusCancelled = "cancelled"
)

func isFinal(status string) bool {
	switch status {
	case StatusOK, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
