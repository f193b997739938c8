package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"devstack/internal/process"
)

// RowKey identifies the table row of a component version.
func RowKey(component, version string) string {
	return component + "@" + version
}

// BulkReporter forwards supervisor progress to a running program.
type BulkReporter struct {
	send func(tea.Msg)
}

// NewBulkReporter returns a reporter that forwards updates to send.
func NewBulkReporter(send func(tea.Msg)) *BulkReporter {
	return &BulkReporter{send: send}
}

// Begin implements process.Reporter.
func (r *BulkReporter) Begin(op, component, version string) {
	r.send(BeginMsg{Op: op, Component: component, Version: version})
}

// Done implements process.Reporter.
func (r *BulkReporter) Done(o process.Outcome) {
	r.send(OutcomeMsg{Outcome: o})
}

// OutcomeStatus maps an outcome to its row status.
func OutcomeStatus(o process.Outcome) string {
	switch {
	case o.Skipped:
		return StatusSkipped
	case o.Err != nil:
		return StatusFailed
	default:
		return StatusOK
	}
}

func progressive(op string) string {
	switch op {
	case "start":
		return "starting"
	case "stop":
		return "stopping"
	case "restart":
		return "restarting"
	}
	return op
}
