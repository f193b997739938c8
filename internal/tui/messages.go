package tui

import "devstack/internal/process"

// BeginMsg marks a component version as being worked on.
type BeginMsg struct {
	Op        string
	Component string
	Version   string
}

// OutcomeMsg records how one component version ended.
type OutcomeMsg struct {
	Outcome process.Outcome
}

// FinishedMsg ends a run in which every queued version was visited.
type FinishedMsg struct {
	Result process.BulkResult
}

// InterruptedMsg ends a run whose context was cancelled. Versions that were
// never reached are shown as cancelled.
type InterruptedMsg struct {
	Err    error
	Result process.BulkResult
}
