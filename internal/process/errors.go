package process

import (
	"errors"
	"fmt"
	"strings"

	"devstack/internal/components"
)

// Common errors returned by supervisor operations.
var (
	// ErrUnknownComponent indicates the name is not in the registry.
	ErrUnknownComponent = components.ErrUnknownComponent

	// ErrNotInstalled indicates the version directory does not exist.
	ErrNotInstalled = errors.New("not installed")

	// ErrExecutableNotFound indicates the version directory exists but the
	// expected executable is missing, usually a partial install.
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrNotService indicates the component is neither a service nor a
	// command-line component and cannot be started.
	ErrNotService = errors.New("component cannot be started")

	// ErrUnsupportedPlatform indicates the process table cannot be read here.
	ErrUnsupportedPlatform = errors.New("process discovery not supported on this platform")
)

// OpError records a failed operation on a component version.
type OpError struct {
	// Op is the operation that failed, such as "start" or "stop".
	Op string
	// Component is the canonical component name.
	Component string
	// Version is empty for component-wide operations.
	Version string
	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *OpError) Error() string {
	target := e.Component
	if e.Version != "" {
		target += " " + e.Version
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op, component, version string, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) && existing.Op == op {
		return err
	}
	return &OpError{Op: op, Component: component, Version: version, Err: err}
}

// Outcome is the result of one item of a bulk operation.
type Outcome struct {
	Op        string `json:"op"`
	Component string `json:"component"`
	Version   string `json:"version"`
	Skipped   bool   `json:"skipped,omitempty"`
	Err       error  `json:"-"`
}

// OK reports whether the item succeeded or was skipped.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Message is a one-line human readable summary of the outcome.
func (o Outcome) Message() string {
	switch {
	case o.Err != nil:
		return o.Err.Error()
	case o.Skipped:
		return "already running"
	default:
		return "ok"
	}
}

// BulkResult collects per-item outcomes. A failing item never stops the
// remaining items from running.
type BulkResult struct {
	Outcomes []Outcome
}

func (r *BulkResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Failed returns the items that returned an error.
func (r BulkResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded counts items that completed without error, skipped ones included.
func (r BulkResult) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// Err joins every item error, or returns nil when all items succeeded.
func (r BulkResult) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// Summary renders "2 ok, 1 failed" style counts.
func (r BulkResult) Summary() string {
	failed := len(r.Failed())
	parts := []string{fmt.Sprintf("%d ok", len(r.Outcomes)-failed)}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	return strings.Join(parts, ", ")
}
