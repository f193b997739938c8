package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"devstack/internal/process"
)

func bulkModel() ProgressModel {
	m := NewProgressModel("Starting")
	m.Queue("nginx", "1.25.3")
	m.Queue("php", "8.3.1")
	return m
}

func apply(m ProgressModel, msgs ...tea.Msg) ProgressModel {
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		m = updated.(ProgressModel)
	}
	return m
}

func TestQueuedRowsStartPending(t *testing.T) {
	m := bulkModel()
	m.Queue("nginx", "1.25.3")
	if len(m.rows) != 2 {
		t.Fatalf("expected queueing twice to keep one row, got %d", len(m.rows))
	}
	for _, row := range m.rows {
		if row.status != StatusPending {
			t.Errorf("expected %s pending, got %q", row.component, row.status)
		}
	}
}

func TestBeginAndOutcomeUpdateRow(t *testing.T) {
	m := apply(bulkModel(),
		BeginMsg{Op: "start", Component: "nginx", Version: "1.25.3"},
	)
	if m.rows[0].status != "starting" {
		t.Errorf("expected starting, got %q", m.rows[0].status)
	}

	m = apply(m, OutcomeMsg{Outcome: process.Outcome{Op: "start", Component: "nginx", Version: "1.25.3"}})
	if m.rows[0].status != StatusOK || m.rows[0].detail != "ok" {
		t.Errorf("unexpected row after outcome %+v", m.rows[0])
	}
	if m.rows[1].status != StatusPending {
		t.Errorf("expected php untouched, got %q", m.rows[1].status)
	}
}

func TestOutcomeForUnqueuedVersionAppendsRow(t *testing.T) {
	m := apply(bulkModel(), OutcomeMsg{Outcome: process.Outcome{
		Op: "start", Component: "mysql", Version: "8.0.36", Err: errors.New("executable not found"),
	}})
	if len(m.rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(m.rows))
	}
	if got := m.rows[2]; got.component != "mysql" || got.status != StatusFailed || got.detail != "executable not found" {
		t.Errorf("unexpected appended row %+v", got)
	}
}

func TestFinishedKeepsResult(t *testing.T) {
	res := process.BulkResult{Outcomes: []process.Outcome{{Op: "start", Component: "nginx", Version: "1.25.3"}}}
	updated, cmd := bulkModel().Update(FinishedMsg{Result: res})
	m := updated.(ProgressModel)
	if !m.Done() || cmd == nil {
		t.Fatal("expected done with quit command")
	}
	if m.Err() != nil || len(m.Result().Outcomes) != 1 {
		t.Errorf("unexpected final state err=%v result=%+v", m.Err(), m.Result())
	}
	if strings.Contains(m.View(), "Starting") {
		t.Error("expected no footer once finished")
	}
}

func TestInterruptedCancelsUnreachedRows(t *testing.T) {
	m := apply(bulkModel(),
		BeginMsg{Op: "stop", Component: "nginx", Version: "1.25.3"},
		OutcomeMsg{Outcome: process.Outcome{Op: "stop", Component: "nginx", Version: "1.25.3"}},
		InterruptedMsg{Err: context.Canceled},
	)
	if !m.Done() || !errors.Is(m.Err(), context.Canceled) {
		t.Fatalf("expected interrupted model, got done=%v err=%v", m.Done(), m.Err())
	}
	if m.rows[0].status != StatusOK || m.rows[1].status != StatusCancelled {
		t.Errorf("unexpected statuses %q %q", m.rows[0].status, m.rows[1].status)
	}
	if view := m.View(); !strings.Contains(view, "interrupted: context canceled, 1 not reached") {
		t.Errorf("expected interruption footer:\n%s", view)
	}
}

func TestViewFooterCountsSettledRows(t *testing.T) {
	m := apply(bulkModel(),
		BeginMsg{Op: "start", Component: "nginx", Version: "1.25.3"},
		OutcomeMsg{Outcome: process.Outcome{Op: "start", Component: "php", Version: "8.3.1", Skipped: true}},
	)
	view := m.View()
	for _, want := range []string{"COMPONENT", "VERSION", "STATUS", "DETAIL", "starting", "already running", "Starting 1/2..."} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestWindowWidthWidensDetail(t *testing.T) {
	long := strings.Repeat("x", 80)
	m := apply(bulkModel(), OutcomeMsg{Outcome: process.Outcome{Component: "nginx", Version: "1.25.3", Err: errors.New(long)}})
	if strings.Contains(m.View(), long) {
		t.Fatal("expected long detail truncated at default width")
	}
	m = apply(m, tea.WindowSizeMsg{Width: 160, Height: 40})
	if !strings.Contains(m.View(), long) {
		t.Fatal("expected detail to use the wider terminal")
	}
}

func TestTickStopsAfterDone(t *testing.T) {
	m := bulkModel()
	updated, cmd := m.Update(tickMsg{})
	if cmd == nil || updated.(ProgressModel).tick != 1 {
		t.Error("expected another tick while running")
	}
	updated, _ = updated.Update(FinishedMsg{})
	if _, cmd = updated.Update(tickMsg{}); cmd != nil {
		t.Error("expected no tick command after done")
	}
}

func TestBulkReporter(t *testing.T) {
	var msgs []tea.Msg
	rep := NewBulkReporter(func(msg tea.Msg) { msgs = append(msgs, msg) })

	rep.Begin("stop", "php", "8.3.1")
	rep.Done(process.Outcome{Op: "stop", Component: "php", Version: "8.3.1", Err: errors.New("still running")})

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if begin, ok := msgs[0].(BeginMsg); !ok || begin.Op != "stop" || begin.Component != "php" {
		t.Errorf("unexpected begin message %#v", msgs[0])
	}
	if done, ok := msgs[1].(OutcomeMsg); !ok || OutcomeStatus(done.Outcome) != StatusFailed {
		t.Errorf("unexpected outcome message %#v", msgs[1])
	}
}

func TestOutcomeStatus(t *testing.T) {
	if got := OutcomeStatus(process.Outcome{Skipped: true}); got != StatusSkipped {
		t.Errorf("skipped outcome = %q", got)
	}
	if got := OutcomeStatus(process.Outcome{Err: errors.New("boom")}); got != StatusFailed {
		t.Errorf("failed outcome = %q", got)
	}
	if got := OutcomeStatus(process.Outcome{}); got != StatusOK {
		t.Errorf("ok outcome = %q", got)
	}
}

func TestRunBulkReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer

	res, err := RunBulk(ctx, &out, bulkModel(), func(rep process.Reporter) process.BulkResult {
		o := process.Outcome{Op: "start", Component: "nginx", Version: "1.25.3"}
		rep.Begin(o.Op, o.Component, o.Version)
		rep.Done(o)
		cancel()
		return process.BulkResult{Outcomes: []process.Outcome{o}}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.Outcomes) != 1 {
		t.Fatalf("expected the partial result, got %+v", res)
	}
}

func TestRunBulkFinishes(t *testing.T) {
	var out bytes.Buffer
	res, err := RunBulk(context.Background(), &out, bulkModel(), func(rep process.Reporter) process.BulkResult {
		var res process.BulkResult
		for _, pair := range [][2]string{{"nginx", "1.25.3"}, {"php", "8.3.1"}} {
			o := process.Outcome{Op: "start", Component: pair[0], Version: pair[1]}
			rep.Begin(o.Op, o.Component, o.Version)
			rep.Done(o)
			res.Outcomes = append(res.Outcomes, o)
		}
		return res
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("expected both outcomes, got %+v", res)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, Headers(BulkColumns), [][]string{{"nginx", "1.25.3", "ok", ""}}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.HasPrefix(lines[0], "COMPONENT") || !strings.HasSuffix(lines[1], "-") {
		t.Errorf("unexpected table %q", buf.String())
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"a longer string here", 10, "a longe..."},
		{"abcd", 3, "abc"},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateWithEllipsis(tt.input, tt.max); got != tt.want {
			t.Errorf("TruncateWithEllipsis(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}
