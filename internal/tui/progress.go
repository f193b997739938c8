package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"devstack/internal/process"
)

const tickInterval = 150 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg time.Time

// Column is one column of the bulk table.
type Column struct {
	Header string
	Width  int
}

// BulkColumns is the layout used by start/stop/restart of several versions,
// both live and in plain output.
var BulkColumns = []Column{
	{Header: "COMPONENT", Width: 14},
	{Header: "VERSION", Width: 10},
	{Header: "STATUS", Width: 10},
	{Header: "DETAIL", Width: 48},
}

const detailCol = 3

type bulkRow struct {
	component string
	version   string
	status    string
	detail    string
}

func (r bulkRow) cells() []string {
	return []string{r.component, r.version, r.status, r.detail}
}

// ProgressModel is the bubbletea model behind bulk service operations. Rows
// are queued before the run and move from pending through the operation's
// progressive status to a final one as BeginMsg and OutcomeMsg arrive.
type ProgressModel struct {
	title       string
	rows        []bulkRow
	index       map[string]int
	result      process.BulkResult
	interrupted error
	finished    bool
	tick        int
	width       int
}

// NewProgressModel returns an empty model. title names the operation in the
// footer, e.g. "Starting".
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{title: title, index: make(map[string]int)}
}

// Queue adds a pending row. Call it before the program starts.
func (m *ProgressModel) Queue(component, version string) {
	m.row(component, version)
}

func (m *ProgressModel) row(component, version string) *bulkRow {
	key := RowKey(component, version)
	idx, ok := m.index[key]
	if !ok {
		idx = len(m.rows)
		m.index[key] = idx
		m.rows = append(m.rows, bulkRow{component: component, version: version, status: StatusPending})
	}
	return &m.rows[idx]
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m ProgressModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.finished {
			return m, nil
		}
		return m, scheduleTick()

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case BeginMsg:
		m.row(msg.Component, msg.Version).status = progressive(msg.Op)

	case OutcomeMsg:
		r := m.row(msg.Outcome.Component, msg.Outcome.Version)
		r.status = OutcomeStatus(msg.Outcome)
		r.detail = msg.Outcome.Message()

	case FinishedMsg:
		m.finished = true
		m.result = msg.Result
		return m, tea.Quit

	case InterruptedMsg:
		m.finished = true
		m.result = msg.Result
		m.interrupted = msg.Err
		for i := range m.rows {
			if !isFinal(m.rows[i].status) {
				m.rows[i].status = StatusCancelled
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m ProgressModel) View() string {
	widths := m.widths()

	var b strings.Builder
	header := make([]string, len(BulkColumns))
	for i, col := range BulkColumns {
		header[i] = HeaderStyle.Render(pad(col.Header, widths[i]))
	}
	b.WriteString(strings.Join(header, "  "))
	b.WriteByte('\n')

	for _, row := range m.rows {
		cells := row.cells()
		for i := range cells {
			val := TruncateWithEllipsis(cells[i], widths[i])
			if i == 2 {
				cells[i] = StatusStyle(val).Render(pad(val, widths[i]))
			} else {
				cells[i] = pad(val, widths[i])
			}
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteByte('\n')
	}

	switch {
	case m.interrupted != nil:
		fmt.Fprintf(&b, "\ninterrupted: %v, %d not reached\n", m.interrupted, m.count(StatusCancelled))
	case !m.finished:
		fmt.Fprintf(&b, "\n%s %s %d/%d...\n", spinnerFrames[m.tick%len(spinnerFrames)], m.title, m.settled(), len(m.rows))
	}
	return b.String()
}

// widths grows the detail column into whatever terminal width is left.
func (m ProgressModel) widths() []int {
	widths := make([]int, len(BulkColumns))
	used := 0
	for i, col := range BulkColumns {
		widths[i] = max(len(col.Header), col.Width)
		if i != detailCol {
			used += widths[i] + 2
		}
	}
	if m.width > used+widths[detailCol] {
		widths[detailCol] = m.width - used
	}
	return widths
}

func (m ProgressModel) settled() int {
	n := 0
	for _, row := range m.rows {
		if isFinal(row.status) {
			n++
		}
	}
	return n
}

func (m ProgressModel) count(status string) int {
	n := 0
	for _, row := range m.rows {
		if row.status == status {
			n++
		}
	}
	return n
}

// Done reports whether the run has finished or been interrupted.
func (m ProgressModel) Done() bool {
	return m.finished
}

// Result is the outcome list handed over when the run ended.
func (m ProgressModel) Result() process.BulkResult {
	return m.result
}

// Err is the cancellation cause of an interrupted run.
func (m ProgressModel) Err() error {
	return m.interrupted
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// NonEmptyOrDash returns "-" for empty/whitespace strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
