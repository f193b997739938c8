package tui

import (
	"context"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"devstack/internal/process"
)

// RunBulk renders model while work visits the queued versions, and returns
// work's result. Interrupts are left to ctx: when it is cancelled mid-run the
// table marks unreached rows cancelled and RunBulk returns the partial result
// with ctx.Err().
func RunBulk(ctx context.Context, out io.Writer, model ProgressModel, work func(process.Reporter) process.BulkResult) (process.BulkResult, error) {
	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler())

	go func() {
		// Let bubbletea render the queued rows first.
		time.Sleep(50 * time.Millisecond)
		res := work(NewBulkReporter(p.Send))
		if err := ctx.Err(); err != nil {
			p.Send(InterruptedMsg{Err: err, Result: res})
			return
		}
		p.Send(FinishedMsg{Result: res})
	}()

	final, err := p.Run()
	if err != nil {
		return process.BulkResult{}, err
	}
	m, _ := final.(ProgressModel)
	return m.Result(), m.Err()
}
