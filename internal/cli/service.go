package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"devstack/internal/process"
	"devstack/internal/tui"
)

// serviceOp describes one of start, stop and restart.
type serviceOp struct {
	name   string
	verb   string // past tense for messages
	title  string // progress footer
	single func(s *process.Supervisor) process.Action
	all    func(s *process.Supervisor, ctx context.Context, rep process.Reporter) process.BulkResult
}

var (
	startOp = serviceOp{
		name: "start", verb: "started", title: "Starting",
		single: func(s *process.Supervisor) process.Action { return s.Start },
		all:    (*process.Supervisor).StartAll,
	}
	stopOp = serviceOp{
		name: "stop", verb: "stopped", title: "Stopping",
		single: func(s *process.Supervisor) process.Action { return s.Stop },
		all:    (*process.Supervisor).StopAll,
	}
	restartOp = serviceOp{
		name: "restart", verb: "restarted", title: "Restarting",
		single: func(s *process.Supervisor) process.Action { return s.Restart },
		all:    (*process.Supervisor).RestartAll,
	}
)

func newStartCmd() *cobra.Command {
	return newServiceCmd(startOp, "Start a component version, every installed version of it, or all services")
}

func newStopCmd() *cobra.Command {
	return newServiceCmd(stopOp, "Stop a component version, every installed version of it, or all services")
}

func newRestartCmd() *cobra.Command {
	return newServiceCmd(restartOp, "Restart a component version, every installed version of it, or all services")
}

func newServiceCmd(op serviceOp, short string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   op.name + " <component> [version] | --all",
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all takes no arguments")
			}
			if !all && (len(args) < 1 || len(args) > 2) {
				return errors.New("expected <component> [version] or --all")
			}
			return nil
		},
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			switch {
			case all:
				return runBulk(cmd, a, op, "", func(rep process.Reporter) process.BulkResult {
					return op.all(a.sup, ctx, rep)
				})
			case len(args) == 1:
				return runBulk(cmd, a, op, args[0], func(rep process.Reporter) process.BulkResult {
					return a.sup.ForEachInstalledVersion(ctx, op.name, args[0], op.single(a.sup), rep)
				})
			default:
				return runSingle(cmd, a, op, args[0], args[1])
			}
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every installed version of every service")
	return cmd
}

func runSingle(cmd *cobra.Command, a *app, op serviceOp, name, version string) error {
	if err := op.single(a.sup)(cmd.Context(), name, version); err != nil {
		return err
	}
	if desc, ok := a.registry.Get(name); ok && desc.IsCommandLine {
		// The interactive session has already ended.
		return nil
	}
	st, err := a.sup.Status(name, version)
	if err != nil {
		return err
	}
	if outputJSON {
		return writeJSON(cmd, st)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (%s)\n", op.verb, st.Component, version, describeStatus(st))
	return nil
}

func runBulk(cmd *cobra.Command, a *app, op serviceOp, component string, work func(process.Reporter) process.BulkResult) error {
	out := cmd.OutOrStdout()
	var res process.BulkResult

	switch tui.DetectMode(out, noProgress, outputJSON) {
	case tui.ModeTUI:
		model := tui.NewProgressModel(op.title)
		for _, row := range pendingRows(a, component) {
			model.Queue(row[0], row[1])
		}
		var err error
		if res, err = tui.RunBulk(cmd.Context(), out, model, work); err != nil && cmd.Context().Err() == nil {
			return err
		}
	case tui.ModeJSON:
		res = work(nil)
		if err := writeJSON(cmd, outcomesJSON(res)); err != nil {
			return err
		}
	default:
		res = work(nil)
		rows := make([][]string, 0, len(res.Outcomes))
		for _, o := range res.Outcomes {
			rows = append(rows, []string{o.Component, o.Version, tui.OutcomeStatus(o), o.Message()})
		}
		if err := tui.WriteTable(out, tui.Headers(tui.BulkColumns), rows); err != nil {
			return err
		}
	}

	if err := cmd.Context().Err(); err != nil {
		return fmt.Errorf("%s interrupted after %d versions: %w", op.name, len(res.Outcomes), err)
	}
	if len(res.Outcomes) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "nothing to "+op.name)
		return nil
	}
	if failed := len(res.Failed()); failed > 0 {
		return fmt.Errorf("%s: %s", op.name, res.Summary())
	}
	return nil
}

// pendingRows lists the component/version pairs a bulk operation will visit
// so the progress table can show them before work starts.
func pendingRows(a *app, component string) [][2]string {
	var descs []string
	if component == "" {
		for _, d := range a.registry.Services() {
			descs = append(descs, d.Name)
		}
	} else if d, ok := a.registry.Get(component); ok {
		descs = append(descs, d.Name)
	}
	var rows [][2]string
	for _, name := range descs {
		for _, v := range a.store.ListInstalled(name) {
			rows = append(rows, [2]string{name, v})
		}
	}
	return rows
}

type outcomeJSON struct {
	Op        string `json:"op"`
	Component string `json:"component"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func outcomesJSON(res process.BulkResult) []outcomeJSON {
	out := make([]outcomeJSON, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		item := outcomeJSON{Op: o.Op, Component: o.Component, Version: o.Version, Status: tui.OutcomeStatus(o)}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		out = append(out, item)
	}
	return out
}

func describeStatus(st process.Status) string {
	if st.State != process.Running {
		return strings.ToLower(st.State.String())
	}
	pids := make([]string, len(st.PIDs))
	for i, pid := range st.PIDs {
		pids[i] = fmt.Sprint(pid)
	}
	return "running, pid " + strings.Join(pids, ",")
}
