package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"devstack/internal/process"
	"devstack/internal/tui"
	"devstack/internal/watch"
)

func newStatusCmd() *cobra.Command {
	var watchFlag bool
	cmd := &cobra.Command{
		Use:   "status [component]",
		Short: "Show which installed service versions are running",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			snapshot := func() ([]process.Status, error) {
				return statusSnapshot(a, args)
			}
			if watchFlag {
				return runStatusWatch(cmd, a, snapshot)
			}
			statuses, err := snapshot()
			if err != nil && len(statuses) == 0 {
				return err
			}
			a.metrics.SetStatuses(statuses)
			if outputJSON {
				return writeJSON(cmd, statuses)
			}
			writeStatusTable(cmd.OutOrStdout(), statuses)
			return err
		}),
	}
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Keep refreshing as installs change and processes start or stop")
	return cmd
}

func statusSnapshot(a *app, args []string) ([]process.Status, error) {
	if len(args) == 0 {
		return a.sup.Snapshot()
	}
	desc, err := a.registry.Lookup(args[0])
	if err != nil {
		return nil, err
	}
	var (
		out  []process.Status
		errs []error
	)
	for _, v := range a.store.ListInstalled(desc.Name) {
		st, err := a.sup.Status(desc.Name, v)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, st)
	}
	return out, errors.Join(errs...)
}

func writeStatusTable(out io.Writer, statuses []process.Status) {
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No installed services.")
		return
	}
	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		pids := make([]string, len(st.PIDs))
		for i, pid := range st.PIDs {
			pids[i] = fmt.Sprint(pid)
		}
		rows = append(rows, []string{st.Component, st.Version, strings.ToUpper(st.State.String()), strings.Join(pids, ",")})
	}
	_ = tui.WriteTable(out, []string{"COMPONENT", "VERSION", "STATUS", "PIDS"}, rows)
}

func runStatusWatch(cmd *cobra.Command, a *app, snapshot watch.SnapshotFunc) error {
	events, cleanup, err := watch.Watch(cmd.Context(), watch.Options{
		ToolsDir: a.layout.ToolsDir,
		Snapshot: snapshot,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	interactive := tui.DetectMode(out, noProgress, outputJSON) == tui.ModeTUI
	faint := lipgloss.NewStyle().Faint(true)
	for ev := range events {
		if ev.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "status: %v\n", ev.Err)
			a.logger.Printf("status watch: %v", ev.Err)
			if ev.Statuses == nil {
				continue
			}
		}
		if outputJSON {
			if err := writeJSON(cmd, ev.Statuses); err != nil {
				return err
			}
			continue
		}
		if interactive {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		writeStatusTable(out, ev.Statuses)
		if interactive {
			fmt.Fprintln(out, faint.Render("\nwatching "+a.layout.ToolsDir+", ctrl+c to exit"))
		}
	}
	return nil
}
