package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Manage DevStack entries on the user PATH",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Append the bin directory of every installed version",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			added, err := a.path.AddBinDirsToPath()
			if err != nil {
				return err
			}
			return reportPathChange(cmd, "added", added)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove [dir...]",
		Short: "Remove DevStack directories from PATH; every managed one when none are given",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			var (
				removed []string
				err     error
			)
			if len(args) == 0 {
				removed, err = a.path.RemoveAllDevStackFromPath()
			} else {
				removed, err = a.path.RemoveFromPath(args)
			}
			if err != nil {
				return err
			}
			return reportPathChange(cmd, "removed", removed)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the user PATH, marking DevStack entries and missing directories",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			entries, err := a.path.ListCurrentPath()
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd, entries)
			}
			green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
			red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)
			bold := lipgloss.NewStyle().Bold(true).Inline(true)
			out := cmd.OutOrStdout()
			for _, e := range entries {
				mark := green.Render("✓")
				if !e.Exists {
					mark = red.Render("✗")
				}
				dir := e.Dir
				if e.Managed {
					dir = bold.Render(dir) + " (devstack)"
				}
				fmt.Fprintf(out, "%s %s\n", mark, dir)
			}
			return nil
		}),
	})
	return cmd
}

func reportPathChange(cmd *cobra.Command, verb string, dirs []string) error {
	if outputJSON {
		return writeJSON(cmd, map[string][]string{verb: dirs})
	}
	out := cmd.OutOrStdout()
	if len(dirs) == 0 {
		fmt.Fprintln(out, "PATH already up to date")
		return nil
	}
	for _, d := range dirs {
		fmt.Fprintf(out, "%s %s\n", verb, d)
	}
	return nil
}
