package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"devstack/internal/install"
	"devstack/internal/tui"
	"devstack/internal/versions"
)

func newInstallCmd() *cobra.Command {
	var noPath bool
	cmd := &cobra.Command{
		Use:   "install <component> [version]",
		Short: "Install a component version (latest from the catalog when omitted) and add it to PATH",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}

			stop := showPhases(cmd, a, args[0], version)
			res, err := a.installer.Install(cmd.Context(), args[0], version)
			stop(res)
			if err != nil {
				return err
			}

			var added []string
			if !noPath {
				if added, err = a.path.AddBinDirsToPath(); err != nil {
					return fmt.Errorf("installed %s %s but updating PATH failed: %w", res.Component, res.Version, err)
				}
			}

			if outputJSON {
				return writeJSON(cmd, struct {
					install.Result
					PathAdded []string `json:"path_added,omitempty"`
				}{res, added})
			}
			out := cmd.OutOrStdout()
			if res.AlreadyInstalled {
				fmt.Fprintf(out, "%s %s is already installed in %s\n", res.Component, res.Version, res.Dir)
			} else {
				fmt.Fprintf(out, "installed %s %s into %s\n", res.Component, res.Version, res.Dir)
			}
			if res.Launcher != "" {
				fmt.Fprintf(out, "launcher: %s\n", res.Launcher)
			}
			for _, dir := range added {
				fmt.Fprintf(out, "added to PATH: %s\n", dir)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&noPath, "no-path", false, "Do not add the installed bin directory to PATH")
	return cmd
}

// showPhases puts the install phases on a status line when stderr is an
// interactive terminal. The returned func clears the line and logs how long
// each phase took.
func showPhases(cmd *cobra.Command, a *app, name, version string) func(install.Result) {
	if tui.DetectMode(cmd.ErrOrStderr(), noProgress, outputJSON) != tui.ModeTUI {
		return func(install.Result) {}
	}
	status := tui.NewStatusWriter(cmd.ErrOrStderr())
	status.Phase(name, version, "checking")
	a.installer.Progress = func(component, version string, p install.Phase) {
		status.Phase(component, version, string(p))
	}
	return func(res install.Result) {
		a.installer.Progress = nil
		if timings := status.Stop(); len(timings) > 0 {
			a.logger.Printf("install %s %s: %s", res.Component, res.Version, tui.FormatTimings(timings))
		}
	}
}

func newAliasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alias <component> <version>",
		Short: "Write a launcher named after the component and version, e.g. php8.3.1",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			path, err := a.installer.CreateAlias(args[0], args[1])
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd, map[string]string{"alias": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "alias created: %s\n", path)
			return nil
		}),
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <component> [version]",
		Short: "Remove and reinstall a component; without a version every installed version is redone",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			res, resetErr := a.installer.Reset(cmd.Context(), args[0], version)

			// Bin dirs of versions that did not come back leave PATH.
			back := make(map[string]bool, len(res.Installed))
			for _, r := range res.Installed {
				back[r.Version] = true
			}
			var gone []string
			if desc, ok := a.registry.Get(args[0]); ok {
				for _, v := range res.Removed.Removed {
					if !back[v] {
						gone = append(gone, desc.BinDir(a.layout.ToolsDir, v))
					}
				}
			}
			if _, err := a.path.RemoveFromPath(gone); err != nil {
				a.logger.Printf("reset %s: update PATH: %v", args[0], err)
			}
			if len(res.Installed) > 0 {
				if _, err := a.path.AddBinDirsToPath(); err != nil {
					a.logger.Printf("reset %s: update PATH: %v", args[0], err)
				}
			}

			if outputJSON {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
				return resetErr
			}
			out := cmd.OutOrStdout()
			for _, v := range res.Removed.Stopped {
				fmt.Fprintf(out, "stopped %s %s\n", res.Component, v)
			}
			for _, v := range res.Removed.Removed {
				fmt.Fprintf(out, "removed %s %s\n", res.Component, v)
			}
			for _, r := range res.Installed {
				fmt.Fprintf(out, "installed %s %s into %s\n", r.Component, r.Version, r.Dir)
			}
			return resetErr
		}),
	}
	return cmd
}

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <component> [version|pattern]",
		Short: "Stop and remove installed versions; without a version every version is removed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			res, uninstallErr := a.installer.Uninstall(cmd.Context(), args[0], version)

			var dirs []string
			if desc, ok := a.registry.Get(args[0]); ok {
				for _, v := range res.Removed {
					dirs = append(dirs, desc.BinDir(a.layout.ToolsDir, v))
				}
			}
			removed, err := a.path.RemoveFromPath(dirs)
			if err != nil {
				a.logger.Printf("uninstall %s: update PATH: %v", args[0], err)
			}

			if outputJSON {
				if err := writeJSON(cmd, struct {
					install.UninstallResult
					PathRemoved []string `json:"path_removed,omitempty"`
				}{res, removed}); err != nil {
					return err
				}
				return uninstallErr
			}
			out := cmd.OutOrStdout()
			if uninstallErr == nil && len(res.Removed) == 0 {
				fmt.Fprintf(out, "no %s versions installed\n", res.Component)
			}
			for _, v := range res.Stopped {
				fmt.Fprintf(out, "stopped %s %s\n", res.Component, v)
			}
			for _, v := range res.Removed {
				fmt.Fprintf(out, "removed %s %s\n", res.Component, v)
			}
			for _, dir := range removed {
				fmt.Fprintf(out, "removed from PATH: %s\n", dir)
			}
			return uninstallErr
		}),
	}
	return cmd
}

func newListCmd() *cobra.Command {
	var available bool
	cmd := &cobra.Command{
		Use:   "list [component]",
		Short: "List installed versions, or versions available from the catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			names := a.registry.Names()
			if len(args) == 1 {
				desc, err := a.registry.Lookup(args[0])
				if err != nil {
					return err
				}
				names = []string{desc.Name}
			}

			listed := make(map[string][]string, len(names))
			for _, name := range names {
				var list []string
				if available {
					var err error
					if list, err = a.installer.Fetcher.Available(name); err != nil {
						return err
					}
					versions.Sort(list)
				} else {
					list = a.store.ListInstalled(name)
				}
				if len(list) > 0 || len(args) == 1 {
					listed[name] = list
				}
			}

			if outputJSON {
				return writeJSON(cmd, listed)
			}
			rows := make([][]string, 0, len(listed))
			for _, name := range names {
				if list, ok := listed[name]; ok {
					rows = append(rows, []string{name, strings.Join(list, ", ")})
				}
			}
			if len(rows) == 0 {
				if available {
					fmt.Fprintln(cmd.OutOrStdout(), "No versions in the catalog.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing installed.")
				}
				return nil
			}
			return tui.WriteTable(cmd.OutOrStdout(), []string{"COMPONENT", "VERSIONS"}, rows)
		}),
	}
	cmd.Flags().BoolVar(&available, "available", false, "List versions available from the catalog")
	return cmd
}
