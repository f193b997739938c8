package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"devstack/internal/paths"
	"devstack/internal/process"
	"devstack/pkg/catalog"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check DevStack health",
		Args:  cobra.NoArgs,
		RunE:  withApp(runDoctor),
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, a *app, _ []string) error {
	checks := []healthCheck{
		checkRoot(a),
		checkConfig(a),
		checkCatalog(a),
		checkInstalls(a),
		checkPath(a),
		checkServices(a),
	}
	return writeDoctorResult(cmd, a.layout.Root, checks)
}

func checkRoot(a *app) healthCheck {
	var missing []string
	for _, dir := range []string{a.layout.Root, a.layout.ToolsDir} {
		ok, err := paths.DirExists(dir)
		if err != nil {
			return healthCheck{Name: "Root", Status: "error", Summary: err.Error()}
		}
		if !ok {
			missing = append(missing, dir)
		}
	}
	if len(missing) > 0 {
		return healthCheck{Name: "Root", Status: "warning", Summary: "missing " + strings.Join(missing, ", ")}
	}
	return healthCheck{Name: "Root", Status: "ok", Summary: a.layout.ToolsDir}
}

func checkConfig(a *app) healthCheck {
	exists, _ := paths.FileExists(a.layout.ConfigFile)
	source := "defaults"
	if exists {
		source = a.layout.ConfigFile
	}

	var warnings, errs int
	for _, v := range a.cfg.Validate(a.registry.Names()) {
		switch v.Level {
		case "warning":
			warnings++
		case "error":
			errs++
		}
	}
	summary := fmt.Sprintf("%s, %d service overrides", source, len(a.cfg.Services))

	if errs > 0 {
		return healthCheck{Name: "Config", Status: "error", Summary: fmt.Sprintf("%s; %d errors", summary, errs)}
	}
	if warnings > 0 {
		return healthCheck{Name: "Config", Status: "warning", Summary: fmt.Sprintf("%s; %d warnings", summary, warnings)}
	}
	return healthCheck{Name: "Config", Status: "ok", Summary: summary}
}

func checkCatalog(a *app) healthCheck {
	path := a.layout.ResolveFile(a.cfg.Catalog)
	if exists, _ := paths.FileExists(path); !exists {
		return healthCheck{Name: "Catalog", Status: "warning", Summary: "no catalog at " + path + "; install is unavailable"}
	}
	cat, err := catalog.Load(path)
	if err != nil {
		var verrs catalog.ValidationErrors
		if errors.As(err, &verrs) && cat != nil {
			return healthCheck{
				Name:    "Catalog",
				Status:  "warning",
				Summary: fmt.Sprintf("%d entries, %d invalid rows", len(cat.Entries()), len(verrs.Issues())),
			}
		}
		return healthCheck{Name: "Catalog", Status: "error", Summary: err.Error()}
	}
	return healthCheck{Name: "Catalog", Status: "ok", Summary: fmt.Sprintf("%d entries", len(cat.Entries()))}
}

func checkInstalls(a *app) healthCheck {
	var total int
	var broken []string
	installed := a.store.ListAllInstalled()
	for _, desc := range a.registry.All() {
		for _, v := range installed[desc.Name] {
			total++
			if ok, _ := paths.FileExists(desc.ExecutablePath(a.layout.ToolsDir, v)); !ok {
				broken = append(broken, desc.Name+" "+v)
			}
		}
	}
	if len(broken) > 0 {
		return healthCheck{
			Name:    "Installs",
			Status:  "warning",
			Summary: fmt.Sprintf("%d of %d versions missing their executable: %s", len(broken), total, joinComma(broken)),
		}
	}
	return healthCheck{Name: "Installs", Status: "ok", Summary: fmt.Sprintf("%d versions installed", total)}
}

func checkPath(a *app) healthCheck {
	entries, err := a.path.ListCurrentPath()
	if err != nil {
		return healthCheck{Name: "PATH", Status: "error", Summary: err.Error()}
	}
	onPath := make(map[string]bool, len(entries))
	var stale int
	for _, e := range entries {
		onPath[paths.Normalize(e.Dir)] = true
		if e.Managed && !e.Exists {
			stale++
		}
	}
	var missing int
	for _, dir := range a.path.ComputeManagedDirectories() {
		if !onPath[paths.Normalize(dir)] {
			missing++
		}
	}

	switch {
	case missing > 0 && stale > 0:
		return healthCheck{Name: "PATH", Status: "warning", Summary: fmt.Sprintf("%d directories missing, %d stale; run devstack path add", missing, stale)}
	case missing > 0:
		return healthCheck{Name: "PATH", Status: "warning", Summary: fmt.Sprintf("%d directories missing; run devstack path add", missing)}
	case stale > 0:
		return healthCheck{Name: "PATH", Status: "warning", Summary: fmt.Sprintf("%d stale entries; run devstack path remove", stale)}
	}
	return healthCheck{Name: "PATH", Status: "ok", Summary: "all installed versions reachable"}
}

func checkServices(a *app) healthCheck {
	statuses, err := a.sup.Snapshot()
	if errors.Is(err, process.ErrUnsupportedPlatform) {
		return healthCheck{Name: "Services", Status: "warning", Summary: err.Error()}
	}
	if err != nil && len(statuses) == 0 {
		return healthCheck{Name: "Services", Status: "error", Summary: err.Error()}
	}
	var running []string
	for _, st := range statuses {
		if st.State == process.Running {
			running = append(running, st.Component+" "+st.Version)
		}
	}
	summary := fmt.Sprintf("%d of %d running", len(running), len(statuses))
	if len(running) > 0 {
		summary += ": " + joinComma(running)
	}
	if err != nil {
		return healthCheck{Name: "Services", Status: "warning", Summary: summary + "; " + err.Error()}
	}
	return healthCheck{Name: "Services", Status: "ok", Summary: summary}
}

func writeDoctorResult(cmd *cobra.Command, root string, checks []healthCheck) error {
	if outputJSON {
		data, err := json.MarshalIndent(checks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("DEVSTACK HEALTH:")+" "+root)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}

func joinComma(items []string) string {
	return strings.Join(items, ", ")
}
