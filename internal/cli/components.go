package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"devstack/internal/tui"
)

func newComponentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List the components DevStack knows how to manage",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			type row struct {
				Name      string   `json:"name"`
				Label     string   `json:"label"`
				Aliases   []string `json:"aliases,omitempty"`
				Kind      string   `json:"kind"`
				Installed int      `json:"installed"`
			}
			installed := a.store.ListAllInstalled()
			var rows []row
			for _, d := range a.registry.All() {
				rows = append(rows, row{Name: d.Name, Label: d.Label, Aliases: d.Aliases, Kind: d.Kind(), Installed: len(installed[d.Name])})
			}
			if outputJSON {
				return writeJSON(cmd, rows)
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{r.Name, r.Label, tui.NonEmptyOrDash(strings.Join(r.Aliases, ",")), r.Kind, fmt.Sprint(r.Installed)})
			}
			return tui.WriteTable(cmd.OutOrStdout(), []string{"NAME", "LABEL", "ALIASES", "KIND", "INSTALLED"}, table)
		}),
	}
}
