package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"devstack/internal/logx"
	"devstack/internal/paths"
)

func newLogsCmd() *cobra.Command {
	var lines int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the last lines of the DevStack log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layout, err := paths.Resolve(rootDir)
			if err != nil {
				return err
			}
			tail, err := logx.Tail(layout.LogFile, lines)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd, tail)
			}
			if len(tail) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries.")
				return nil
			}
			for _, line := range tail {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	return cmd
}
