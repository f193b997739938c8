package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	rootDir    string
	outputJSON bool
	noProgress bool
)

// Execute runs the root cobra command. Interrupts cancel the command
// context; bulk operations finish the current item and stop.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "devstack",
		Short:         "Install, run and manage local development toolchains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rootDir, "root", "", "DevStack root directory (default $DEVSTACK_ROOT or ~/.devstack)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newRestartCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newAliasCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPathCmd())
	cmd.AddCommand(newSiteCmd())
	cmd.AddCommand(newSitesCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newComponentsCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}
