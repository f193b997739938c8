package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"devstack/internal/install"
	"devstack/internal/tui"
)

func newSiteCmd() *cobra.Command {
	var opts install.SiteOptions
	cmd := &cobra.Command{
		Use:   "site <domain>",
		Short: "Generate an nginx site serving <domain>.localhost",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			opts.Domain = args[0]
			path, err := a.installer.CreateSiteConfig(opts)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd, map[string]string{"domain": opts.Domain, "path": path})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "site %s.localhost written to %s\n", opts.Domain, path)
			fmt.Fprintln(cmd.OutOrStdout(), "restart nginx to pick it up")
			return nil
		}),
	}
	cmd.Flags().StringVar(&opts.Root, "root", "", "Document root (default <sites.workspace>/<domain> when it exists)")
	cmd.Flags().StringVar(&opts.PHPUpstream, "php", "", "PHP version or host:port to pass PHP requests to")
	cmd.Flags().StringVar(&opts.NginxVersion, "nginx", "", "nginx version to configure (default latest installed)")
	cmd.Flags().StringVar(&opts.Index, "index", "", "Value of the index directive")
	return cmd
}

func newSitesCmd() *cobra.Command {
	var nginxVersion string
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List generated nginx sites",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			sites, err := a.installer.ListSites(nginxVersion)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd, sites)
			}
			rows := make([][]string, 0, len(sites))
			for _, s := range sites {
				rows = append(rows, []string{s.ServerName, s.Root, s.Upstream})
			}
			return tui.WriteTable(cmd.OutOrStdout(), []string{"SERVER", "ROOT", "UPSTREAM"}, rows)
		}),
	}
	cmd.Flags().StringVar(&nginxVersion, "nginx", "", "nginx version (default latest installed)")
	return cmd
}
