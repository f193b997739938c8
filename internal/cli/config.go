package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"devstack/internal/config"
	"devstack/internal/paths"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the DevStack configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigEditCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the configuration in $EDITOR, creating it with defaults first",
		Args:  cobra.NoArgs,
		RunE:  runConfigEdit,
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Report configuration problems",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			results := a.cfg.Validate(a.registry.Names())
			if outputJSON {
				if results == nil {
					results = []config.ValidationResult{}
				}
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			}

			var errCount int
			for _, r := range results {
				if r.Level == "error" {
					errCount++
				}
				if !outputJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Level, r.Message)
				}
			}
			if errCount > 0 {
				return fmt.Errorf("configuration has %d errors", errCount)
			}
			return nil
		}),
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	layout, err := paths.Resolve(rootDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return err
	}

	if outputJSON {
		return writeJSON(cmd, cfg)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	layout, err := paths.Resolve(rootDir)
	if err != nil {
		return err
	}

	if err := layout.EnsureDirs(); err != nil {
		return err
	}

	if err := ensureConfigFileExists(layout); err != nil {
		return err
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = defaultEditor
	}

	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("invalid EDITOR value: %q", editor)
	}

	parts = append(parts, layout.ConfigFile)

	execCmd := exec.CommandContext(cmd.Context(), parts[0], parts[1:]...)
	execCmd.Stdout = cmd.OutOrStdout()
	execCmd.Stderr = cmd.ErrOrStderr()
	execCmd.Stdin = cmd.InOrStdin()
	execCmd.Dir = layout.Root

	if err := execCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}
	return nil
}

func ensureConfigFileExists(layout paths.Layout) error {
	if _, err := os.Stat(layout.ConfigFile); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}

	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(layout.ConfigFile, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
