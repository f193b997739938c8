package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"devstack/internal/paths"
)

var cleanDryRun bool

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove logs and temporary files under the DevStack root",
	}

	cmd.PersistentFlags().BoolVar(&cleanDryRun, "dry-run", false, "List what would be removed without deleting")

	cmd.AddCommand(newCleanLogsCmd())
	cmd.AddCommand(newCleanTmpCmd())
	cmd.AddCommand(newCleanAllCmd())

	return cmd
}

func newCleanLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Remove all log files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd, "logs", func(l paths.Layout) []string { return []string{l.LogsDir} })
		},
	}
}

func newCleanTmpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tmp",
		Short: "Remove cached downloads and leftover staging files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd, "tmp", func(l paths.Layout) []string { return []string{l.TmpDir} })
		},
	}
}

func newCleanAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Remove logs and temporary files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClean(cmd, "all", func(l paths.Layout) []string { return []string{l.LogsDir, l.TmpDir} })
		},
	}
}

type cleanResult struct {
	Removed    int   `json:"removed"`
	FreedBytes int64 `json:"freed_bytes"`
	Skipped    int   `json:"skipped"`
	DryRun     bool  `json:"dry_run"`
}

func runClean(cmd *cobra.Command, label string, dirs func(paths.Layout) []string) error {
	layout, err := resolveCleanLayout()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	result := cleanResult{DryRun: cleanDryRun}
	for _, dir := range dirs(layout) {
		files, err := listFiles(dir)
		if err != nil {
			return err
		}
		for _, path := range files {
			removeFileEntry(path, out, &result)
		}
	}
	return writeCleanResult(out, label, result)
}

func resolveCleanLayout() (paths.Layout, error) {
	layout, err := paths.Resolve(rootDir)
	if err != nil {
		return layout, err
	}
	exists, err := paths.DirExists(layout.Root)
	if err != nil {
		return layout, fmt.Errorf("stat devstack root: %w", err)
	}
	if !exists {
		return layout, fmt.Errorf("devstack root does not exist: %s", layout.Root)
	}
	return layout, nil
}

// listFiles returns every regular file beneath root. A missing root is empty.
func listFiles(root string) ([]string, error) {
	exists, err := paths.DirExists(root)
	if err != nil || !exists {
		return nil, err
	}

	var matches []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}

func removeFileEntry(path string, out io.Writer, result *cleanResult) {
	info, err := os.Stat(path)
	if err != nil {
		result.Skipped++
		return
	}
	size := info.Size()

	if cleanDryRun {
		if !outputJSON {
			fmt.Fprintf(out, "would remove %s (%s)\n", path, formatSize(size))
		}
		result.Removed++
		result.FreedBytes += size
		return
	}

	if err := os.Remove(path); err != nil {
		if !outputJSON {
			fmt.Fprintf(out, "error removing %s: %v\n", path, err)
		}
		result.Skipped++
		return
	}

	result.Removed++
	result.FreedBytes += size
	if !outputJSON {
		fmt.Fprintf(out, "removed %s (%s)\n", path, formatSize(size))
	}
}

func writeCleanResult(out io.Writer, label string, result cleanResult) error {
	if outputJSON {
		return json.NewEncoder(out).Encode(result)
	}

	action := "complete"
	if cleanDryRun {
		action = "(dry run)"
	}
	fmt.Fprintf(out, "\nClean %s %s: %d removed, %s freed, %d skipped\n",
		label, action, result.Removed, formatSize(result.FreedBytes), result.Skipped)
	return nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
