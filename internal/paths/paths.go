package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// RootEnv overrides the default DevStack root when the --root flag is empty.
const RootEnv = "DEVSTACK_ROOT"

// Layout captures canonical locations under a DevStack root.
type Layout struct {
	Root        string
	ConfigFile  string
	ToolsDir    string
	BinDir      string
	ConfigsDir  string
	LogsDir     string
	LogFile     string
	TmpDir      string
	DownloadDir string
	EnvFile     string
	EnvScript   string
	CatalogFile string
}

// Resolve determines the DevStack root using the optional --root flag, then
// DEVSTACK_ROOT, then ~/.devstack.
func Resolve(rootFlag string) (Layout, error) {
	var (
		root string
		err  error
	)

	switch {
	case rootFlag != "":
		root, err = filepath.Abs(rootFlag)
	case os.Getenv(RootEnv) != "":
		root, err = filepath.Abs(os.Getenv(RootEnv))
	default:
		var home string
		home, err = os.UserHomeDir()
		if err != nil {
			return Layout{}, fmt.Errorf("detect user home: %w", err)
		}
		root = filepath.Join(home, ".devstack")
	}
	if err != nil {
		return Layout{}, fmt.Errorf("resolve devstack root: %w", err)
	}

	return NewLayout(root), nil
}

// NewLayout builds the layout for an absolute root without touching disk.
func NewLayout(root string) Layout {
	logsDir := filepath.Join(root, "logs")
	tmpDir := filepath.Join(root, "tmp")
	return Layout{
		Root:        root,
		ConfigFile:  filepath.Join(root, "devstack.yaml"),
		ToolsDir:    filepath.Join(root, "tools"),
		BinDir:      filepath.Join(root, "bin"),
		ConfigsDir:  filepath.Join(root, "configs"),
		LogsDir:     logsDir,
		LogFile:     filepath.Join(logsDir, "devstack.log"),
		TmpDir:      tmpDir,
		DownloadDir: filepath.Join(tmpDir, "downloads"),
		EnvFile:     filepath.Join(root, "env.yaml"),
		EnvScript:   filepath.Join(root, "env.sh"),
		CatalogFile: filepath.Join(root, "catalog.yaml"),
	}
}

// ResolveFile returns value unchanged when absolute, otherwise joined to the root.
func (l Layout) ResolveFile(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(l.Root, value)
}

// EnsureDirs creates the tools, bin, logs and tmp hierarchy.
func (l Layout) EnsureDirs() error {
	dirs := []string{l.Root, l.ToolsDir, l.BinDir, l.LogsDir, l.TmpDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Normalize cleans a directory for comparison. Windows paths compare
// case-insensitively; the returned value is never written back to disk or PATH.
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
	}
	return path
}

// SameDir reports whether two paths name the same directory after normalization.
func SameDir(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// Within reports whether path equals dir or lies beneath it. The test is
// separator aware, so /tools/php/php-8.1.0 is not within /tools/php/php-8.1.
func Within(path, dir string) bool {
	np, nd := Normalize(path), Normalize(dir)
	if np == "" || nd == "" {
		return false
	}
	if np == nd {
		return true
	}
	rel, err := filepath.Rel(nd, np)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Real resolves symlinks in path. Process tables report resolved image paths,
// so install directories reached through a link must be resolved before they
// are compared. A path that cannot be resolved is returned unchanged.
func Real(path string) string {
	if path == "" {
		return ""
	}
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}
