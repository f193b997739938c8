package components

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
)

// ErrUnknownComponent is returned when a name is not present in the registry.
var ErrUnknownComponent = errors.New("unknown component")

const (
	nameToken    = "{name}"
	versionToken = "{version}"
	dirToken     = "{dir}"

	// DefaultFolderPattern names version directories beneath an install root.
	DefaultFolderPattern = nameToken + "-" + versionToken
)

// Descriptor holds the static metadata for a managed component.
type Descriptor struct {
	Name                 string   `json:"name" yaml:"name"`
	Aliases              []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Label                string   `json:"label,omitempty" yaml:"label,omitempty"`
	Dir                  string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	VersionFolderPattern string   `json:"version_folder_pattern" yaml:"version_folder_pattern"`
	ExecutablePattern    string   `json:"executable_pattern" yaml:"executable_pattern"`
	ExecutableFolder     string   `json:"executable_folder,omitempty" yaml:"executable_folder,omitempty"`
	BinFolder            string   `json:"bin_folder,omitempty" yaml:"bin_folder,omitempty"`
	ProcessName          string   `json:"process_name,omitempty" yaml:"process_name,omitempty"`
	IsService            bool     `json:"is_service" yaml:"is_service"`
	IsCommandLine        bool     `json:"is_command_line" yaml:"is_command_line"`
	ShortcutTemplate     string   `json:"shortcut_template,omitempty" yaml:"shortcut_template,omitempty"`
	MaxWorkers           int      `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	Args                 []string `json:"args,omitempty" yaml:"args,omitempty"`
}

func (d Descriptor) normalized() Descriptor {
	d.Name = strings.ToLower(strings.TrimSpace(d.Name))
	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" && a != d.Name {
			aliases = append(aliases, a)
		}
	}
	d.Aliases = aliases
	if d.Label == "" {
		d.Label = d.Name
	}
	if d.Dir == "" {
		d.Dir = d.Name
	}
	if d.VersionFolderPattern == "" {
		d.VersionFolderPattern = DefaultFolderPattern
	}
	if d.BinFolder == "" {
		d.BinFolder = d.ExecutableFolder
	}
	if d.ProcessName == "" {
		base := d.ExecutablePattern
		if i := strings.Index(base, versionToken); i >= 0 {
			base = base[:i]
		}
		d.ProcessName = strings.TrimRight(strings.TrimSuffix(base, filepath.Ext(base)), "-_.")
	}
	if d.IsService && d.MaxWorkers < 1 {
		d.MaxWorkers = 1
	}
	return d
}

// InstallRoot is the directory holding every version of the component.
func (d Descriptor) InstallRoot(toolsDir string) string {
	if filepath.IsAbs(d.Dir) {
		return filepath.Clean(d.Dir)
	}
	return filepath.Join(toolsDir, d.Dir)
}

// FolderName renders the version directory name for version.
func (d Descriptor) FolderName(version string) string {
	name := strings.ReplaceAll(d.VersionFolderPattern, nameToken, d.Name)
	return strings.ReplaceAll(name, versionToken, version)
}

// VersionGlob compiles a matcher for version directory names. The version part
// is matched with versionPattern, itself a glob such as "*" or "8.*".
func (d Descriptor) VersionGlob(versionPattern string) (glob.Glob, error) {
	prefix, suffix := d.folderAffixes()
	return glob.Compile(glob.QuoteMeta(prefix) + versionPattern + glob.QuoteMeta(suffix))
}

// ParseFolder extracts the version from a version directory name. Names that do
// not follow the folder pattern, or whose version part has no digit, are rejected.
func (d Descriptor) ParseFolder(dirName string) (string, bool) {
	g, err := d.VersionGlob("*")
	if err != nil || !g.Match(dirName) {
		return "", false
	}
	prefix, suffix := d.folderAffixes()
	if len(dirName) <= len(prefix)+len(suffix) {
		return "", false
	}
	version := dirName[len(prefix) : len(dirName)-len(suffix)]
	if !strings.ContainsFunc(version, unicode.IsDigit) || strings.ContainsAny(version, `/\`) {
		return "", false
	}
	return version, true
}

func (d Descriptor) folderAffixes() (string, string) {
	pattern := strings.ReplaceAll(d.VersionFolderPattern, nameToken, d.Name)
	idx := strings.Index(pattern, versionToken)
	if idx < 0 {
		return pattern, ""
	}
	return pattern[:idx], pattern[idx+len(versionToken):]
}

// VersionDir is the install directory of a single version.
func (d Descriptor) VersionDir(toolsDir, version string) string {
	return filepath.Join(d.InstallRoot(toolsDir), d.FolderName(version))
}

// ExecutablePath resolves the expected executable of a version.
func (d Descriptor) ExecutablePath(toolsDir, version string) string {
	name := strings.ReplaceAll(executableName(d.ExecutablePattern), versionToken, version)
	return filepath.Join(d.subdir(toolsDir, version, d.ExecutableFolder), name)
}

// BinDir is the directory a version contributes to PATH.
func (d Descriptor) BinDir(toolsDir, version string) string {
	return d.subdir(toolsDir, version, d.BinFolder)
}

func (d Descriptor) subdir(toolsDir, version, folder string) string {
	folder = strings.ReplaceAll(folder, versionToken, version)
	if folder == "" {
		return d.VersionDir(toolsDir, version)
	}
	if filepath.IsAbs(folder) {
		return filepath.Clean(folder)
	}
	return filepath.Join(d.VersionDir(toolsDir, version), folder)
}

// ShortcutName returns the file name of the global launcher for a version, or
// an empty string when the component exposes none.
func (d Descriptor) ShortcutName(version string) string {
	if d.ShortcutTemplate == "" {
		return ""
	}
	name := strings.ReplaceAll(d.ShortcutTemplate, versionToken, version)
	if ext := filepath.Ext(name); ext != "" && !strings.ContainsFunc(ext, unicode.IsDigit) {
		name = strings.TrimSuffix(name, ext)
	}
	if runtime.GOOS == "windows" {
		name += ".cmd"
	}
	return name
}

// AliasName returns the file name of an on-demand launcher for a version,
// such as php8.3.1. Unlike ShortcutName every component has one.
func (d Descriptor) AliasName(version string) string {
	name := d.Name + version
	if runtime.GOOS == "windows" {
		name += ".cmd"
	}
	return name
}

// LaunchArgs expands {version} and {dir} placeholders in the descriptor args.
func (d Descriptor) LaunchArgs(args []string, toolsDir, version string) []string {
	if args == nil {
		args = d.Args
	}
	out := make([]string, len(args))
	dir := d.VersionDir(toolsDir, version)
	for i, arg := range args {
		arg = strings.ReplaceAll(arg, versionToken, version)
		out[i] = strings.ReplaceAll(arg, dirToken, dir)
	}
	return out
}

// Workers returns how many processes a start should launch.
func (d Descriptor) Workers(override int) int {
	if override > 0 {
		return override
	}
	if d.MaxWorkers > 0 {
		return d.MaxWorkers
	}
	return 1
}

// Kind summarizes how the component runs.
func (d Descriptor) Kind() string {
	switch {
	case d.IsService:
		return "service"
	case d.IsCommandLine:
		return "command-line"
	default:
		return "tool"
	}
}

func executableName(base string) string {
	if runtime.GOOS != "windows" || filepath.Ext(base) != "" {
		return base
	}
	return base + ".exe"
}
