package versions

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"devstack/internal/components"
	"devstack/internal/logx"
)

// InstalledVersion is a version directory found on disk.
type InstalledVersion struct {
	Component string `json:"component"`
	Version   string `json:"version"`
	Dir       string `json:"dir"`
}

// Store enumerates installed versions by scanning install roots. Nothing is
// cached: every call re-reads the filesystem.
type Store struct {
	Registry *components.Registry
	ToolsDir string
	Logger   *log.Logger
}

// NewStore builds a Store over toolsDir.
func NewStore(reg *components.Registry, toolsDir string, logger *log.Logger) *Store {
	return &Store{Registry: reg, ToolsDir: toolsDir, Logger: logx.OrDiscard(logger)}
}

// Installed returns the installed versions of a component in version order.
// Unknown components, missing install roots and unreadable directories all
// yield an empty result.
func (s *Store) Installed(name string) []InstalledVersion {
	desc, ok := s.Registry.Get(name)
	if !ok {
		return nil
	}
	root := desc.InstallRoot(s.ToolsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			logx.OrDiscard(s.Logger).Printf("list %s: %v", desc.Name, err)
		}
		return nil
	}

	var found []InstalledVersion
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, ok := desc.ParseFolder(entry.Name())
		if !ok {
			continue
		}
		found = append(found, InstalledVersion{
			Component: desc.Name,
			Version:   version,
			Dir:       desc.VersionDir(s.ToolsDir, version),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return Compare(found[i].Version, found[j].Version) < 0
	})
	return found
}

// ListInstalled returns the installed version strings of a component.
func (s *Store) ListInstalled(name string) []string {
	installed := s.Installed(name)
	out := make([]string, 0, len(installed))
	for _, iv := range installed {
		out = append(out, iv.Version)
	}
	return out
}

// ListAllInstalled maps every component with at least one installed version
// to its versions.
func (s *Store) ListAllInstalled() map[string][]string {
	out := make(map[string][]string)
	for _, name := range s.Registry.Names() {
		if list := s.ListInstalled(name); len(list) > 0 {
			out[name] = list
		}
	}
	return out
}

// IsInstalled reports whether the version directory of a component exists.
func (s *Store) IsInstalled(name, version string) bool {
	for _, v := range s.ListInstalled(name) {
		if v == version {
			return true
		}
	}
	return false
}

// Compare orders versions by numeric segments, so 8.10.0 sorts after 8.2.0.
// Versions with equal numbers fall back to a plain string comparison, which
// puts 8.0.51a after 8.0.51.
func Compare(a, b string) int {
	ap, bp := numericParts(a), numericParts(b)
	for len(ap) < len(bp) {
		ap = append(ap, 0)
	}
	for len(bp) < len(ap) {
		bp = append(bp, 0)
	}
	for i := range ap {
		if ap[i] != bp[i] {
			if ap[i] < bp[i] {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

// Sort orders versions ascending in place.
func Sort(list []string) {
	sort.SliceStable(list, func(i, j int) bool { return Compare(list[i], list[j]) < 0 })
}

// Latest returns the highest version, or an empty string.
func Latest(list []string) string {
	latest := ""
	for _, v := range list {
		if latest == "" || Compare(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

func numericParts(version string) []int {
	var parts []int
	current := strings.Builder{}
	for _, r := range version {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			val, _ := strconv.Atoi(current.String())
			parts = append(parts, val)
			current.Reset()
		}
	}
	if current.Len() > 0 {
		val, _ := strconv.Atoi(current.String())
		parts = append(parts, val)
	}
	return parts
}
