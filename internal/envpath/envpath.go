// Package envpath keeps the bin directories of installed component versions
// on the user's PATH.
package envpath

import (
	"log"
	"os"
	"sort"
	"strings"

	"devstack/internal/components"
	"devstack/internal/logx"
	"devstack/internal/paths"
	"devstack/internal/versions"
)

// Entry is one PATH directory annotated for diagnostics.
type Entry struct {
	Dir     string `json:"dir"`
	Managed bool   `json:"managed"`
	Exists  bool   `json:"exists"`
}

// Manager edits the persisted user PATH and the PATH of the running process.
// Entries it did not recognise as managed are written back unchanged and in
// their original order.
type Manager struct {
	Registry *components.Registry
	Store    *versions.Store
	ToolsDir string
	BinDir   string
	User     EnvStore
	Process  EnvStore
	Logger   *log.Logger
}

func (m *Manager) logf(format string, args ...any) {
	logx.OrDiscard(m.Logger).Printf(format, args...)
}

// ComputeManagedDirectories returns the bin directory of every installed
// version, followed by the launcher directory when it exists.
func (m *Manager) ComputeManagedDirectories() []string {
	var dirs []string
	seen := map[string]bool{}
	add := func(dir string) {
		key := paths.Normalize(dir)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		dirs = append(dirs, dir)
	}

	installed := m.Store.ListAllInstalled()
	names := make([]string, 0, len(installed))
	for name := range installed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		desc, ok := m.Registry.Get(name)
		if !ok {
			continue
		}
		for _, v := range installed[name] {
			add(desc.BinDir(m.ToolsDir, v))
		}
	}
	if ok, _ := paths.DirExists(m.BinDir); ok {
		add(m.BinDir)
	}
	return dirs
}

// IsManaged reports whether dir belongs to DevStack: it lies under a
// component install root or is the launcher directory.
func (m *Manager) IsManaged(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	if m.BinDir != "" && paths.SameDir(dir, m.BinDir) {
		return true
	}
	for _, desc := range m.Registry.All() {
		if paths.Within(dir, desc.InstallRoot(m.ToolsDir)) {
			return true
		}
	}
	return false
}

// AddBinDirsToPath appends the managed directories missing from the user
// PATH and from the process PATH. It returns the directories added to the
// user PATH; a second call adds nothing.
func (m *Manager) AddBinDirsToPath() ([]string, error) {
	managed := m.ComputeManagedDirectories()

	added, err := m.edit(m.User, func(entries []string) []string {
		return appendMissing(entries, managed)
	})
	if err != nil {
		return nil, err
	}
	if _, err := m.edit(m.Process, func(entries []string) []string {
		return appendMissing(entries, managed)
	}); err != nil {
		return added, err
	}
	if len(added) > 0 {
		m.logf("path: added %s", strings.Join(added, ", "))
	}
	return added, nil
}

// RemoveAllDevStackFromPath drops every managed entry from the user PATH and
// the process PATH and returns the entries removed from the user PATH.
func (m *Manager) RemoveAllDevStackFromPath() ([]string, error) {
	return m.remove(m.IsManaged)
}

// RemoveFromPath drops the given directories. Directories that are not
// managed by DevStack are left alone even when listed.
func (m *Manager) RemoveFromPath(dirs []string) ([]string, error) {
	targets := map[string]bool{}
	for _, d := range dirs {
		if key := paths.Normalize(d); key != "" {
			targets[key] = true
		}
	}
	return m.remove(func(entry string) bool {
		return targets[paths.Normalize(entry)] && m.IsManaged(entry)
	})
}

func (m *Manager) remove(match func(string) bool) ([]string, error) {
	filter := func(entries []string) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			if !match(e) {
				out = append(out, e)
			}
		}
		return out
	}

	removed, err := m.edit(m.User, filter)
	if err != nil {
		return nil, err
	}
	if _, err := m.edit(m.Process, filter); err != nil {
		return removed, err
	}
	if len(removed) > 0 {
		m.logf("path: removed %s", strings.Join(removed, ", "))
	}
	return removed, nil
}

// ListCurrentPath annotates the entries of the user PATH.
func (m *Manager) ListCurrentPath() ([]Entry, error) {
	value, err := m.User.Get(PathKey)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, dir := range Split(value) {
		if dir == "" {
			continue
		}
		exists, _ := paths.DirExists(dir)
		out = append(out, Entry{Dir: dir, Managed: m.IsManaged(dir), Exists: exists})
	}
	return out, nil
}

// edit rewrites PATH in store when fn changes it and returns the entries
// that were added or removed.
func (m *Manager) edit(store EnvStore, fn func([]string) []string) ([]string, error) {
	if store == nil {
		return nil, nil
	}
	value, err := store.Get(PathKey)
	if err != nil {
		return nil, err
	}
	before := Split(value)
	after := fn(before)
	changed := diff(before, after)
	if len(changed) == 0 {
		return nil, nil
	}
	if err := store.Set(PathKey, Join(after)); err != nil {
		return nil, err
	}
	return changed, nil
}

// Split breaks a PATH value into its raw entries. An empty value has none.
func Split(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, string(os.PathListSeparator))
}

// Join is the inverse of Split.
func Join(entries []string) string {
	return strings.Join(entries, string(os.PathListSeparator))
}

func appendMissing(entries, dirs []string) []string {
	present := map[string]bool{}
	for _, e := range entries {
		present[paths.Normalize(e)] = true
	}
	out := append([]string(nil), entries...)
	for _, d := range dirs {
		key := paths.Normalize(d)
		if present[key] {
			continue
		}
		present[key] = true
		out = append(out, d)
	}
	return out
}

// diff returns the entries present in exactly one of a and b, in order.
func diff(a, b []string) []string {
	count := map[string]int{}
	for _, e := range a {
		count[e]++
	}
	for _, e := range b {
		count[e]--
	}
	var out []string
	for _, list := range [][]string{a, b} {
		for _, e := range list {
			if count[e] != 0 {
				out = append(out, e)
				count[e] = 0
			}
		}
	}
	return out
}
