package install

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"devstack/internal/components"
	"devstack/internal/config"
	"devstack/internal/logx"
	"devstack/internal/paths"
	"devstack/internal/process"
	"devstack/internal/versions"
)

// Common errors returned by the install manager.
var (
	ErrUnknownComponent   = components.ErrUnknownComponent
	ErrNotInstalled       = process.ErrNotInstalled
	ErrExecutableNotFound = process.ErrExecutableNotFound

	// ErrInvalidVersionDir indicates a version or directory that does not
	// follow the component's folder naming convention.
	ErrInvalidVersionDir = errors.New("not a version directory")

	// ErrNoVersion indicates no version was given and none is available.
	ErrNoVersion = errors.New("no version available")

	// ErrStillRunning indicates a version kept running after a stop request.
	ErrStillRunning = errors.New("still running")
)

// Supervisor is the part of the process supervisor the manager depends on.
type Supervisor interface {
	Status(name, version string) (process.Status, error)
	Stop(ctx context.Context, name, version string) error
}

// Recorder observes completed operations.
type Recorder interface {
	Observe(op, component string, err error)
}

// Phase names a step of an install as reported to Manager.Progress.
type Phase string

const (
	PhaseResolve Phase = "resolving"
	PhaseFetch   Phase = "fetching"
	PhaseVerify  Phase = "verifying"
	PhaseCommit  Phase = "committing"
	PhaseLink    Phase = "linking"
)

// Manager installs and removes component versions and writes derived
// artifacts. It never touches PATH; callers reconcile PATH afterwards.
type Manager struct {
	Registry   *components.Registry
	Store      *versions.Store
	ToolsDir   string
	BinDir     string
	Fetcher    Fetcher
	Supervisor Supervisor
	Sites      config.SitesConfig
	Logger     *log.Logger
	Metrics    Recorder
	Now        func() time.Time
	// Progress, when set, is called as a fresh install moves through its
	// phases. Installs that find the version already present report nothing.
	Progress func(component, version string, phase Phase)
}

// Result describes a completed install.
type Result struct {
	Component        string `json:"component"`
	Version          string `json:"version"`
	Dir              string `json:"dir"`
	AlreadyInstalled bool   `json:"already_installed"`
	Launcher         string `json:"launcher,omitempty"`
}

// UninstallResult lists the versions that were removed.
type UninstallResult struct {
	Component string   `json:"component"`
	Removed   []string `json:"removed"`
	Stopped   []string `json:"stopped,omitempty"`
}

// ResetResult pairs the removal and reinstall halves of a reset.
type ResetResult struct {
	Component string          `json:"component"`
	Removed   UninstallResult `json:"removed"`
	Installed []Result        `json:"installed"`
}

func (m *Manager) logf(format string, args ...any) {
	logx.OrDiscard(m.Logger).Printf(format, args...)
}

func (m *Manager) observe(op, component string, err error) {
	if m.Metrics != nil {
		m.Metrics.Observe(op, component, err)
	}
}

func (m *Manager) phase(component, version string, p Phase) {
	if m.Progress != nil {
		m.Progress(component, version, p)
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Install makes version of component available on disk. An empty version
// selects the latest available one. Installing a version whose directory and
// executable are already present succeeds without fetching anything.
func (m *Manager) Install(ctx context.Context, name, version string) (Result, error) {
	desc, err := m.Registry.Lookup(name)
	if err != nil {
		return Result{}, err
	}
	res, err := m.install(ctx, desc, strings.TrimSpace(version))
	m.observe("install", desc.Name, err)
	if err != nil {
		m.logf("install %s %s failed: %v", desc.Name, version, err)
		return res, &process.OpError{Op: "install", Component: desc.Name, Version: version, Err: err}
	}
	return res, nil
}

func (m *Manager) install(ctx context.Context, desc components.Descriptor, version string) (Result, error) {
	if version == "" {
		m.phase(desc.Name, "", PhaseResolve)
		available, err := m.Fetcher.Available(desc.Name)
		if err != nil {
			return Result{}, err
		}
		version = versions.Latest(available)
		if version == "" {
			return Result{}, ErrNoVersion
		}
	}
	if err := m.checkVersion(desc, version); err != nil {
		return Result{}, err
	}

	res := Result{Component: desc.Name, Version: version, Dir: desc.VersionDir(m.ToolsDir, version)}
	if m.complete(desc, version) {
		res.AlreadyInstalled = true
		launcher, err := m.writeLauncher(desc, version)
		res.Launcher = launcher
		return res, err
	}

	root := desc.InstallRoot(m.ToolsDir)
	unlock, err := acquireLock(ctx, root, desc.Name)
	if err != nil {
		return res, err
	}
	defer unlock()

	if m.complete(desc, version) {
		res.AlreadyInstalled = true
		launcher, err := m.writeLauncher(desc, version)
		res.Launcher = launcher
		return res, err
	}

	tmpDir, err := os.MkdirTemp(root, "."+desc.Name+"-install-")
	if err != nil {
		return res, fmt.Errorf("create temp dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmpDir)
		}
	}()

	m.phase(desc.Name, version, PhaseFetch)
	receipt, err := m.Fetcher.Fetch(ctx, desc, version, tmpDir)
	if err != nil {
		return res, err
	}
	m.phase(desc.Name, version, PhaseVerify)
	rel, err := filepath.Rel(desc.VersionDir(m.ToolsDir, version), desc.ExecutablePath(m.ToolsDir, version))
	if err != nil {
		return res, err
	}
	if ok, _ := paths.FileExists(filepath.Join(tmpDir, rel)); !ok {
		return res, fmt.Errorf("%w: %s missing from fetched files", ErrExecutableNotFound, filepath.ToSlash(rel))
	}

	m.phase(desc.Name, version, PhaseCommit)
	// A partial install left behind by an earlier failure is replaced.
	if err := os.RemoveAll(res.Dir); err != nil {
		return res, fmt.Errorf("replace version dir: %w", err)
	}
	if err := os.Rename(tmpDir, res.Dir); err != nil {
		return res, fmt.Errorf("commit version dir: %w", err)
	}
	committed = true
	m.logf("installed %s %s into %s", desc.Name, version, res.Dir)

	if err := updateManifest(m.ToolsDir, func(man *Manifest) {
		man.Entries[manifestKey(desc.Name, version)] = ManifestEntry{
			Component:   desc.Name,
			Version:     version,
			URL:         receipt.URL,
			Checksum:    receipt.Checksum,
			InstalledAt: m.now().UTC().Format(time.RFC3339),
		}
	}); err != nil {
		m.logf("install %s %s: %v", desc.Name, version, err)
	}

	if m.LauncherPath(desc, version) != "" {
		m.phase(desc.Name, version, PhaseLink)
	}
	res.Launcher, err = m.writeLauncher(desc, version)
	return res, err
}

// Reset reinstalls a component from scratch. With a version, that version is
// removed when present and installed again. Without one, every installed
// version is removed and reinstalled, and a component with nothing installed
// gets its latest version. Versions stopped by the removal stay stopped. A
// failed removal leaves everything else in place and installs nothing.
func (m *Manager) Reset(ctx context.Context, name, version string) (ResetResult, error) {
	desc, err := m.Registry.Lookup(name)
	if err != nil {
		return ResetResult{}, err
	}
	version = strings.TrimSpace(version)
	res := ResetResult{Component: desc.Name, Removed: UninstallResult{Component: desc.Name}}

	targets := []string{version}
	if version == "" {
		if targets = m.Store.ListInstalled(desc.Name); len(targets) == 0 {
			targets = []string{""}
		}
	} else if strings.ContainsAny(version, "*?[{") {
		return res, &process.OpError{Op: "reset", Component: desc.Name, Version: version,
			Err: fmt.Errorf("%w: reset takes one exact version, not %q", ErrInvalidVersionDir, version)}
	} else if err := m.checkVersion(desc, version); err != nil {
		return res, &process.OpError{Op: "reset", Component: desc.Name, Version: version, Err: err}
	}

	removed, err := m.Uninstall(ctx, desc.Name, version)
	if err != nil && !errors.Is(err, ErrNotInstalled) {
		return res, err
	}
	if err == nil {
		res.Removed = removed
	}

	var errs []error
	for _, v := range targets {
		installed, err := m.Install(ctx, desc.Name, v)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.Installed = append(res.Installed, installed)
	}
	m.logf("reset %s: removed %v, reinstalled %d", desc.Name, res.Removed.Removed, len(res.Installed))
	return res, errors.Join(errs...)
}

// checkVersion rejects versions whose folder name would not parse back to the
// same version, which also rules out path separators.
func (m *Manager) checkVersion(desc components.Descriptor, version string) error {
	parsed, ok := desc.ParseFolder(desc.FolderName(version))
	if !ok || parsed != version {
		return fmt.Errorf("%w: %q", ErrInvalidVersionDir, version)
	}
	return nil
}

func (m *Manager) complete(desc components.Descriptor, version string) bool {
	if ok, _ := paths.DirExists(desc.VersionDir(m.ToolsDir, version)); !ok {
		return false
	}
	ok, _ := paths.FileExists(desc.ExecutablePath(m.ToolsDir, version))
	return ok
}

// Uninstall removes installed versions of a component. version may be a
// single version, a glob such as "8.*", or empty/"*" for every version. The
// every-version form succeeds with an empty result when nothing is installed.
// Running versions are stopped first; a version that keeps running is not
// removed. Directories that do not follow the folder naming convention are
// never removed.
func (m *Manager) Uninstall(ctx context.Context, name, version string) (UninstallResult, error) {
	desc, err := m.Registry.Lookup(name)
	if err != nil {
		return UninstallResult{}, err
	}
	res, err := m.uninstall(ctx, desc, strings.TrimSpace(version))
	m.observe("uninstall", desc.Name, err)
	if err != nil {
		m.logf("uninstall %s %s failed: %v", desc.Name, version, err)
		return res, &process.OpError{Op: "uninstall", Component: desc.Name, Version: version, Err: err}
	}
	return res, nil
}

func (m *Manager) uninstall(ctx context.Context, desc components.Descriptor, version string) (UninstallResult, error) {
	res := UninstallResult{Component: desc.Name}

	targets, err := m.uninstallTargets(desc, version)
	if err != nil || len(targets) == 0 {
		return res, err
	}

	root := desc.InstallRoot(m.ToolsDir)
	unlock, err := acquireLock(ctx, root, desc.Name)
	if err != nil {
		return res, err
	}
	defer unlock()

	var errs []error
	for _, v := range targets {
		stopped, err := m.removeVersion(ctx, desc, v)
		if stopped {
			res.Stopped = append(res.Stopped, v)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", v, err))
			continue
		}
		res.Removed = append(res.Removed, v)
	}

	if len(res.Removed) > 0 {
		if err := updateManifest(m.ToolsDir, func(man *Manifest) {
			for _, v := range res.Removed {
				delete(man.Entries, manifestKey(desc.Name, v))
			}
		}); err != nil {
			m.logf("uninstall %s: %v", desc.Name, err)
		}
	}
	// Drop the install root once the last version is gone.
	if len(m.Store.ListInstalled(desc.Name)) == 0 {
		unlock()
		_ = os.Remove(root)
	}
	return res, errors.Join(errs...)
}

func (m *Manager) uninstallTargets(desc components.Descriptor, version string) ([]string, error) {
	pattern := version
	if pattern == "" {
		pattern = "*"
	}
	exact := !strings.ContainsAny(pattern, "*?[{")
	if exact {
		if err := m.checkVersion(desc, version); err != nil {
			return nil, err
		}
		if ok, _ := paths.DirExists(desc.VersionDir(m.ToolsDir, version)); !ok {
			return nil, fmt.Errorf("%w: %s %s", ErrNotInstalled, desc.Name, version)
		}
		return []string{version}, nil
	}

	g, err := desc.VersionGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid version pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir(desc.InstallRoot(m.ToolsDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	var targets []string
	for _, entry := range entries {
		if !entry.IsDir() || !g.Match(entry.Name()) {
			continue
		}
		v, ok := desc.ParseFolder(entry.Name())
		if !ok {
			m.logf("uninstall %s: skipping %s, not a version directory", desc.Name, entry.Name())
			continue
		}
		targets = append(targets, v)
	}
	if len(targets) == 0 {
		// "Remove everything" of nothing is already satisfied.
		if pattern == "*" {
			m.logf("uninstall %s: nothing installed", desc.Name)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s %s", ErrNotInstalled, desc.Name, pattern)
	}
	versions.Sort(targets)
	return targets, nil
}

func (m *Manager) removeVersion(ctx context.Context, desc components.Descriptor, version string) (bool, error) {
	dir := desc.VersionDir(m.ToolsDir, version)
	root := desc.InstallRoot(m.ToolsDir)
	if !paths.Within(dir, root) || paths.SameDir(dir, root) {
		return false, fmt.Errorf("%w: %s", ErrInvalidVersionDir, dir)
	}

	stopped := false
	if m.Supervisor != nil && desc.IsService {
		st, err := m.Supervisor.Status(desc.Name, version)
		if err != nil {
			return false, err
		}
		if st.State == process.Running {
			if err := m.Supervisor.Stop(ctx, desc.Name, version); err != nil {
				return false, err
			}
			stopped = true
			st, err = m.Supervisor.Status(desc.Name, version)
			if err != nil {
				return stopped, err
			}
			if st.State == process.Running {
				return stopped, fmt.Errorf("%w: pids %v", ErrStillRunning, st.PIDs)
			}
		}
	}

	if err := m.removeLauncher(desc, version); err != nil {
		m.logf("uninstall %s %s: %v", desc.Name, version, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return stopped, fmt.Errorf("remove %s: %w", dir, err)
	}
	m.logf("uninstalled %s %s from %s", desc.Name, version, dir)
	return stopped, nil
}

// Receipts returns the manifest entries, for listing install provenance.
func (m *Manager) Receipts() (Manifest, error) {
	return LoadManifest(m.ToolsDir)
}
