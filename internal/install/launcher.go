package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/renameio/v2"

	"devstack/internal/components"
)

// LauncherPath returns where the global launcher of a version lives, or an
// empty string when the component has none.
func (m *Manager) LauncherPath(desc components.Descriptor, version string) string {
	name := desc.ShortcutName(version)
	if name == "" || m.BinDir == "" {
		return ""
	}
	return filepath.Join(m.BinDir, name)
}

// AliasPath returns where the on-demand launcher of a version lives.
func (m *Manager) AliasPath(desc components.Descriptor, version string) string {
	if m.BinDir == "" {
		return ""
	}
	return filepath.Join(m.BinDir, desc.AliasName(version))
}

// CreateAlias writes a launcher named after the component and version, such
// as php8.3.1, for any installed version. Unlike the launchers written on
// install it exists only on request; uninstalling the version removes it.
func (m *Manager) CreateAlias(name, version string) (string, error) {
	desc, err := m.Registry.Lookup(name)
	if err != nil {
		return "", err
	}
	version = strings.TrimSpace(version)
	if err := m.checkVersion(desc, version); err != nil {
		return "", err
	}
	if !m.complete(desc, version) {
		return "", fmt.Errorf("%w: %s %s", ErrNotInstalled, desc.Name, version)
	}
	path := m.AliasPath(desc, version)
	if path == "" {
		return "", fmt.Errorf("alias %s %s: no bin directory configured", desc.Name, version)
	}
	if err := m.writeScript(path, desc.ExecutablePath(m.ToolsDir, version)); err != nil {
		return "", err
	}
	m.logf("alias %s %s written to %s", desc.Name, version, path)
	return path, nil
}

func (m *Manager) writeLauncher(desc components.Descriptor, version string) (string, error) {
	path := m.LauncherPath(desc, version)
	if path == "" {
		return "", nil
	}
	if err := m.writeScript(path, desc.ExecutablePath(m.ToolsDir, version)); err != nil {
		return "", err
	}
	return path, nil
}

func (m *Manager) writeScript(path, exe string) error {
	if err := os.MkdirAll(m.BinDir, 0o755); err != nil {
		return fmt.Errorf("prepare bin dir: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(launcherScript(exe)), 0o755); err != nil {
		return fmt.Errorf("write launcher: %w", err)
	}
	return nil
}

// removeLauncher drops both the install launcher and any on-demand alias.
func (m *Manager) removeLauncher(desc components.Descriptor, version string) error {
	var errs []error
	for _, path := range []string{m.LauncherPath(desc, version), m.AliasPath(desc, version)} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove launcher: %w", err))
		}
	}
	return errors.Join(errs...)
}

func launcherScript(exe string) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf("@echo off\r\n\"%s\" %%*\r\n", exe)
	}
	return fmt.Sprintf("#!/bin/sh\nexec '%s' \"$@\"\n", exe)
}
