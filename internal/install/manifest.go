package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

const manifestFileName = "manifest.json"

// ManifestEntry records how a version was installed.
type ManifestEntry struct {
	Component   string `json:"component"`
	Version     string `json:"version"`
	URL         string `json:"url,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	InstalledAt string `json:"installed_at"`
}

// Manifest is keyed by "component@version". It is informational: the version
// directories on disk stay the source of truth for what is installed.
type Manifest struct {
	Entries map[string]ManifestEntry `json:"entries"`
}

func manifestKey(component, version string) string {
	return component + "@" + version
}

// LoadManifest reads the manifest in toolsDir. A missing file is empty.
func LoadManifest(toolsDir string) (Manifest, error) {
	contents, err := os.ReadFile(filepath.Join(toolsDir, manifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{Entries: map[string]ManifestEntry{}}, nil
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(contents, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Entries == nil {
		manifest.Entries = map[string]ManifestEntry{}
	}
	return manifest, nil
}

// Lookup returns the entry for a component version.
func (m Manifest) Lookup(component, version string) (ManifestEntry, bool) {
	e, ok := m.Entries[manifestKey(component, version)]
	return e, ok
}

func saveManifest(toolsDir string, m Manifest) error {
	if err := os.MkdirAll(toolsDir, 0o755); err != nil {
		return fmt.Errorf("prepare manifest directory: %w", err)
	}
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(toolsDir, manifestFileName), buf, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func updateManifest(toolsDir string, fn func(*Manifest)) error {
	m, err := LoadManifest(toolsDir)
	if err != nil {
		return err
	}
	fn(&m)
	return saveManifest(toolsDir, m)
}
