package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"devstack/internal/components"
	"devstack/pkg/catalog"
)

// ErrNotInCatalog is returned when a version has no download entry.
var ErrNotInCatalog = errors.New("version not in catalog")

// Fetcher materializes a version's files into a directory.
type Fetcher interface {
	// Available lists the versions that can be fetched for a component.
	Available(component string) ([]string, error)
	// Fetch places the files of version into destDir, which already exists.
	Fetch(ctx context.Context, desc components.Descriptor, version, destDir string) (Receipt, error)
}

// Receipt describes where installed files came from.
type Receipt struct {
	URL      string `json:"url,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// CatalogFetcher downloads archives listed in a catalog file, verifies their
// sha256 and extracts them. Downloads are cached in DownloadDir.
type CatalogFetcher struct {
	CatalogPath string
	DownloadDir string
	Client      *http.Client
	UserAgent   string
}

func (f *CatalogFetcher) load() (*catalog.Catalog, error) {
	cat, err := catalog.Load(f.CatalogPath)
	if err != nil {
		var verrs catalog.ValidationErrors
		if errors.As(err, &verrs) && cat != nil {
			return cat, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return catalog.New(), nil
		}
		return nil, err
	}
	return cat, nil
}

// Available implements Fetcher.
func (f *CatalogFetcher) Available(component string) ([]string, error) {
	cat, err := f.load()
	if err != nil {
		return nil, err
	}
	return cat.Versions(component), nil
}

// Fetch implements Fetcher.
func (f *CatalogFetcher) Fetch(ctx context.Context, desc components.Descriptor, version, destDir string) (Receipt, error) {
	cat, err := f.load()
	if err != nil {
		return Receipt{}, err
	}
	entry, ok := cat.Find(desc.Name, version)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s %s", ErrNotInCatalog, desc.Name, version)
	}

	if err := os.MkdirAll(f.DownloadDir, 0o755); err != nil {
		return Receipt{}, fmt.Errorf("prepare downloads dir: %w", err)
	}
	archivePath, err := resolveArchivePath(f.DownloadDir, entry.URL)
	if err != nil {
		return Receipt{}, err
	}
	if err := f.ensureDownload(ctx, archivePath, entry.URL, entry.SHA256); err != nil {
		return Receipt{}, err
	}
	checksum, err := computeChecksum(archivePath)
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{URL: entry.URL, Checksum: checksum}

	if entry.Archive == catalog.ArchiveFile {
		rel, err := filepath.Rel(desc.VersionDir("", version), desc.ExecutablePath("", version))
		if err != nil {
			return Receipt{}, err
		}
		if err := copyFile(archivePath, filepath.Join(destDir, rel), 0o755); err != nil {
			return Receipt{}, fmt.Errorf("copy %s: %w", filepath.Base(archivePath), err)
		}
		return receipt, nil
	}

	if err := extractArchive(ctx, entry.Archive, archivePath, destDir); err != nil {
		return Receipt{}, err
	}
	if err := hoistSingleRoot(destDir); err != nil {
		return Receipt{}, fmt.Errorf("flatten archive: %w", err)
	}
	return receipt, nil
}

func (f *CatalogFetcher) ensureDownload(ctx context.Context, dest, downloadURL, checksum string) error {
	if _, err := os.Stat(dest); err == nil {
		if checksum == "" {
			return nil
		}
		if match, err := verifyChecksum(dest, checksum); err == nil && match {
			return nil
		}
	}
	return f.download(ctx, dest, downloadURL, checksum)
}

func (f *CatalogFetcher) download(ctx context.Context, dest, downloadURL, checksum string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	agent := f.UserAgent
	if agent == "" {
		agent = "devstack/1.0"
	}
	req.Header.Set("User-Agent", agent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: unexpected status %s", downloadURL, resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if checksum != "" {
		match, err := verifyChecksum(tmpPath, checksum)
		if err != nil {
			return err
		}
		if !match {
			return fmt.Errorf("checksum mismatch for %s", downloadURL)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	return nil
}

func verifyChecksum(path, expected string) (bool, error) {
	sum, err := computeChecksum(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, expected), nil
}

func computeChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func resolveArchivePath(downloadsDir, downloadURL string) (string, error) {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer archive name from url: %s", downloadURL)
	}
	return filepath.Join(downloadsDir, base), nil
}
