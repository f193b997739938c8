// Package catalog loads the list of versions that can be installed, with the
// archive URL and checksum for each.
package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Archive formats understood by the installer.
const (
	ArchiveZip   = "zip"
	ArchiveTarGz = "tar.gz"
	ArchiveTarXz = "tar.xz"
	ArchiveFile  = "file"
)

// Entry is one installable version.
type Entry struct {
	Component string `yaml:"component" json:"component"`
	Version   string `yaml:"version" json:"version"`
	URL       string `yaml:"url" json:"url"`
	SHA256    string `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Archive   string `yaml:"archive,omitempty" json:"archive,omitempty"`
}

// Catalog indexes entries by component.
type Catalog struct {
	entries []Entry
}

// New builds a catalog from already validated entries.
func New(entries ...Entry) *Catalog {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.Component = strings.ToLower(strings.TrimSpace(e.Component))
		if e.Archive == "" {
			e.Archive = InferArchive(e.URL)
		}
		out = append(out, e)
	}
	return &Catalog{entries: out}
}

// Entries returns every entry in file order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Versions lists the versions offered for a component, in file order.
func (c *Catalog) Versions(component string) []string {
	component = strings.ToLower(strings.TrimSpace(component))
	var out []string
	for _, e := range c.entries {
		if e.Component == component {
			out = append(out, e.Version)
		}
	}
	return out
}

// Find returns the entry for a component version.
func (c *Catalog) Find(component, version string) (Entry, bool) {
	component = strings.ToLower(strings.TrimSpace(component))
	for _, e := range c.entries {
		if e.Component == component && e.Version == version {
			return e, true
		}
	}
	return Entry{}, false
}

// InferArchive guesses the archive format from a URL suffix.
func InferArchive(url string) string {
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ArchiveZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return ArchiveTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return ArchiveTarXz
	default:
		return ArchiveFile
	}
}

// Load reads a catalog file. Files ending in .yaml or .yml are parsed as a YAML
// list of entries; anything else as CSV/TSV with a header row. When validation
// issues are found, the returned error is ValidationErrors and the catalog holds
// the entries that were valid.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var raw []rawEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = parseYAML(data)
	default:
		raw, err = parseCSV(data)
	}
	if err != nil {
		return nil, err
	}
	return validate(raw)
}

type rawEntry struct {
	line  int
	entry Entry
}

func parseYAML(data []byte) ([]rawEntry, error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	out := make([]rawEntry, 0, len(nodes))
	for i := range nodes {
		var e Entry
		if err := nodes[i].Decode(&e); err != nil {
			return nil, fmt.Errorf("parse YAML entry %d: %w", i+1, err)
		}
		out = append(out, rawEntry{line: i + 1, entry: e})
	}
	return out, nil
}

var requiredHeaders = []string{"component", "version", "url"}

func parseCSV(data []byte) ([]rawEntry, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	comma, err := detectDelimiter(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	var (
		out    []rawEntry
		header map[string]int
		line   int
	)
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse catalog: %w", err)
		}
		line++
		if header == nil {
			header, err = buildHeaderMap(record)
			if err != nil {
				return nil, err
			}
			continue
		}
		if isEmptyRecord(record) {
			continue
		}
		get := func(field string) string {
			pos, ok := header[field]
			if !ok || pos >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[pos])
		}
		out = append(out, rawEntry{line: line, entry: Entry{
			Component: get("component"),
			Version:   get("version"),
			URL:       get("url"),
			SHA256:    get("sha256"),
			Archive:   get("archive"),
		}})
	}
	if header == nil {
		return nil, errors.New("missing header row")
	}
	return out, nil
}

func detectDelimiter(data []byte) (rune, error) {
	headerLine := string(data)
	if i := strings.IndexAny(headerLine, "\r\n"); i >= 0 {
		headerLine = headerLine[:i]
	}
	if strings.Contains(headerLine, "\t") {
		return '\t', nil
	}
	if strings.Contains(headerLine, ",") {
		return ',', nil
	}
	return 0, errors.New("unable to detect delimiter (expected comma or tab)")
}

func buildHeaderMap(header []string) (map[string]int, error) {
	headerMap := make(map[string]int, len(header))
	for idx, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, exists := headerMap[name]; exists {
			return nil, fmt.Errorf("duplicate header: %s", name)
		}
		headerMap[name] = idx
	}
	for _, required := range requiredHeaders {
		if _, ok := headerMap[required]; !ok {
			return nil, fmt.Errorf("missing required header: %s", required)
		}
	}
	return headerMap, nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

var sha256Pattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

func validate(raw []rawEntry) (*Catalog, error) {
	var (
		valid []Entry
		errs  ValidationErrors
		seen  = map[string]int{}
	)
	for _, r := range raw {
		e := r.entry
		e.Component = strings.ToLower(strings.TrimSpace(e.Component))
		e.Version = strings.TrimSpace(e.Version)
		e.Archive = strings.ToLower(strings.TrimSpace(e.Archive))

		var rowErrs []ValidationError
		if e.Component == "" {
			rowErrs = append(rowErrs, ValidationError{Line: r.line, Field: "component", Message: "component is required"})
		}
		if e.Version == "" {
			rowErrs = append(rowErrs, ValidationError{Line: r.line, Field: "version", Message: "version is required"})
		}
		if e.URL == "" {
			rowErrs = append(rowErrs, ValidationError{Line: r.line, Field: "url", Message: "url is required"})
		}
		if e.SHA256 != "" && !sha256Pattern.MatchString(e.SHA256) {
			rowErrs = append(rowErrs, ValidationError{Line: r.line, Field: "sha256", Message: "expected 64 hex characters"})
		}
		switch e.Archive {
		case "", ArchiveZip, ArchiveTarGz, ArchiveTarXz, ArchiveFile:
		default:
			rowErrs = append(rowErrs, ValidationError{Line: r.line, Field: "archive", Message: fmt.Sprintf("unsupported archive %q", e.Archive)})
		}
		key := e.Component + "@" + e.Version
		if prev, dup := seen[key]; dup && e.Component != "" && e.Version != "" {
			rowErrs = append(rowErrs, ValidationError{Line: r.line, Message: fmt.Sprintf("duplicate of entry %d", prev)})
		}
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		seen[key] = r.line
		valid = append(valid, e)
	}

	cat := New(valid...)
	if len(errs) > 0 {
		return cat, errs
	}
	return cat, nil
}
