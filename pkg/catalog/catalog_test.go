package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const digest = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
- component: nginx
  version: 1.25.3
  url: https://nginx.org/download/nginx-1.25.3.tar.gz
  sha256: `+digest+`
- component: PHP
  version: 8.3.1
  url: https://example.test/php-8.3.1.zip?mirror=1
`)

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	entry, ok := cat.Find("php", "8.3.1")
	if !ok {
		t.Fatal("expected php 8.3.1 to be found")
	}
	if entry.Archive != ArchiveZip {
		t.Fatalf("expected inferred zip archive, got %q", entry.Archive)
	}
	nginx, _ := cat.Find("nginx", "1.25.3")
	if nginx.Archive != ArchiveTarGz || nginx.SHA256 != digest {
		t.Fatalf("unexpected nginx entry %+v", nginx)
	}
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "catalog.csv", "\ufeffComponent,Version,URL,Archive\n"+
		"# comment line\n"+
		"node,20.11.0,https://example.test/node-v20.11.0-linux-x64.tar.xz,\n"+
		"node,18.19.0,https://example.test/node-v18.19.0-linux-x64.tar.xz,tar.xz\n"+
		",,,\n")

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	versions := cat.Versions("node")
	if len(versions) != 2 || versions[0] != "20.11.0" {
		t.Fatalf("unexpected versions %v", versions)
	}
}

func TestLoadTSV(t *testing.T) {
	path := writeFile(t, "catalog.tsv", "component\tversion\turl\ngo\t1.22.0\thttps://go.dev/dl/go1.22.0.linux-amd64.tar.gz\n")
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, ok := cat.Find("go", "1.22.0"); !ok {
		t.Fatal("expected go 1.22.0")
	}
}

func TestLoadValidationErrorsKeepValidEntries(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
- component: mysql
  version: 8.0.1
  url: https://example.test/mysql.zip
- component: mysql
  version: 8.0.1
  url: https://example.test/mysql-again.zip
- component: redis
  url: https://example.test/redis.zip
  sha256: nothex
- component: pgsql
  version: "16.1"
  url: https://example.test/pgsql.rar
  archive: rar
`)

	cat, err := Load(path)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verrs.Issues()) != 4 {
		t.Fatalf("expected 4 issues, got %d: %v", len(verrs), verrs)
	}
	if !strings.Contains(verrs.Error(), "entry 2 duplicate of entry 1") {
		t.Fatalf("unexpected message %q", verrs.Error())
	}
	if len(cat.Entries()) != 1 {
		t.Fatalf("expected the valid entry to be kept, got %+v", cat.Entries())
	}
}

func TestLoadMissingHeader(t *testing.T) {
	path := writeFile(t, "catalog.csv", "component,version\nphp,8.3.1\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "missing required header: url") {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	cat, err := Load(writeFile(t, "catalog.yaml", "\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cat.Entries()) != 0 {
		t.Fatal("expected empty catalog")
	}
}

func TestInferArchive(t *testing.T) {
	cases := map[string]string{
		"https://x/a.zip":         ArchiveZip,
		"https://x/a.TGZ":         ArchiveTarGz,
		"https://x/a.tar.xz#f":    ArchiveTarXz,
		"https://x/composer.phar": ArchiveFile,
	}
	for url, want := range cases {
		if got := InferArchive(url); got != want {
			t.Fatalf("InferArchive(%q) = %q, want %q", url, got, want)
		}
	}
}
