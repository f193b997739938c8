package components

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGetIsCaseInsensitive(t *testing.T) {
	r := Default()
	for _, name := range []string{"php", "PHP", " Php "} {
		desc, ok := r.Get(name)
		if !ok {
			t.Fatalf("expected %q to resolve", name)
		}
		if desc.Name != "php" {
			t.Fatalf("expected canonical name php, got %q", desc.Name)
		}
	}
	if _, ok := r.Get("redis-cluster"); ok {
		t.Fatal("expected unknown component to report not found")
	}
	if _, err := r.Lookup("redis-cluster"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected ErrUnknownComponent, got %v", err)
	}
}

func TestGetResolvesAliases(t *testing.T) {
	r := Default()
	cases := map[string]string{
		"pma":        "phpmyadmin",
		"mongo":      "mongodb",
		"PostgreSQL": "pgsql",
		"elastic":    "elasticsearch",
		"nodejs":     "node",
		" golang ":   "go",
		"wp-cli":     "wpcli",
	}
	for alias, want := range cases {
		desc, ok := r.Get(alias)
		if !ok {
			t.Fatalf("expected alias %q to resolve", alias)
		}
		if desc.Name != want {
			t.Fatalf("alias %q resolved to %q, want %q", alias, desc.Name, want)
		}
	}
	if _, err := r.Lookup("postgre"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected ErrUnknownComponent for near miss, got %v", err)
	}
	for _, name := range r.Names() {
		if name == "pma" || name == "golang" {
			t.Fatalf("aliases must not be listed as names: %v", r.Names())
		}
	}
}

func TestNewRegistryRejectsAliasCollisions(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Name: "mysql", Aliases: []string{"db"}, ExecutablePattern: "mysqld"},
		Descriptor{Name: "pgsql", Aliases: []string{"DB"}, ExecutablePattern: "postgres"},
	)
	if err == nil {
		t.Fatal("expected error for alias claimed twice")
	}
	_, err = NewRegistry(
		Descriptor{Name: "mysql", Aliases: []string{"pgsql"}, ExecutablePattern: "mysqld"},
		Descriptor{Name: "pgsql", ExecutablePattern: "postgres"},
	)
	if err == nil {
		t.Fatal("expected error for alias shadowing a component name")
	}
	r, err := NewRegistry(Descriptor{Name: "mysql", Aliases: []string{" MySQL ", "", "maria"}, ExecutablePattern: "mysqld"})
	if err != nil {
		t.Fatalf("self alias should be dropped: %v", err)
	}
	desc, _ := r.Get("maria")
	if len(desc.Aliases) != 1 || desc.Aliases[0] != "maria" {
		t.Fatalf("unexpected normalized aliases %v", desc.Aliases)
	}
}

func TestDefaultTableShape(t *testing.T) {
	r := Default()
	php, _ := r.Get("php")
	if !php.IsService || php.MaxWorkers != 6 || php.ProcessName != "php-cgi" {
		t.Fatalf("unexpected php descriptor %+v", php)
	}
	python, _ := r.Get("python")
	if !python.IsCommandLine || python.IsService {
		t.Fatalf("expected python to be command-line, got %+v", python)
	}
	for _, desc := range r.Services() {
		if !desc.IsService {
			t.Fatalf("Services returned non-service %s", desc.Name)
		}
	}
	names := r.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestNewRegistryRejectsSharedRoot(t *testing.T) {
	_, err := NewRegistry(
		Descriptor{Name: "php", ExecutablePattern: "php-cgi"},
		Descriptor{Name: "php-fpm", Dir: "php", ExecutablePattern: "php-fpm"},
	)
	if err == nil {
		t.Fatal("expected error for shared install root")
	}
	_, err = NewRegistry(
		Descriptor{Name: "php", ExecutablePattern: "php-cgi"},
		Descriptor{Name: "PHP", Dir: "php2", ExecutablePattern: "php-cgi"},
	)
	if err == nil {
		t.Fatal("expected error for duplicate name")
	}
}

func TestParseFolder(t *testing.T) {
	desc, _ := Default().Get("php")

	cases := []struct {
		dir     string
		version string
		ok      bool
	}{
		{"php-8.3.1", "8.3.1", true},
		{"php-8.0.51a", "8.0.51a", true},
		{"php-", "", false},
		{"php-latest", "", false},
		{"nginx-1.25.3", "", false},
		{"php8.3", "", false},
		{".php-install-1234", "", false},
	}
	for _, tc := range cases {
		version, ok := desc.ParseFolder(tc.dir)
		if ok != tc.ok || version != tc.version {
			t.Fatalf("ParseFolder(%q) = %q, %v; want %q, %v", tc.dir, version, ok, tc.version, tc.ok)
		}
	}
}

func TestParseFolderCustomPattern(t *testing.T) {
	r, err := NewRegistry(Descriptor{Name: "redis", VersionFolderPattern: "v{version}-x64", ExecutablePattern: "redis-server"})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	desc, _ := r.Get("redis")
	if got := desc.FolderName("7.2"); got != "v7.2-x64" {
		t.Fatalf("FolderName = %q", got)
	}
	version, ok := desc.ParseFolder("v7.2-x64")
	if !ok || version != "7.2" {
		t.Fatalf("ParseFolder = %q, %v", version, ok)
	}
}

func TestVersionGlob(t *testing.T) {
	desc, _ := Default().Get("php")
	g, err := desc.VersionGlob("8.*")
	if err != nil {
		t.Fatalf("VersionGlob: %v", err)
	}
	if !g.Match("php-8.3.1") || g.Match("php-7.4.0") {
		t.Fatal("unexpected glob matches")
	}
}

func TestPathResolution(t *testing.T) {
	tools := filepath.Join(string(filepath.Separator), "stack", "tools")
	r := Default()

	mysql, _ := r.Get("mysql")
	if got, want := mysql.VersionDir(tools, "8.0.1"), filepath.Join(tools, "mysql", "mysql-8.0.1"); got != want {
		t.Fatalf("VersionDir = %s, want %s", got, want)
	}
	wantExe := filepath.Join(tools, "mysql", "mysql-8.0.1", "bin", "mysqld")
	if runtime.GOOS == "windows" {
		wantExe += ".exe"
	}
	if got := mysql.ExecutablePath(tools, "8.0.1"); got != wantExe {
		t.Fatalf("ExecutablePath = %s, want %s", got, wantExe)
	}
	if got, want := mysql.BinDir(tools, "8.0.1"), filepath.Join(tools, "mysql", "mysql-8.0.1", "bin"); got != want {
		t.Fatalf("BinDir = %s, want %s", got, want)
	}

	nginx, _ := r.Get("nginx")
	if got, want := nginx.BinDir(tools, "1.25.3"), filepath.Join(tools, "nginx", "nginx-1.25.3"); got != want {
		t.Fatalf("BinDir without folder = %s, want %s", got, want)
	}

	adminer, _ := r.Get("adminer")
	if got := filepath.Base(adminer.ExecutablePath(tools, "4.8.1")); got != "adminer-4.8.1.php" {
		t.Fatalf("expected version substituted executable, got %s", got)
	}
}

func TestShortcutName(t *testing.T) {
	r := Default()
	suffix := ""
	if runtime.GOOS == "windows" {
		suffix = ".cmd"
	}

	python, _ := r.Get("python")
	if got := python.ShortcutName("3.12.1"); got != "python-3.12.1"+suffix {
		t.Fatalf("python shortcut = %q", got)
	}
	dbeaver, _ := r.Get("dbeaver")
	if got := dbeaver.ShortcutName("24.0"); got != "dbeaver"+suffix {
		t.Fatalf("dbeaver shortcut = %q", got)
	}
	nginx, _ := r.Get("nginx")
	if got := nginx.ShortcutName("1.25.3"); got != "" {
		t.Fatalf("expected no shortcut for nginx, got %q", got)
	}
}

func TestAliasName(t *testing.T) {
	suffix := ""
	if runtime.GOOS == "windows" {
		suffix = ".cmd"
	}
	php, _ := Default().Get("php")
	if got := php.AliasName("8.3.1"); got != "php8.3.1"+suffix {
		t.Fatalf("php alias = %q", got)
	}
	nginx, _ := Default().Get("nginx")
	if got := nginx.AliasName("1.25.3"); got != "nginx1.25.3"+suffix {
		t.Fatalf("nginx alias = %q", got)
	}
}

func TestLaunchArgs(t *testing.T) {
	tools := filepath.Join(string(filepath.Separator), "stack", "tools")
	php, _ := Default().Get("php")

	args := php.LaunchArgs(nil, tools, "8.3.1")
	if len(args) != 2 || args[1] != "127.8.3.1:9000" {
		t.Fatalf("unexpected php args %v", args)
	}
	override := php.LaunchArgs([]string{"-c", "{dir}/php.ini"}, tools, "8.3.1")
	if override[1] != filepath.Join(tools, "php", "php-8.3.1")+"/php.ini" {
		t.Fatalf("unexpected override args %v", override)
	}
	if php.Workers(0) != 6 || php.Workers(2) != 2 {
		t.Fatal("unexpected worker counts")
	}
}
