package components

import (
	"fmt"
	"sort"
	"strings"
)

var defaultDescriptors = []Descriptor{
	{Name: "nginx", Label: "Nginx", ExecutablePattern: "nginx", IsService: true, Args: []string{"-p", "{dir}"}},
	{Name: "php", Label: "PHP", ExecutablePattern: "php-cgi", IsService: true, MaxWorkers: 6,
		Args: []string{"-b", "127.{version}:9000"}},
	{Name: "mysql", Label: "MySQL", ExecutablePattern: "mysqld", ExecutableFolder: "bin", IsService: true},
	{Name: "pgsql", Aliases: []string{"postgresql"}, Label: "PostgreSQL", ExecutablePattern: "postgres", ExecutableFolder: "bin", IsService: true,
		Args: []string{"-D", "{dir}/data"}},
	{Name: "mongodb", Aliases: []string{"mongo"}, Label: "MongoDB", ExecutablePattern: "mongod", ExecutableFolder: "bin", IsService: true,
		Args: []string{"--dbpath", "{dir}/data"}},
	{Name: "elasticsearch", Aliases: []string{"elastic"}, Label: "Elasticsearch", ExecutablePattern: "elasticsearch", ExecutableFolder: "bin",
		ProcessName: "java", IsService: true},
	{Name: "node", Aliases: []string{"nodejs"}, Label: "Node.js", ExecutablePattern: "node", ExecutableFolder: "bin", IsCommandLine: true},
	{Name: "python", Label: "Python", ExecutablePattern: "python3", ExecutableFolder: "bin", IsCommandLine: true,
		ShortcutTemplate: "python-{version}"},
	{Name: "go", Aliases: []string{"golang"}, Label: "Go", ExecutablePattern: "go", ExecutableFolder: "bin", ShortcutTemplate: "go-{version}"},
	{Name: "git", Label: "Git", ExecutablePattern: "git", ExecutableFolder: "bin"},
	{Name: "composer", Label: "Composer", ExecutablePattern: "composer.phar"},
	{Name: "phpmyadmin", Aliases: []string{"pma"}, Label: "phpMyAdmin", ExecutablePattern: "index.php"},
	{Name: "wpcli", Aliases: []string{"wp-cli"}, Label: "WP-CLI", ExecutablePattern: "wp-cli.phar"},
	{Name: "adminer", Label: "Adminer", ExecutablePattern: "adminer-{version}.php"},
	{Name: "openssl", Label: "OpenSSL", ExecutablePattern: "openssl", ExecutableFolder: "bin"},
	{Name: "phpcsfixer", Label: "PHP CS Fixer", ExecutablePattern: "php-cs-fixer.phar"},
	{Name: "dbeaver", Label: "DBeaver", ExecutablePattern: "dbeaver", ShortcutTemplate: "dbeaver.exe"},
}

// Registry is the typed, immutable table of managed components.
type Registry struct {
	byName  map[string]Descriptor
	aliases map[string]string
	names   []string
}

// NewRegistry validates the descriptors and builds a registry. Names and
// aliases share one namespace and must be unique, and no two components may
// share an install root.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]Descriptor, len(descs)),
		aliases: make(map[string]string),
	}
	roots := make(map[string]string, len(descs))

	for _, desc := range descs {
		desc = desc.normalized()
		if desc.Name == "" {
			return nil, fmt.Errorf("component without name")
		}
		if strings.TrimSpace(desc.ExecutablePattern) == "" {
			return nil, fmt.Errorf("component %s: executable pattern required", desc.Name)
		}
		if !strings.Contains(desc.VersionFolderPattern, versionToken) {
			return nil, fmt.Errorf("component %s: folder pattern %q lacks %s", desc.Name, desc.VersionFolderPattern, versionToken)
		}
		if _, dup := r.byName[desc.Name]; dup {
			return nil, fmt.Errorf("component %s defined twice", desc.Name)
		}
		root := strings.ToLower(desc.InstallRoot(""))
		if other, dup := roots[root]; dup {
			return nil, fmt.Errorf("components %s and %s share install root %q", other, desc.Name, desc.Dir)
		}
		roots[root] = desc.Name
		r.byName[desc.Name] = desc
		r.names = append(r.names, desc.Name)
		for _, alias := range desc.Aliases {
			if other, dup := r.aliases[alias]; dup {
				return nil, fmt.Errorf("alias %q claimed by %s and %s", alias, other, desc.Name)
			}
			r.aliases[alias] = desc.Name
		}
	}
	for alias, owner := range r.aliases {
		if _, clash := r.byName[alias]; clash {
			return nil, fmt.Errorf("alias %q of %s shadows a component name", alias, owner)
		}
	}
	sort.Strings(r.names)
	return r, nil
}

// Default returns the built-in component table.
func Default() *Registry {
	r, err := NewRegistry(defaultDescriptors...)
	if err != nil {
		panic(fmt.Sprintf("components: invalid built-in table: %v", err))
	}
	return r
}

// Get looks up a component by name or alias, ignoring case and surrounding
// space. The returned descriptor always carries the canonical name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	desc, ok := r.byName[key]
	return desc, ok
}

// Lookup is Get returning ErrUnknownComponent for missing names.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	desc, ok := r.Get(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return desc, nil
}

// Names returns the sorted component names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns every descriptor sorted by name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// Services returns the long-running components sorted by name.
func (r *Registry) Services() []Descriptor {
	var out []Descriptor
	for _, desc := range r.All() {
		if desc.IsService {
			out = append(out, desc)
		}
	}
	return out
}
