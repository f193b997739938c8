package install

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/renameio/v2"

	"devstack/internal/paths"
	"devstack/internal/versions"
)

// ErrEmptyDomain is returned when a site is created without a domain.
var ErrEmptyDomain = errors.New("domain is required")

const defaultIndex = "index.php index.html index.htm"

// SiteOptions configures a generated reverse-proxy site. Every field but
// Domain is optional.
type SiteOptions struct {
	Domain       string
	Root         string
	PHPUpstream  string
	NginxVersion string
	Index        string
}

// Site is a generated site configuration found on disk.
type Site struct {
	Domain     string `json:"domain"`
	ServerName string `json:"server_name"`
	Root       string `json:"root"`
	Upstream   string `json:"upstream"`
	Path       string `json:"path"`
}

var siteTemplate = template.Must(template.New("site").Parse(`server {

    listen 80;
    listen [::]:80;

    server_name {{.ServerName}};
    root {{.Root}};
    index {{.Index}};

    location / {
         try_files $uri $uri/ /index.php$is_args$args;
    }

    location ~ \.php$ {
        try_files $uri /index.php =404;
        fastcgi_pass {{.Upstream}};
        fastcgi_index index.php;
        fastcgi_buffers 16 16k;
        fastcgi_buffer_size 32k;
        fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
        fastcgi_read_timeout 600;
        include fastcgi_params;
    }

    location ~ /\.ht {
        deny all;
    }

    location /.well-known/acme-challenge/ {
        root /var/www/letsencrypt/;
        log_not_found off;
    }

    location /api {
        rewrite ^/api/(\w+).*$ /api.php?type=$1 last;
    }

    error_log logs/{{.Domain}}_error.log;
    access_log logs/{{.Domain}}_access.log;
}
`))

// PHPUpstream expands the "-php <version>" shorthand: a bare PHP version
// becomes the loopback address its workers bind, 127.<version>:9000. Values
// already in host:port form are returned unchanged.
func PHPUpstream(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, ":") {
		return value
	}
	return "127." + value + ":9000"
}

// CreateSiteConfig writes <nginx-dir>/<sites dir>/<domain>.conf and returns its
// path. The nginx version defaults to the latest installed one; the web server
// picks the file up on its next reload.
func (m *Manager) CreateSiteConfig(opts SiteOptions) (string, error) {
	domain := strings.TrimSpace(opts.Domain)
	if domain == "" {
		return "", ErrEmptyDomain
	}
	if strings.ContainsAny(domain, `/\`) {
		return "", fmt.Errorf("invalid domain %q", domain)
	}

	sitesDir, err := m.sitesDir(opts.NginxVersion)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(sitesDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare sites dir: %w", err)
	}

	root := strings.TrimSpace(opts.Root)
	if root == "" && m.Sites.Workspace != "" {
		candidate := filepath.Join(m.Sites.Workspace, domain)
		if ok, _ := paths.DirExists(candidate); ok {
			root = candidate
		}
	}
	upstream := PHPUpstream(opts.PHPUpstream)
	if upstream == "" {
		upstream = m.Sites.DefaultUpstream
	}
	index := strings.TrimSpace(opts.Index)
	if index == "" {
		index = defaultIndex
	}

	var buf bytes.Buffer
	err = siteTemplate.Execute(&buf, map[string]string{
		"Domain":     domain,
		"ServerName": domain + ".localhost",
		"Root":       filepath.ToSlash(root),
		"Index":      index,
		"Upstream":   upstream,
	})
	if err != nil {
		return "", fmt.Errorf("render site: %w", err)
	}

	confPath := filepath.Join(sitesDir, domain+".conf")
	if err := renameio.WriteFile(confPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write site: %w", err)
	}
	m.logf("site %s written to %s (upstream %s)", domain, confPath, upstream)
	return confPath, nil
}

// ListSites returns the generated site configurations of an nginx version.
func (m *Manager) ListSites(nginxVersion string) ([]Site, error) {
	sitesDir, err := m.sitesDir(nginxVersion)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(sitesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sites []Site
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".conf") {
			continue
		}
		path := filepath.Join(sitesDir, entry.Name())
		site, err := readSite(path)
		if err != nil {
			m.logf("read site %s: %v", path, err)
			continue
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func (m *Manager) sitesDir(nginxVersion string) (string, error) {
	desc, err := m.Registry.Lookup("nginx")
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(nginxVersion)
	if version == "" {
		version = versions.Latest(m.Store.ListInstalled(desc.Name))
		if version == "" {
			return "", fmt.Errorf("%w: nginx", ErrNotInstalled)
		}
	}
	dir := desc.VersionDir(m.ToolsDir, version)
	if ok, _ := paths.DirExists(dir); !ok {
		return "", fmt.Errorf("%w: nginx %s", ErrNotInstalled, version)
	}
	if filepath.IsAbs(m.Sites.Dir) {
		return m.Sites.Dir, nil
	}
	return filepath.Join(dir, filepath.FromSlash(m.Sites.Dir)), nil
}

func readSite(path string) (Site, error) {
	file, err := os.Open(path)
	if err != nil {
		return Site{}, err
	}
	defer file.Close()

	site := Site{Domain: strings.TrimSuffix(filepath.Base(path), ".conf"), Path: path}
	inLocation := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSuffix(strings.TrimSpace(scanner.Text()), ";"))
		if len(fields) > 0 && fields[0] == "location" {
			inLocation = true
		}
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "server_name":
			site.ServerName = fields[1]
		case "root":
			if !inLocation {
				site.Root = fields[1]
			}
		case "fastcgi_pass":
			site.Upstream = fields[1]
		}
	}
	return site, scanner.Err()
}
