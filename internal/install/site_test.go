package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPHPUpstream(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"8.3":            "127.8.3:9000",
		" 8.1 ":          "127.8.1:9000",
		"127.0.0.1:9001": "127.0.0.1:9001",
	}
	for in, want := range cases {
		if got := PHPUpstream(in); got != want {
			t.Errorf("PHPUpstream(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateSiteConfig(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Install(context.Background(), "nginx", "1.25.3")
	require.NoError(t, err)

	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "blog"), 0o755))
	m.Sites.Workspace = workspace

	path, err := m.CreateSiteConfig(SiteOptions{Domain: "blog", PHPUpstream: "8.3"})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(m.ToolsDir, "nginx", "nginx-1.25.3", "conf", "sites-enabled", "blog.conf"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(body)
	require.Contains(t, text, "server_name blog.localhost;")
	require.Contains(t, text, "root "+filepath.ToSlash(filepath.Join(workspace, "blog"))+";")
	require.Contains(t, text, "fastcgi_pass 127.8.3:9000;")
	require.Contains(t, text, "index index.php index.html index.htm;")
	require.Contains(t, text, "error_log logs/blog_error.log;")

	_, err = m.CreateSiteConfig(SiteOptions{Domain: "shop", Root: "/srv/shop", Index: "index.html"})
	require.NoError(t, err)

	sites, err := m.ListSites("")
	require.NoError(t, err)
	require.Len(t, sites, 2)
	require.Equal(t, "blog", sites[0].Domain)
	require.Equal(t, "127.8.3:9000", sites[0].Upstream)
	require.Equal(t, "shop.localhost", sites[1].ServerName)
	require.Equal(t, "/srv/shop", sites[1].Root)
	require.Equal(t, "127.0.0.1:9000", sites[1].Upstream)
}

func TestCreateSiteConfigErrors(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.CreateSiteConfig(SiteOptions{Domain: "  "})
	require.ErrorIs(t, err, ErrEmptyDomain)

	_, err = m.CreateSiteConfig(SiteOptions{Domain: "blog"})
	require.ErrorIs(t, err, ErrNotInstalled)

	_, err = m.Install(context.Background(), "nginx", "1.25.3")
	require.NoError(t, err)
	_, err = m.CreateSiteConfig(SiteOptions{Domain: "../evil"})
	require.Error(t, err)
	_, err = m.CreateSiteConfig(SiteOptions{Domain: "blog", NginxVersion: "1.0.0"})
	require.ErrorIs(t, err, ErrNotInstalled)
}
