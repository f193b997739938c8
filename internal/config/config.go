package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the orchestration settings for a DevStack root.
type Config struct {
	Version      int                      `yaml:"version" json:"version"`
	RestartDelay Duration                 `yaml:"restart_delay" json:"restart_delay"`
	StopTimeout  Duration                 `yaml:"stop_timeout" json:"stop_timeout"`
	Terminal     string                   `yaml:"terminal,omitempty" json:"terminal,omitempty"`
	Catalog      string                   `yaml:"catalog" json:"catalog"`
	Services     map[string]ServiceConfig `yaml:"services,omitempty" json:"services,omitempty"`
	Sites        SitesConfig              `yaml:"sites" json:"sites"`
	Proxy        ProxyConfig              `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	Metrics      MetricsConfig            `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// ServiceConfig overrides launch settings for a single service component.
type ServiceConfig struct {
	Workers int      `yaml:"workers,omitempty" json:"workers,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// SitesConfig controls generated reverse-proxy site configurations.
type SitesConfig struct {
	Dir             string `yaml:"dir" json:"dir"`
	DefaultUpstream string `yaml:"default_upstream" json:"default_upstream"`
	Workspace       string `yaml:"workspace,omitempty" json:"workspace,omitempty"`
}

// ProxyConfig is passed through to launched processes.
type ProxyConfig struct {
	HTTP  string `yaml:"http,omitempty" json:"http,omitempty"`
	HTTPS string `yaml:"https,omitempty" json:"https,omitempty"`
}

// MetricsConfig enables the Prometheus textfile dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

// Duration is a time.Duration that reads and writes as a Go duration string.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version:      1,
		RestartDelay: Duration(time.Second),
		StopTimeout:  Duration(5 * time.Second),
		Catalog:      "catalog.yaml",
		Sites: SitesConfig{
			Dir:             "conf/sites-enabled",
			DefaultUpstream: "127.0.0.1:9000",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures fields fall back to sensible defaults when the YAML
// omits them or sets them to zero.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.RestartDelay < 0 {
		c.RestartDelay = defaults.RestartDelay
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaults.StopTimeout
	}
	if strings.TrimSpace(c.Catalog) == "" {
		c.Catalog = defaults.Catalog
	}
	if strings.TrimSpace(c.Sites.Dir) == "" {
		c.Sites.Dir = defaults.Sites.Dir
	}
	if strings.TrimSpace(c.Sites.DefaultUpstream) == "" {
		c.Sites.DefaultUpstream = defaults.Sites.DefaultUpstream
	}
	if c.Services == nil {
		c.Services = map[string]ServiceConfig{}
	}
	normalized := make(map[string]ServiceConfig, len(c.Services))
	for name, svc := range c.Services {
		normalized[strings.ToLower(strings.TrimSpace(name))] = svc
	}
	c.Services = normalized
}

// Service returns the overrides for a component, if any.
func (c Config) Service(name string) (ServiceConfig, bool) {
	svc, ok := c.Services[strings.ToLower(name)]
	return svc, ok
}

// ProxyEnv returns HTTP_PROXY/HTTPS_PROXY assignments for configured proxies.
func (c Config) ProxyEnv() []string {
	var env []string
	if v := strings.TrimSpace(c.Proxy.HTTP); v != "" {
		env = append(env, "HTTP_PROXY="+v)
	}
	if v := strings.TrimSpace(c.Proxy.HTTPS); v != "" {
		env = append(env, "HTTPS_PROXY="+v)
	}
	return env
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}
