package config

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the configuration against the known component names and
// returns structured findings. An empty slice means the config is usable.
func (c Config) Validate(knownComponents []string) []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateServices(knownComponents)...)
	results = append(results, c.validateSites()...)
	if c.RestartDelay.Std() > 0 && c.RestartDelay.Std() > c.StopTimeout.Std()*4 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("restart_delay %s is much longer than stop_timeout %s", c.RestartDelay, c.StopTimeout),
		})
	}
	return results
}

func (c Config) validateServices(known []string) []ValidationResult {
	knownSet := make(map[string]struct{}, len(known))
	for _, name := range known {
		knownSet[strings.ToLower(name)] = struct{}{}
	}

	names := make([]string, 0, len(c.Services))
	for name := range c.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []ValidationResult
	for _, name := range names {
		if _, ok := knownSet[name]; !ok {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("services: unknown component %q", name),
			})
		}
		if c.Services[name].Workers < 0 {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("services.%s.workers must not be negative", name),
			})
		}
	}
	return results
}

func (c Config) validateSites() []ValidationResult {
	var results []ValidationResult
	upstream := strings.TrimSpace(c.Sites.DefaultUpstream)
	host, port, err := net.SplitHostPort(upstream)
	if err != nil || host == "" {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("sites.default_upstream %q is not host:port", upstream),
		})
		return results
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("sites.default_upstream port %q is out of range", port),
		})
	}
	return results
}
