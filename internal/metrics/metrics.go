// Package metrics counts orchestration outcomes and exports them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"devstack/internal/process"
)

const namespace = "devstack"

// Recorder holds the counters of one devstack invocation. A nil Recorder
// ignores every call.
type Recorder struct {
	registry  *prometheus.Registry
	ops       *prometheus.CounterVec
	running   *prometheus.GaugeVec
	installed *prometheus.GaugeVec
}

// New builds a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations performed, by outcome.",
		}, []string{"op", "component", "result"}),
		running: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running_processes",
			Help:      "Processes running from a component version's install directory.",
		}, []string{"component", "version"}),
		installed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "installed_versions",
			Help:      "Installed versions per component.",
		}, []string{"component"}),
	}
}

// Observe counts one finished operation.
func (r *Recorder) Observe(op, component string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.ops.WithLabelValues(op, component, result).Inc()
}

// SetStatuses records the process count of every reported version.
func (r *Recorder) SetStatuses(statuses []process.Status) {
	if r == nil {
		return
	}
	r.running.Reset()
	for _, st := range statuses {
		r.running.WithLabelValues(st.Component, st.Version).Set(float64(len(st.PIDs)))
	}
}

// SetInstalled records the installed version count of every component.
func (r *Recorder) SetInstalled(installed map[string][]string) {
	if r == nil {
		return
	}
	r.installed.Reset()
	for name, versions := range installed {
		r.installed.WithLabelValues(name).Set(float64(len(versions)))
	}
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes every metric to path for a node-exporter textfile
// collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
