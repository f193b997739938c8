package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"devstack/internal/components"
	"devstack/internal/config"
	"devstack/internal/envpath"
	"devstack/internal/install"
	"devstack/internal/logx"
	"devstack/internal/metrics"
	"devstack/internal/paths"
	"devstack/internal/process"
	"devstack/internal/versions"
)

// Seams replaced by tests.
var (
	newSupervisor = func(a *app) *process.Supervisor {
		return process.New(a.registry, a.layout.ToolsDir, a.cfg, a.logger)
	}
	newFetcher = func(a *app) install.Fetcher {
		return &install.CatalogFetcher{
			CatalogPath: a.layout.ResolveFile(a.cfg.Catalog),
			DownloadDir: a.layout.DownloadDir,
			Client:      &http.Client{Timeout: 30 * time.Minute},
		}
	}
	newUserEnv = func(l paths.Layout) envpath.EnvStore {
		return envpath.UserStore(l.EnvFile, l.EnvScript)
	}
	newProcessEnv = func() envpath.EnvStore {
		return envpath.ProcessEnv{}
	}
)

// app is the wiring shared by every command of one invocation.
type app struct {
	layout    paths.Layout
	cfg       config.Config
	logger    *log.Logger
	logCloser io.Closer
	registry  *components.Registry
	store     *versions.Store
	sup       *process.Supervisor
	installer *install.Manager
	path      *envpath.Manager
	metrics   *metrics.Recorder
}

func openApp() (*app, error) {
	layout, err := paths.Resolve(rootDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(layout.ConfigFile)
	if err != nil {
		return nil, err
	}

	logger, closer := logx.New(layout.LogFile)
	a := &app{
		layout:    layout,
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		registry:  components.Default(),
		metrics:   metrics.New(),
	}
	a.store = versions.NewStore(a.registry, layout.ToolsDir, logger)

	a.sup = newSupervisor(a)
	a.sup.Metrics = a.metrics
	a.installer = &install.Manager{
		Registry:   a.registry,
		Store:      a.store,
		ToolsDir:   layout.ToolsDir,
		BinDir:     layout.BinDir,
		Fetcher:    newFetcher(a),
		Supervisor: a.sup,
		Sites:      cfg.Sites,
		Logger:     logger,
		Metrics:    a.metrics,
	}
	a.path = &envpath.Manager{
		Registry: a.registry,
		Store:    a.store,
		ToolsDir: layout.ToolsDir,
		BinDir:   layout.BinDir,
		User:     newUserEnv(layout),
		Process:  newProcessEnv(),
		Logger:   logger,
	}
	return a, nil
}

// close flushes metrics when configured and closes the log file.
func (a *app) close() {
	if path := a.layout.ResolveFile(a.cfg.Metrics.Textfile); path != "" {
		a.metrics.SetInstalled(a.store.ListAllInstalled())
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Printf("metrics: %v", err)
		}
	}
	_ = a.logCloser.Close()
}

// withApp opens the shared wiring around a command body.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(cmd, a, args)
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
