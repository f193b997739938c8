package process

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"devstack/internal/components"
	"devstack/internal/config"
	"devstack/internal/logx"
	"devstack/internal/paths"
	"devstack/internal/versions"
)

// State is the observable state of a component version.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// MarshalText renders the state for JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is the live state of one component version. It is derived from the
// process table on every call and never stored.
type Status struct {
	Component string `json:"component"`
	Version   string `json:"version"`
	State     State  `json:"state"`
	PIDs      []int  `json:"pids,omitempty"`
	Dir       string `json:"dir,omitempty"`
}

// Recorder observes completed operations.
type Recorder interface {
	Observe(op, component string, err error)
}

// Reporter receives progress for bulk operations.
type Reporter interface {
	Begin(op, component, version string)
	Done(o Outcome)
}

// Supervisor starts, stops and inspects component versions. It keeps no
// record of the processes it launches; the process table is the only source
// of truth. Two components must never share an install directory, which the
// registry enforces.
type Supervisor struct {
	Registry     *components.Registry
	Store        *versions.Store
	ToolsDir     string
	Locator      Locator
	Launcher     Launcher
	Terminator   Terminator
	RestartDelay time.Duration
	StopTimeout  time.Duration
	PollInterval time.Duration
	Services     map[string]config.ServiceConfig
	Env          []string
	Terminal     []string
	Logger       *log.Logger
	Metrics      Recorder
}

// New builds a Supervisor wired to the native process table.
func New(reg *components.Registry, toolsDir string, cfg config.Config, logger *log.Logger) *Supervisor {
	logger = logx.OrDiscard(logger)
	return &Supervisor{
		Registry:     reg,
		Store:        versions.NewStore(reg, toolsDir, logger),
		ToolsDir:     toolsDir,
		Locator:      NewLocator(logger),
		Launcher:     ExecLauncher{},
		Terminator:   SignalTerminator{},
		RestartDelay: cfg.RestartDelay.Std(),
		StopTimeout:  cfg.StopTimeout.Std(),
		Services:     cfg.Services,
		Env:          cfg.ProxyEnv(),
		Terminal:     strings.Fields(cfg.Terminal),
		Logger:       logger,
	}
}

func (s *Supervisor) logf(format string, args ...any) {
	logx.OrDiscard(s.Logger).Printf(format, args...)
}

func (s *Supervisor) observe(op, component string, err error) {
	if s.Metrics != nil {
		s.Metrics.Observe(op, component, err)
	}
}

// Status reports whether any process runs from the version's install
// directory. A version that is not installed is Stopped.
func (s *Supervisor) Status(name, version string) (Status, error) {
	desc, err := s.Registry.Lookup(name)
	if err != nil {
		return Status{Component: name, Version: version}, err
	}
	dir := desc.VersionDir(s.ToolsDir, version)
	st := Status{Component: desc.Name, Version: version, State: Stopped, Dir: dir}

	if ok, _ := paths.DirExists(dir); !ok {
		return st, nil
	}
	pids, err := s.Locator.Find(dir, desc.ProcessName)
	if err != nil {
		return st, opErr("status", desc.Name, version, err)
	}
	if len(pids) > 0 {
		st.State = Running
		st.PIDs = pids
	}
	return st, nil
}

// Start launches a version. Services start in the background, one process per
// worker; command-line components open an interactive session. Starting an
// already running version is allowed and adds processes; callers wanting at
// most one instance check Status first.
func (s *Supervisor) Start(ctx context.Context, name, version string) error {
	desc, err := s.Registry.Lookup(name)
	if err != nil {
		return err
	}
	err = s.start(ctx, desc, version)
	s.observe("start", desc.Name, err)
	if err != nil {
		s.logf("start %s %s failed: %v", desc.Name, version, err)
		return opErr("start", desc.Name, version, err)
	}
	return nil
}

func (s *Supervisor) start(ctx context.Context, desc components.Descriptor, version string) error {
	if !desc.IsService && !desc.IsCommandLine {
		return ErrNotService
	}
	dir := desc.VersionDir(s.ToolsDir, version)
	if ok, _ := paths.DirExists(dir); !ok {
		return ErrNotInstalled
	}
	exe := desc.ExecutablePath(s.ToolsDir, version)
	if ok, _ := paths.FileExists(exe); !ok {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, exe)
	}

	env := append([]string{}, s.Env...)
	if desc.IsCommandLine {
		env = append(env, pathEnv(desc.BinDir(s.ToolsDir, version)))
		pid, err := s.Launcher.Launch(ctx, LaunchSpec{
			Path:        exe,
			Dir:         dir,
			Env:         env,
			Interactive: true,
			Terminal:    s.Terminal,
		})
		if err != nil {
			return err
		}
		s.logf("opened %s %s session (pid %d)", desc.Name, version, pid)
		return nil
	}

	override := s.Services[desc.Name]
	args := desc.LaunchArgs(override.Args, s.ToolsDir, version)
	workers := desc.Workers(override.Workers)
	var pids []int
	for i := 0; i < workers; i++ {
		pid, err := s.Launcher.Launch(ctx, LaunchSpec{Path: exe, Args: args, Dir: dir, Env: env})
		if err != nil {
			if len(pids) > 0 {
				s.logf("start %s %s: %d of %d workers launched before failure", desc.Name, version, len(pids), workers)
			}
			return err
		}
		pids = append(pids, pid)
	}
	s.logf("started %s %s: %s %s pids %v", desc.Name, version, exe, strings.Join(args, " "), pids)
	return nil
}

func pathEnv(dir string) string {
	return "PATH=" + dir + string(os.PathListSeparator) + os.Getenv("PATH")
}

// Stop requests termination of every process of a version and waits up to
// StopTimeout for them to exit. It never escalates: a survivor is logged and
// remains visible to the next Status call. Stopping a stopped version succeeds.
func (s *Supervisor) Stop(ctx context.Context, name, version string) error {
	desc, err := s.Registry.Lookup(name)
	if err != nil {
		return err
	}
	err = s.stop(ctx, desc, version)
	s.observe("stop", desc.Name, err)
	if err != nil {
		s.logf("stop %s %s failed: %v", desc.Name, version, err)
		return opErr("stop", desc.Name, version, err)
	}
	return nil
}

func (s *Supervisor) stop(ctx context.Context, desc components.Descriptor, version string) error {
	st, err := s.Status(desc.Name, version)
	if err != nil {
		return err
	}
	if st.State == Stopped {
		return nil
	}

	var errs []error
	for _, pid := range st.PIDs {
		if err := s.Terminator.Terminate(pid); err != nil {
			errs = append(errs, fmt.Errorf("terminate pid %d: %w", pid, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logf("stop %s %s: signalled pids %v", desc.Name, version, st.PIDs)

	remaining, err := s.waitStopped(ctx, desc.Name, version)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		s.logf("stop %s %s: pids %v still running after %s", desc.Name, version, remaining, s.StopTimeout)
	}
	return nil
}

func (s *Supervisor) waitStopped(ctx context.Context, name, version string) ([]int, error) {
	poll := s.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	deadline := time.Now().Add(s.StopTimeout)
	for {
		st, err := s.Status(name, version)
		if err != nil {
			return nil, err
		}
		if st.State == Stopped || !time.Now().Before(deadline) {
			return st.PIDs, nil
		}
		if err := sleep(ctx, poll); err != nil {
			return st.PIDs, err
		}
	}
}

// Restart stops a version, waits RestartDelay and starts it again. The delay
// gives services time to release listening sockets; nothing verifies that the
// port is actually free.
func (s *Supervisor) Restart(ctx context.Context, name, version string) error {
	if err := s.Stop(ctx, name, version); err != nil {
		return opErr("restart", name, version, err)
	}
	if err := sleep(ctx, s.RestartDelay); err != nil {
		return opErr("restart", name, version, err)
	}
	if err := s.Start(ctx, name, version); err != nil {
		return opErr("restart", name, version, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Snapshot returns the status of every installed version of every service
// component. Versions whose status cannot be read are reported Stopped and
// their errors joined into the returned error.
func (s *Supervisor) Snapshot() ([]Status, error) {
	var (
		out  []Status
		errs []error
	)
	for _, desc := range s.Registry.Services() {
		for _, version := range s.Store.ListInstalled(desc.Name) {
			st, err := s.Status(desc.Name, version)
			if err != nil {
				errs = append(errs, err)
			}
			out = append(out, st)
		}
	}
	return out, errors.Join(errs...)
}
