package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"devstack/internal/components"
	"devstack/internal/config"
	"devstack/internal/versions"
)

// fakeOS is an in-memory process table that also acts as launcher and
// terminator.
type fakeOS struct {
	mu       sync.Mutex
	next     int
	procs    map[int]Proc
	stubborn map[int]bool
	launches []LaunchSpec
}

func newFakeOS() *fakeOS {
	return &fakeOS{next: 100, procs: map[int]Proc{}, stubborn: map[int]bool{}}
}

func (f *fakeOS) Scan(prefix string) ([]Proc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Proc
	for _, p := range f.procs {
		if hasPrefixFold(p.Name, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeOS) Launch(_ context.Context, spec LaunchSpec) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.launches = append(f.launches, spec)
	if !spec.Interactive {
		f.procs[f.next] = Proc{PID: f.next, Name: filepath.Base(spec.Path), Exe: spec.Path}
	}
	return f.next, nil
}

func (f *fakeOS) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stubborn[pid] {
		delete(f.procs, pid)
	}
	return nil
}

func (f *fakeOS) add(p Proc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[p.PID] = p
}

func (f *fakeOS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.procs)
}

func install(t *testing.T, tools, name, version string, withExe bool) {
	t.Helper()
	desc, ok := components.Default().Get(name)
	require.True(t, ok)
	exe := desc.ExecutablePath(tools, version)
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.MkdirAll(desc.VersionDir(tools, version), 0o755))
	if withExe {
		require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	}
}

func newTestSupervisor(t *testing.T, tools string, fake *fakeOS) *Supervisor {
	t.Helper()
	reg := components.Default()
	return &Supervisor{
		Registry:     reg,
		Store:        versions.NewStore(reg, tools, nil),
		ToolsDir:     tools,
		Locator:      &TableLocator{Table: fake},
		Launcher:     fake,
		Terminator:   fake,
		StopTimeout:  50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.25.3", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "nginx", "1.25.3"))
	st, err := sup.Status("nginx", "1.25.3")
	require.NoError(t, err)
	require.Equal(t, Running, st.State)
	require.NotEmpty(t, st.PIDs)

	require.NoError(t, sup.Stop(ctx, "nginx", "1.25.3"))
	st, err = sup.Status("nginx", "1.25.3")
	require.NoError(t, err)
	require.Equal(t, Stopped, st.State)
	require.Empty(t, st.PIDs)

	// Stopping a stopped version is not an error.
	require.NoError(t, sup.Stop(ctx, "nginx", "1.25.3"))
}

func TestStartPHPLaunchesWorkers(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "php", "8.3.1", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)

	require.NoError(t, sup.Start(context.Background(), "php", "8.3.1"))
	require.Len(t, fake.launches, 6)
	spec := fake.launches[0]
	require.Equal(t, []string{"-b", "127.8.3.1:9000"}, spec.Args)
	require.Equal(t, filepath.Join(tools, "php", "php-8.3.1"), spec.Dir)

	st, err := sup.Status("php", "8.3.1")
	require.NoError(t, err)
	require.Len(t, st.PIDs, 6)
}

func TestServiceOverrides(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "php", "8.2.0", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)
	sup.Services = map[string]config.ServiceConfig{"php": {Workers: 2, Args: []string{"-b", "127.0.0.1:9100"}}}
	sup.Env = []string{"HTTP_PROXY=http://proxy:3128"}

	require.NoError(t, sup.Start(context.Background(), "php", "8.2.0"))
	require.Len(t, fake.launches, 2)
	require.Equal(t, []string{"-b", "127.0.0.1:9100"}, fake.launches[1].Args)
	require.Contains(t, fake.launches[0].Env, "HTTP_PROXY=http://proxy:3128")
}

func TestStatusNotInstalledIsStopped(t *testing.T) {
	tools := t.TempDir()
	sup := newTestSupervisor(t, tools, newFakeOS())

	require.Empty(t, sup.Store.ListInstalled("mysql"))
	st, err := sup.Status("mysql", "8.0.1")
	require.NoError(t, err)
	require.Equal(t, Stopped, st.State)
}

func TestStatusUnknownComponent(t *testing.T) {
	sup := newTestSupervisor(t, t.TempDir(), newFakeOS())
	_, err := sup.Status("nosuch", "1.0")
	require.ErrorIs(t, err, ErrUnknownComponent)
}

func TestStatusDoesNotMatchSiblingWithSharedPrefix(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "php", "8.1", true)
	install(t, tools, "php", "8.1.0", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)

	require.NoError(t, sup.Start(context.Background(), "php", "8.1.0"))

	st, err := sup.Status("php", "8.1")
	require.NoError(t, err)
	require.Equal(t, Stopped, st.State)

	st, err = sup.Status("php", "8.1.0")
	require.NoError(t, err)
	require.Equal(t, Running, st.State)
}

func TestStatusMatchesWorkersInSubfolders(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "elasticsearch", "8.13.0", true)
	fake := newFakeOS()
	dir := filepath.Join(tools, "elasticsearch", "elasticsearch-8.13.0")
	fake.add(Proc{PID: 7, Name: "java", Exe: filepath.Join(dir, "jdk", "bin", "java")})
	fake.add(Proc{PID: 8, Name: "java", Exe: "/usr/lib/jvm/bin/java"})
	fake.add(Proc{PID: 9, Name: "java", Exe: ""})
	sup := newTestSupervisor(t, tools, fake)

	st, err := sup.Status("elasticsearch", "8.13.0")
	require.NoError(t, err)
	require.Equal(t, []int{7}, st.PIDs)
}

func TestStartErrors(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "mysql", "8.0.1", false)
	install(t, tools, "git", "2.44.0", true)
	sup := newTestSupervisor(t, tools, newFakeOS())
	ctx := context.Background()

	err := sup.Start(ctx, "nosuch", "1.0")
	require.ErrorIs(t, err, ErrUnknownComponent)

	err = sup.Start(ctx, "nginx", "1.25.3")
	require.ErrorIs(t, err, ErrNotInstalled)

	err = sup.Start(ctx, "mysql", "8.0.1")
	require.ErrorIs(t, err, ErrExecutableNotFound)
	require.False(t, errors.Is(err, ErrNotInstalled))
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "start", opErr.Op)
	require.Equal(t, "mysql", opErr.Component)

	err = sup.Start(ctx, "git", "2.44.0")
	require.ErrorIs(t, err, ErrNotService)
}

func TestStartCommandLineIsInteractive(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "python", "3.12.1", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)
	sup.Terminal = []string{"xterm", "-e", "bash"}

	require.NoError(t, sup.Start(context.Background(), "python", "3.12.1"))
	require.Len(t, fake.launches, 1)
	spec := fake.launches[0]
	require.True(t, spec.Interactive)
	require.Equal(t, []string{"xterm", "-e", "bash"}, spec.Terminal)
	require.Equal(t, filepath.Join(tools, "python", "python-3.12.1"), spec.Dir)

	var hasPath bool
	for _, kv := range spec.Env {
		if strings.HasPrefix(kv, "PATH="+filepath.Join(tools, "python", "python-3.12.1", "bin")) {
			hasPath = true
		}
	}
	require.True(t, hasPath, "expected bin dir at the front of PATH: %v", spec.Env)
}

func TestStopDoesNotEscalate(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.25.3", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "nginx", "1.25.3"))
	st, _ := sup.Status("nginx", "1.25.3")
	fake.stubborn[st.PIDs[0]] = true

	require.NoError(t, sup.Stop(ctx, "nginx", "1.25.3"))
	st, err := sup.Status("nginx", "1.25.3")
	require.NoError(t, err)
	require.Equal(t, Running, st.State, "survivor must stay visible")
}

func TestRestart(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.25.3", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)
	sup.RestartDelay = time.Millisecond
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "nginx", "1.25.3"))
	before, _ := sup.Status("nginx", "1.25.3")

	require.NoError(t, sup.Restart(ctx, "nginx", "1.25.3"))
	after, err := sup.Status("nginx", "1.25.3")
	require.NoError(t, err)
	require.Equal(t, Running, after.State)
	require.NotEqual(t, before.PIDs, after.PIDs)
}

func TestRestartHonoursCancellation(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.25.3", true)
	sup := newTestSupervisor(t, tools, newFakeOS())
	sup.RestartDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sup.Restart(ctx, "nginx", "1.25.3")
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartAllIsolatesFailures(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.24.0", true)
	install(t, tools, "nginx", "1.25.3", false)
	install(t, tools, "nginx", "1.26.0", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)

	res := sup.StartAll(context.Background(), nil)
	require.Len(t, res.Outcomes, 3)
	require.Len(t, res.Failed(), 1)
	require.Equal(t, 2, res.Succeeded())
	require.Equal(t, "1.25.3", res.Failed()[0].Version)
	require.ErrorIs(t, res.Err(), ErrExecutableNotFound)
	require.Equal(t, "2 ok, 1 failed", res.Summary())

	for _, v := range []string{"1.24.0", "1.26.0"} {
		st, err := sup.Status("nginx", v)
		require.NoError(t, err)
		require.Equal(t, Running, st.State, v)
	}
}

func TestStartAllSkipsRunning(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.25.3", true)
	install(t, tools, "mysql", "8.0.1", true)
	install(t, tools, "python", "3.12.1", true)
	fake := newFakeOS()
	sup := newTestSupervisor(t, tools, fake)
	ctx := context.Background()

	require.NoError(t, sup.Start(ctx, "nginx", "1.25.3"))
	res := sup.StartAll(ctx, nil)
	require.NoError(t, res.Err())
	require.Len(t, res.Outcomes, 2, "command-line components are not bulk started")

	for _, o := range res.Outcomes {
		if o.Component == "nginx" {
			require.True(t, o.Skipped)
		} else {
			require.False(t, o.Skipped)
		}
	}
	require.Equal(t, 2, fake.count())

	stop := sup.StopAll(ctx, nil)
	require.NoError(t, stop.Err())
	require.Equal(t, 0, fake.count())
}

type recordingReporter struct {
	begun []string
	done  []Outcome
}

func (r *recordingReporter) Begin(op, component, version string) {
	r.begun = append(r.begun, op+" "+component+" "+version)
}

func (r *recordingReporter) Done(o Outcome) { r.done = append(r.done, o) }

func TestForEachInstalledVersionRecoversPanics(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "php", "8.2.0", true)
	install(t, tools, "php", "8.3.1", true)
	sup := newTestSupervisor(t, tools, newFakeOS())
	rep := &recordingReporter{}

	var visited []string
	res := sup.ForEachInstalledVersion(context.Background(), "check", "php", func(_ context.Context, _, version string) error {
		visited = append(visited, version)
		if version == "8.2.0" {
			panic("boom")
		}
		return nil
	}, rep)

	require.Equal(t, []string{"8.2.0", "8.3.1"}, visited)
	require.Len(t, res.Failed(), 1)
	require.Contains(t, res.Failed()[0].Err.Error(), "panic: boom")
	require.Equal(t, []string{"check php 8.2.0", "check php 8.3.1"}, rep.begun)
	require.Len(t, rep.done, 2)
	require.Error(t, rep.done[0].Err)
}

type countingRecorder struct{ ops map[string]int }

func (c *countingRecorder) Observe(op, component string, err error) {
	key := op + "/" + component
	if err != nil {
		key += "/error"
	}
	c.ops[key]++
}

func TestSnapshotAndMetrics(t *testing.T) {
	tools := t.TempDir()
	install(t, tools, "nginx", "1.25.3", true)
	install(t, tools, "mysql", "8.0.1", true)
	install(t, tools, "go", "1.22.0", true)
	sup := newTestSupervisor(t, tools, newFakeOS())
	rec := &countingRecorder{ops: map[string]int{}}
	sup.Metrics = rec

	require.NoError(t, sup.Start(context.Background(), "mysql", "8.0.1"))
	snap, err := sup.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 2)
	require.Equal(t, "mysql", snap[0].Component)
	require.Equal(t, Running, snap[0].State)
	require.Equal(t, "nginx", snap[1].Component)
	require.Equal(t, Stopped, snap[1].State)

	require.Equal(t, 1, rec.ops["start/mysql"])
}
