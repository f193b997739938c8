package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// LaunchSpec describes one process start.
type LaunchSpec struct {
	Path string
	Args []string
	Dir  string
	Env  []string
	// Interactive opens a shell in Dir instead of starting Path in the
	// background.
	Interactive bool
	// Terminal is the command used to open interactive sessions. When empty
	// the user's shell runs attached to the caller's terminal.
	Terminal []string
}

// Launcher starts processes and returns the PID of the started process.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (int, error)
}

// Terminator asks a process to exit.
type Terminator interface {
	Terminate(pid int) error
}

// ExecLauncher starts real OS processes. Background processes are detached
// from the caller's session with stdio bound to the null device, so they
// outlive the CLI invocation.
type ExecLauncher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Launch implements Launcher.
func (l ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (int, error) {
	if spec.Interactive {
		return l.launchInteractive(ctx, spec)
	}
	return startDetached(spec.Path, spec.Args, spec.Dir, spec.Env)
}

func (l ExecLauncher) launchInteractive(ctx context.Context, spec LaunchSpec) (int, error) {
	if len(spec.Terminal) > 0 {
		return startDetached(spec.Terminal[0], spec.Terminal[1:], spec.Dir, spec.Env)
	}

	cmd := exec.CommandContext(ctx, defaultShell())
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdin = orDefault(l.Stdin, os.Stdin)
	cmd.Stdout = orDefaultWriter(l.Stdout, os.Stdout)
	cmd.Stderr = orDefaultWriter(l.Stderr, os.Stderr)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("open shell: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return pid, fmt.Errorf("shell: %w", err)
		}
	}
	return pid, nil
}

func startDetached(path string, args []string, dir string, env []string) (int, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", path, err)
	}
	pid := cmd.Process.Pid
	// Reap the child if it exits while this process is still alive.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		if shell := os.Getenv("COMSPEC"); shell != "" {
			return shell
		}
		return "cmd.exe"
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

func orDefault(r io.Reader, def io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return def
}

func orDefaultWriter(w io.Writer, def io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return def
}

var (
	_ Launcher   = ExecLauncher{}
	_ Terminator = SignalTerminator{}
)
