//go:build !windows

package process

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// SignalTerminator sends SIGTERM. It never escalates to SIGKILL.
type SignalTerminator struct{}

// Terminate implements Terminator. A process that is already gone is not an error.
func (SignalTerminator) Terminate(pid int) error {
	err := unix.Kill(pid, unix.SIGTERM)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
