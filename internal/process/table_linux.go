//go:build linux

package process

import (
	"fmt"

	"github.com/prometheus/procfs"
)

type procfsTable struct {
	mount string
}

func systemTable() Table {
	return procfsTable{mount: procfs.DefaultMountPoint}
}

// Scan reads /proc. Processes that vanish or deny access while being read are
// dropped or returned without an executable path.
func (t procfsTable) Scan(prefix string) ([]Proc, error) {
	fs, err := procfs.NewFS(t.mount)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	all, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var out []Proc
	for _, p := range all {
		comm, err := p.Comm()
		if err != nil || !hasPrefixFold(comm, prefix) {
			continue
		}
		exe, err := p.Executable()
		if err != nil {
			exe = ""
		}
		out = append(out, Proc{PID: p.PID, Name: comm, Exe: exe})
	}
	return out, nil
}
