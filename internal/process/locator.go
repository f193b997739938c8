package process

import (
	"log"
	"sort"
	"strings"

	"devstack/internal/logx"
	"devstack/internal/paths"
)

// Proc is one entry of the OS process table. Exe is empty when the image path
// could not be read.
type Proc struct {
	PID  int
	Name string
	Exe  string
}

// Table lists processes whose image name starts with prefix, ignoring case.
type Table interface {
	Scan(prefix string) ([]Proc, error)
}

// Locator maps an install directory to the PIDs running from it.
type Locator interface {
	Find(installDir, nameFilter string) ([]int, error)
}

// TableLocator matches processes by name prefix and then by whether their
// executable lies inside the install directory. Both sides are compared as
// given and again with symlinks resolved, since the kernel reports the
// resolved image path. Processes whose executable cannot be read are skipped.
type TableLocator struct {
	Table  Table
	Logger *log.Logger
}

// NewLocator returns a locator over the native process table.
func NewLocator(logger *log.Logger) *TableLocator {
	return &TableLocator{Table: systemTable(), Logger: logx.OrDiscard(logger)}
}

// Find implements Locator.
func (l *TableLocator) Find(installDir, nameFilter string) ([]int, error) {
	procs, err := l.Table.Scan(nameFilter)
	if err != nil {
		return nil, err
	}
	logger := logx.OrDiscard(l.Logger)
	realDir := paths.Real(installDir)

	var pids []int
	for _, p := range procs {
		if p.Exe == "" {
			continue
		}
		if !paths.Within(p.Exe, installDir) && !paths.Within(paths.Real(p.Exe), realDir) {
			continue
		}
		logger.Printf("match pid %d %s in %s", p.PID, p.Exe, installDir)
		pids = append(pids, p.PID)
	}
	sort.Ints(pids)
	return pids, nil
}

func hasPrefixFold(name, prefix string) bool {
	return len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix)
}
