package tui

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/x/term"
)

// OutputMode selects how a command renders its results.
type OutputMode int

const (
	// ModeTUI redraws a live table while versions start or stop.
	ModeTUI OutputMode = iota
	// ModePlain prints a single table once the work is finished.
	ModePlain
	// ModeJSON prints machine-readable results only.
	ModeJSON
)

// NoProgressEnv turns off live rendering like --no-progress does.
const NoProgressEnv = "DEVSTACK_NO_PROGRESS"

// DetectMode picks the output mode for out. JSON always wins; live rendering
// needs a capable terminal and is never used under CI.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	switch {
	case jsonOutput:
		return ModeJSON
	case noProgress, os.Getenv(NoProgressEnv) != "", os.Getenv("CI") != "", !interactive(out):
		return ModePlain
	}
	return ModeTUI
}

func interactive(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(f.Fd()) {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	t := os.Getenv("TERM")
	return t != "" && !strings.EqualFold(t, "dumb")
}
