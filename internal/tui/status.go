package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// PhaseTiming is how long one install phase took.
type PhaseTiming struct {
	Phase string
	Took  time.Duration
}

func (t PhaseTiming) String() string {
	return t.Phase + " " + formatElapsed(t.Took)
}

// StatusWriter keeps a spinner and the current install phase on one terminal
// line, e.g. "fetching nginx 1.25.3 (2.4s)", and remembers how long each
// phase took.
type StatusWriter struct {
	w        io.Writer
	now      func() time.Time
	interval time.Duration

	mu      sync.Mutex
	phase   string
	label   string
	started time.Time
	timings []PhaseTiming
	stopped bool

	done   chan struct{}
	exited chan struct{}
}

// NewStatusWriter starts a spinner that redraws the status line on w.
func NewStatusWriter(w io.Writer) *StatusWriter {
	return newStatusWriter(w, time.Now, 100*time.Millisecond)
}

func newStatusWriter(w io.Writer, now func() time.Time, interval time.Duration) *StatusWriter {
	sw := &StatusWriter{
		w:        w,
		now:      now,
		interval: interval,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go sw.loop()
	return sw
}

// Phase closes the running phase and shows the next one. Calls after Stop
// are ignored.
func (sw *StatusWriter) Phase(component, version, phase string) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.stopped {
		return
	}
	sw.closePhase()
	sw.phase = phase
	sw.label = strings.Join(strings.Fields(phase+" "+component+" "+version), " ")
	sw.started = sw.now()
}

func (sw *StatusWriter) closePhase() {
	if sw.phase != "" {
		sw.timings = append(sw.timings, PhaseTiming{Phase: sw.phase, Took: sw.now().Sub(sw.started)})
		sw.phase = ""
	}
}

// Stop clears the status line and returns the phase timings in order.
func (sw *StatusWriter) Stop() []PhaseTiming {
	sw.mu.Lock()
	if sw.stopped {
		defer sw.mu.Unlock()
		return sw.timings
	}
	sw.stopped = true
	sw.closePhase()
	timings := sw.timings
	sw.mu.Unlock()

	close(sw.done)
	<-sw.exited
	fmt.Fprint(sw.w, "\r\033[K")
	return timings
}

func (sw *StatusWriter) loop() {
	defer close(sw.exited)
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
		}
		sw.mu.Lock()
		label, started := sw.label, sw.started
		sw.mu.Unlock()
		if label == "" {
			continue
		}
		fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinnerFrames[frame%len(spinnerFrames)], label, formatElapsed(sw.now().Sub(started)))
	}
}

// FormatTimings joins phase timings for a log line.
func FormatTimings(timings []PhaseTiming) string {
	parts := make([]string, len(timings))
	for i, t := range timings {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
