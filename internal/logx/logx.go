package logx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02 15:04:05"

// New opens the append-only log file at path and returns a logger whose lines
// look like "[2006-01-02 15:04:05] <run-id> message". Failures to create or
// write the file are swallowed: the returned logger then discards output.
// The returned closer should be closed when logging is no longer needed.
func New(path string) (*log.Logger, io.Closer) {
	runID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Discard(), io.NopCloser(nil)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Discard(), io.NopCloser(nil)
	}

	w := &lineWriter{out: file, runID: runID, now: time.Now}
	return log.New(w, "", 0), file
}

// Discard returns a logger that drops every line.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

type lineWriter struct {
	out   io.Writer
	runID string
	now   func() time.Time
}

// Write always reports success so a failing disk never reaches the caller.
func (w *lineWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	_, _ = fmt.Fprintf(w.out, "[%s] %s %s\n", w.now().Format(timestampLayout), w.runID, line)
	return len(p), nil
}

// Tail returns the last n lines of the log file at path. A missing file yields
// no lines and no error.
func Tail(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	if n <= 0 {
		return nil, nil
	}

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = append(ring[1:], scanner.Text())
			continue
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return ring, nil
}
