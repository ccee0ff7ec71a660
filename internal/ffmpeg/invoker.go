// Package ffmpeg wraps the external ffmpeg and ffprobe binaries. It exposes
// a subprocess invoker that retains a bounded diagnostics tail for error
// reporting and a tolerant media prober.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// tailLimit bounds how much diagnostic output is retained for error reporting.
const tailLimit = 500

// LineFunc receives each diagnostic line as the subprocess emits it.
type LineFunc func(line string)

// Invoker runs the external encoder with a prepared argument list.
type Invoker interface {
	Run(ctx context.Context, args []string, onLine LineFunc) error
}

// ToolError is returned when the encoder exits non-zero. Tail holds the last
// portion of the diagnostic stream, enough to diagnose filter-graph errors.
type ToolError struct {
	Err  error
	Tail string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("ffmpeg failed: %v: %s", e.Err, e.Tail)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// CLI invokes the ffmpeg binary as a subprocess, once per call.
type CLI struct {
	binary string
	logger *slog.Logger
}

func NewCLI(binary string, logger *slog.Logger) *CLI {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &CLI{binary: binary, logger: logger}
}

// Run spawns the encoder and scans its diagnostic stream line by line.
// Only a bounded tail is kept in memory; progress markers are logged at
// debug level. onLine may be nil.
func (c *CLI) Run(ctx context.Context, args []string, onLine LineFunc) error {
	cmd := commandContext(ctx, c.binary, args...)
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.binary, err)
	}

	tail := newTailBuffer(tailLimit)
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanDiagnosticLines)
	for scanner.Scan() {
		line := scanner.Text()
		tail.WriteLine(line)
		if isProgressLine(line) {
			if c.logger != nil {
				c.logger.Debug("encoder progress", "line", line)
			}
		}
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read %s output: %w", c.binary, err)
	}

	if err := cmd.Wait(); err != nil {
		return &ToolError{Err: err, Tail: tail.String()}
	}
	return nil
}

// isProgressLine matches the frame/time status lines ffmpeg rewrites in place.
func isProgressLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "frame=") ||
		strings.HasPrefix(trimmed, "size=") ||
		strings.HasPrefix(trimmed, "time=")
}

// scanDiagnosticLines splits on both \n and \r, since ffmpeg emits progress
// updates as carriage-return rewrites of a single line.
func scanDiagnosticLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// tailBuffer retains the last limit bytes of the lines written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) WriteLine(line string) {
	if line == "" {
		return
	}
	if len(t.buf) > 0 {
		t.buf = append(t.buf, '\n')
	}
	t.buf = append(t.buf, line...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

var _ Invoker = (*CLI)(nil)
