package ffmpeg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shellInvoker(t *testing.T) *CLI {
	t.Helper()
	return NewCLI("/bin/sh", discardLogger())
}

func TestRun_Success(t *testing.T) {
	cli := shellInvoker(t)

	var lines []string
	err := cli.Run(context.Background(), []string{"-c", "echo one 1>&2; echo two 1>&2"}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Fatalf("lines = %v, want [one two]", lines)
	}
}

func TestRun_FailureCarriesTail(t *testing.T) {
	cli := shellInvoker(t)

	err := cli.Run(context.Background(), []string{"-c", "echo 'No such filter: bogus' 1>&2; exit 1"}, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error type = %T, want *ToolError", err)
	}
	if !strings.Contains(toolErr.Tail, "No such filter: bogus") {
		t.Fatalf("tail = %q, want filter diagnostic", toolErr.Tail)
	}
}

func TestRun_TailIsBounded(t *testing.T) {
	cli := shellInvoker(t)

	// Emit far more than the tail limit, then fail.
	script := "i=0; while [ $i -lt 200 ]; do echo 'verbose diagnostic line padding output' 1>&2; i=$((i+1)); done; echo LAST 1>&2; exit 1"
	err := cli.Run(context.Background(), []string{"-c", script}, nil)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error type = %T, want *ToolError", err)
	}
	if len(toolErr.Tail) > tailLimit {
		t.Fatalf("tail length = %d, want <= %d", len(toolErr.Tail), tailLimit)
	}
	if !strings.Contains(toolErr.Tail, "LAST") {
		t.Fatal("tail should retain the most recent diagnostics")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	cli := shellInvoker(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cli.Run(ctx, []string{"-c", "sleep 10"}, nil)
	if err == nil {
		t.Fatal("Run() error = nil, want cancellation failure")
	}
}

func TestScanDiagnosticLines_CarriageReturns(t *testing.T) {
	data := []byte("frame=1\rframe=2\rdone\n")

	var tokens []string
	for len(data) > 0 {
		advance, token, err := scanDiagnosticLines(data, true)
		if err != nil {
			t.Fatalf("split error: %v", err)
		}
		if advance == 0 {
			break
		}
		tokens = append(tokens, string(token))
		data = data[advance:]
	}

	want := []string{"frame=1", "frame=2", "done"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestIsProgressLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"frame=  120 fps= 30 time=00:00:04.00", true},
		{"size=    1024kB time=00:00:02.00 bitrate=...", true},
		{"Stream mapping:", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isProgressLine(tt.line); got != tt.want {
			t.Errorf("isProgressLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(10)
	tail.WriteLine("abcdefgh")
	tail.WriteLine("xyz")

	got := tail.String()
	if len(got) > 10 {
		t.Fatalf("tail length = %d, want <= 10", len(got))
	}
	if !strings.HasSuffix(got, "xyz") {
		t.Fatalf("tail = %q, want suffix xyz", got)
	}
}
