package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/project"
)

type fakeInvoker struct {
	fail bool
	args [][]string
}

func (f *fakeInvoker) Run(ctx context.Context, args []string, onLine ffmpeg.LineFunc) error {
	f.args = append(f.args, args)
	if f.fail {
		return &ffmpeg.ToolError{Err: errors.New("exit status 1"), Tail: "Invalid filtergraph"}
	}
	return os.WriteFile(args[len(args)-1], []byte("mp4"), 0644)
}

func renderFixture(t *testing.T) (*project.Project, map[string]*project.Asset) {
	t.Helper()
	v := videoAsset("v", 10)
	assets := map[string]*project.Asset{"v": v}
	p := project.NewProject()
	p.AddClip(v, "video-1", 0, 0, 0, 10)
	return p, assets
}

func TestRender_WritesOutput(t *testing.T) {
	inv := &fakeInvoker{}
	r := NewRenderer(inv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p, assets := renderFixture(t)
	dir := t.TempDir()

	out, err := r.Render(context.Background(), p, assets, dir, QualityPreview)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if out != filepath.Join(dir, "preview.mp4") {
		t.Errorf("output = %s, want preview.mp4 in renders dir", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}

	// No stray temp files after the rename.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("renders dir entries = %v, want only the output", entries)
	}
}

func TestRender_TempOutputKeepsContainerExtension(t *testing.T) {
	inv := &fakeInvoker{}
	r := NewRenderer(inv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p, assets := renderFixture(t)

	if _, err := r.Render(context.Background(), p, assets, t.TempDir(), QualityExport); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// The encoder infers the output muxer from the filename extension, so
	// the temp path handed to it must still end in the container extension.
	args := inv.args[0]
	encoderOut := args[len(args)-1]
	if filepath.Ext(encoderOut) != ".mp4" {
		t.Fatalf("encoder output = %q, muxer cannot be inferred without .mp4", encoderOut)
	}
}

func TestRender_FailureRemovesPartialOutput(t *testing.T) {
	inv := &fakeInvoker{fail: true}
	r := NewRenderer(inv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p, assets := renderFixture(t)
	dir := t.TempDir()

	_, err := r.Render(context.Background(), p, assets, dir, QualityExport)
	if err == nil {
		t.Fatal("Render() error = nil, want encoder failure")
	}

	var toolErr *ffmpeg.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error chain missing ToolError: %v", err)
	}
	if !strings.Contains(toolErr.Tail, "Invalid filtergraph") {
		t.Errorf("tail = %q, want diagnostics", toolErr.Tail)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("partial output left behind: %v", entries)
	}
}

func TestRender_EmptyTimelineFailsBeforeInvoking(t *testing.T) {
	inv := &fakeInvoker{}
	r := NewRenderer(inv, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := r.Render(context.Background(), project.NewProject(), nil, t.TempDir(), QualityPreview)
	if !errors.Is(err, ErrEmptyTimeline) {
		t.Fatalf("error = %v, want ErrEmptyTimeline", err)
	}
	if len(inv.args) != 0 {
		t.Fatal("validation failures must be reported before any subprocess is spawned")
	}
}

func TestCompileGIF_Effects(t *testing.T) {
	plain := CompileGIF("/in.mp4", "/out.gif", GIFOptions{Start: 1, Duration: 2, FPS: 12, Width: 320})
	if !strings.Contains(plain.Graph, "palettegen") || !strings.Contains(plain.Graph, "paletteuse") {
		t.Errorf("palette passes missing:\n%s", plain.Graph)
	}
	if !strings.Contains(plain.Graph, "fps=12") {
		t.Errorf("fps missing:\n%s", plain.Graph)
	}
	if strings.Contains(plain.Graph, "reverse") {
		t.Error("plain GIF must not reverse")
	}

	rev := CompileGIF("/in.mp4", "/out.gif", GIFOptions{Effect: GIFEffectReverse})
	if !strings.Contains(rev.Graph, "reverse") {
		t.Errorf("reverse effect missing:\n%s", rev.Graph)
	}

	boom := CompileGIF("/in.mp4", "/out.gif", GIFOptions{Effect: GIFEffectBoomerang})
	if !strings.Contains(boom.Graph, "concat=n=2") {
		t.Errorf("boomerang concat missing:\n%s", boom.Graph)
	}
}

func TestGraphSerialization(t *testing.T) {
	var g Graph
	g.Add(Stage{
		Filters: []Filter{{Name: "color", Args: []Arg{{Key: "c", Value: "black"}, {Key: "s", Value: "640x480"}}}},
		Outputs: []string{"base"},
	})
	g.Add(Stage{
		Inputs:  []string{"0:v"},
		Filters: []Filter{{Name: "trim", Args: []Arg{{Key: "start", Value: "0"}, {Key: "end", Value: "5"}}}, {Name: "setpts", Args: []Arg{{Value: "PTS-STARTPTS"}}}},
		Outputs: []string{"v0"},
	})
	g.Add(Stage{
		Inputs:  []string{"base", "v0"},
		Filters: []Filter{{Name: "overlay"}},
		Outputs: []string{"out"},
	})

	want := "color=c=black:s=640x480[base];[0:v]trim=start=0:end=5,setpts=PTS-STARTPTS[v0];[base][v0]overlay[out]"
	if got := g.String(); got != want {
		t.Fatalf("serialized graph = %q, want %q", got, want)
	}
}
