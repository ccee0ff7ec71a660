package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/project"
)

// Renderer compiles timelines and drives the encoder.
type Renderer struct {
	invoker ffmpeg.Invoker
	logger  *slog.Logger
}

func NewRenderer(invoker ffmpeg.Invoker, logger *slog.Logger) *Renderer {
	return &Renderer{invoker: invoker, logger: logger}
}

// OutputName returns the fixed output filename for a quality level. The
// renders directory holding these files is part of the session's durable
// layout.
func OutputName(quality Quality) string {
	if quality == QualityExport {
		return "export.mp4"
	}
	return "preview.mp4"
}

// Render compiles the project and encodes it into rendersDir. The encode
// writes to a temp path and renames into place so a concurrent download never
// observes a partial file. Partial output is removed on failure. The temp name
// keeps the container extension: ffmpeg picks the output muxer from it.
func (r *Renderer) Render(ctx context.Context, p *project.Project, assets map[string]*project.Asset, rendersDir string, quality Quality) (string, error) {
	name := OutputName(quality)
	ext := filepath.Ext(name)
	finalPath := filepath.Join(rendersDir, name)
	tmpPath := filepath.Join(rendersDir, "."+strings.TrimSuffix(name, ext)+".tmp"+ext)

	plan, err := Compile(p, assets, quality, tmpPath)
	if err != nil {
		return "", err
	}

	if r.logger != nil {
		r.logger.Info("starting render",
			"quality", string(quality),
			"clips", len(p.Clips),
			"duration_s", plan.Duration,
		)
		r.logger.Debug("compiled filter graph", "graph", plan.Graph)
	}

	if err := r.invoker.Run(ctx, plan.Args, nil); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("render: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalize render: %w", err)
	}
	return finalPath, nil
}
