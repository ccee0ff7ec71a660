package silence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
)

const (
	// DefaultThresholdDB is the noise floor below which audio counts as silence.
	DefaultThresholdDB = -30
	// DefaultMinSilence is the shortest silence worth cutting, in seconds.
	DefaultMinSilence = 0.5

	maxExtractWorkers = 4
)

// ErrAllSilent is returned when silence covers the entire file and removal
// would produce an empty output.
var ErrAllSilent = errors.New("entire file is silent, nothing to keep")

// DurationProber reports a file's duration, or 0 when unknown.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) float64
}

// Options tune the dead-air removal pass.
type Options struct {
	ThresholdDB float64
	MinSilence  float64
}

func (o Options) withDefaults() Options {
	if o.ThresholdDB == 0 {
		o.ThresholdDB = DefaultThresholdDB
	}
	if o.MinSilence <= 0 {
		o.MinSilence = DefaultMinSilence
	}
	return o
}

// Result summarizes a removal pass for human-readable reporting.
type Result struct {
	OriginalDuration float64
	NewDuration      float64
	RemovedDuration  float64
	PercentRemoved   float64
	SegmentCount     int
}

// Remover rebuilds a file without its silent stretches.
type Remover struct {
	invoker ffmpeg.Invoker
	prober  DurationProber
	logger  *slog.Logger
}

func NewRemover(invoker ffmpeg.Invoker, prober DurationProber, logger *slog.Logger) *Remover {
	return &Remover{invoker: invoker, prober: prober, logger: logger}
}

// RemoveDeadAir detects silence in the file at path and, when there is
// anything to cut, replaces the file in place with the concatenation of its
// non-silent segments. The original file is untouched when no silence is
// found. All intermediate files live in a scratch directory that is removed
// on every exit path.
func (r *Remover) RemoveDeadAir(ctx context.Context, path string, opts Options) (Result, error) {
	opts = opts.withDefaults()

	total := r.prober.ProbeDuration(ctx, path)
	if total <= 0 {
		return Result{}, fmt.Errorf("could not determine duration of %s", filepath.Base(path))
	}

	silences, err := DetectSilence(ctx, r.invoker, path, opts.ThresholdDB, opts.MinSilence)
	if err != nil {
		return Result{}, err
	}

	keep := KeepSegments(silences, total, DefaultMinSegment)
	if coversWhole(keep, total) {
		// Nothing to cut; skip the lossy re-encode entirely.
		return Result{OriginalDuration: total, NewDuration: total}, nil
	}
	if len(keep) == 0 {
		return Result{}, ErrAllSilent
	}

	scratch, err := os.MkdirTemp(filepath.Dir(path), "deadair-")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		// Cleanup is best-effort and never masks the primary result.
		if rmErr := os.RemoveAll(scratch); rmErr != nil && r.logger != nil {
			r.logger.Warn("scratch cleanup failed", "dir", scratch, "error", rmErr)
		}
	}()

	segments, err := r.extractSegments(ctx, path, scratch, keep)
	if err != nil {
		return Result{}, err
	}

	manifest, err := writeConcatManifest(scratch, segments)
	if err != nil {
		return Result{}, err
	}

	output := filepath.Join(scratch, "concat"+filepath.Ext(path))
	if err := r.concatenate(ctx, manifest, output); err != nil {
		return Result{}, err
	}

	// Rename into place so readers never observe a partial file.
	if err := os.Rename(output, path); err != nil {
		return Result{}, fmt.Errorf("replace original: %w", err)
	}

	newDuration := r.prober.ProbeDuration(ctx, path)
	if newDuration <= 0 {
		for _, seg := range keep {
			newDuration += seg.Duration()
		}
	}

	removed := total - newDuration
	if removed < 0 {
		removed = 0
	}
	result := Result{
		OriginalDuration: total,
		NewDuration:      newDuration,
		RemovedDuration:  removed,
		PercentRemoved:   removed / total * 100,
		SegmentCount:     len(keep),
	}

	if r.logger != nil {
		r.logger.Info("dead air removed",
			"original_s", result.OriginalDuration,
			"new_s", result.NewDuration,
			"removed_s", result.RemovedDuration,
			"segments", result.SegmentCount,
		)
	}
	return result, nil
}

// extractSegments re-encodes each keep segment with accurate post-input
// seeking. Stream copy would snap cuts to keyframes, so a fast re-encode is
// required for frame accuracy; final quality is preserved by the stream-copy
// concatenation that follows.
func (r *Remover) extractSegments(ctx context.Context, input, scratch string, keep []Interval) ([]string, error) {
	segments := make([]string, len(keep))

	g, gctx := errgroup.WithContext(ctx)
	workers := runtime.NumCPU()
	if workers > maxExtractWorkers {
		workers = maxExtractWorkers
	}
	g.SetLimit(workers)

	for i, seg := range keep {
		i, seg := i, seg
		segPath := filepath.Join(scratch, fmt.Sprintf("segment_%03d.mp4", i))
		segments[i] = segPath
		g.Go(func() error {
			args := []string{
				"-y",
				"-i", input,
				"-ss", formatSeconds(seg.Start),
				"-t", formatSeconds(seg.Duration()),
				"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
				"-c:a", "aac",
				"-avoid_negative_ts", "make_zero",
				segPath,
			}
			if err := r.invoker.Run(gctx, args, nil); err != nil {
				return fmt.Errorf("extract segment %d [%g, %g): %w", i, seg.Start, seg.End, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

// concatenate joins the already-encoded segments with a stream copy. The
// segments share a codec profile from extraction, so no second re-encode is
// needed; faststart packaging keeps the result immediately streamable.
func (r *Remover) concatenate(ctx context.Context, manifest, output string) error {
	args := []string{
		"-y",
		"-f", "concat", "-safe", "0",
		"-i", manifest,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}
	if err := r.invoker.Run(ctx, args, nil); err != nil {
		return fmt.Errorf("concatenate segments: %w", err)
	}
	return nil
}

func writeConcatManifest(scratch string, segments []string) (string, error) {
	manifest := filepath.Join(scratch, "concat.txt")
	f, err := os.Create(manifest)
	if err != nil {
		return "", fmt.Errorf("create concat manifest: %w", err)
	}
	defer f.Close()

	for _, seg := range segments {
		if _, err := fmt.Fprintf(f, "file '%s'\n", seg); err != nil {
			return "", fmt.Errorf("write concat manifest: %w", err)
		}
	}
	return manifest, nil
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}
