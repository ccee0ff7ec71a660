// Package silence implements silence detection and dead-air removal. It runs
// ffmpeg's silencedetect filter over a file, computes the complementary keep
// segments, and rebuilds the file from frame-accurate segment extractions.
package silence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
)

// Interval is a closed-open [Start, End) time range in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// DetectSilence runs the silencedetect filter over the whole file and parses
// paired start/end markers from the diagnostic stream. Malformed or unpaired
// markers are dropped rather than surfaced.
func DetectSilence(ctx context.Context, inv ffmpeg.Invoker, path string, thresholdDB, minDuration float64) ([]Interval, error) {
	args := []string{
		"-hide_banner", "-nostats",
		"-i", path,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", thresholdDB, minDuration),
		"-f", "null", "-",
	}

	parser := newMarkerParser()
	if err := inv.Run(ctx, args, parser.consume); err != nil {
		return nil, fmt.Errorf("silence detection: %w", err)
	}
	return parser.intervals, nil
}

// markerParser accumulates silence_start/silence_end pairs in stream order.
type markerParser struct {
	intervals []Interval
	pending   *float64
}

func newMarkerParser() *markerParser {
	return &markerParser{}
}

func (p *markerParser) consume(line string) {
	if start, ok := parseMarker(line, "silence_start:"); ok {
		p.pending = &start
		return
	}
	if end, ok := parseMarker(line, "silence_end:"); ok {
		if p.pending == nil {
			return
		}
		if end > *p.pending {
			p.intervals = append(p.intervals, Interval{Start: *p.pending, End: end})
		}
		p.pending = nil
	}
}

func parseMarker(line, marker string) (float64, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	// silence_end lines carry a trailing "| silence_duration: ..." field.
	if sep := strings.IndexAny(rest, " |"); sep >= 0 {
		rest = rest[:sep]
	}
	value, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
