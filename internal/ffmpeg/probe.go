package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// ProbeResult represents the parsed output from an ffprobe inspection.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// MediaInfo is the tolerant summary callers consume. A zero value means
// "unknown", never a hard failure.
type MediaInfo struct {
	Width    int
	Height   int
	Duration float64
}

// Prober wraps the external inspector binary.
type Prober struct {
	binary string
	logger *slog.Logger
}

func NewProber(binary string, logger *slog.Logger) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary, logger: logger}
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response. Unlike the Probe* helpers it does propagate errors.
func (p *Prober) Inspect(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := commandContext(ctx, p.binary, "-v", "error", "-hide_banner",
		"-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// ProbeDuration returns the container duration in seconds, or 0 on any
// failure. Callers must treat 0 as "unknown", never as an error.
func (p *Prober) ProbeDuration(ctx context.Context, path string) float64 {
	info := p.ProbeMediaInfo(ctx, path)
	return info.Duration
}

// ProbeMediaInfo returns width, height and duration for the file, or a
// zero-valued struct on any failure.
func (p *Prober) ProbeMediaInfo(ctx context.Context, path string) MediaInfo {
	result, err := p.Inspect(ctx, path)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("probe failed", "path", path, "error", err)
		}
		return MediaInfo{}
	}
	return result.mediaInfo()
}

func (r ProbeResult) mediaInfo() MediaInfo {
	info := MediaInfo{Duration: parseFloat(r.Format.Duration)}
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			info.Width = stream.Width
			info.Height = stream.Height
			if info.Duration == 0 {
				info.Duration = parseFloat(stream.Duration)
			}
			break
		}
	}
	return info
}

// DurationSeconds returns the container duration in seconds, or 0 when
// unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// HasAudio reports whether the container carries at least one audio stream.
func (r ProbeResult) HasAudio() bool {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return true
		}
	}
	return false
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
