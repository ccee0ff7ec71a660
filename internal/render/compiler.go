package render

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/clipforge/clipforge-server/internal/project"
)

// ErrEmptyTimeline is the precondition failure for rendering a timeline with
// no usable clips. It is reported before any subprocess is spawned.
var ErrEmptyTimeline = errors.New("timeline has no clips to render")

// Quality selects the encoder preset trade-off.
type Quality string

const (
	QualityPreview Quality = "preview"
	QualityExport  Quality = "export"
)

// minRenderDuration avoids a zero-length output when the timeline is
// degenerate.
const minRenderDuration = 0.1

// Plan is a fully compiled encoder invocation: deterministic argument list
// plus the serialized filter graph, computed without spawning anything.
type Plan struct {
	Args       []string
	Graph      string
	HasAudio   bool
	Duration   float64
	OutputPath string
}

type placedClip struct {
	clip       project.Clip
	asset      *project.Asset
	trackOrder int
	listIndex  int
	inputIndex int
}

// Compile turns the clip/track graph into a single linear filter pipeline:
// a synthetic base layer, one trim/scale/pad chain per video clip, a chain of
// time-gated overlays, and a delayed audio mix. Clips whose asset no longer
// exists are skipped so stale timeline references never block a render.
func Compile(p *project.Project, assets map[string]*project.Asset, quality Quality, outputPath string) (*Plan, error) {
	videoClips, audioClips := partition(p, assets)
	if len(videoClips) == 0 && len(audioClips) == 0 {
		return nil, ErrEmptyTimeline
	}

	orderVideoClips(videoClips)

	total := minRenderDuration
	for _, pc := range append(append([]*placedClip{}, videoClips...), audioClips...) {
		if end := pc.clip.Start + pc.clip.Duration; end > total {
			total = end
		}
	}

	settings := p.Settings
	var args []string
	inputIndex := 0
	for _, pc := range videoClips {
		if pc.asset.Type == project.AssetImage {
			// Still images loop for the clip's placed duration.
			args = append(args, "-loop", "1", "-t", formatSeconds(pc.clip.Duration))
		}
		args = append(args, "-i", pc.asset.Path)
		pc.inputIndex = inputIndex
		inputIndex++
	}
	for _, pc := range audioClips {
		args = append(args, "-i", pc.asset.Path)
		pc.inputIndex = inputIndex
		inputIndex++
	}

	var graph Graph

	// Synthetic base layer: guarantees a defined image at every timeline
	// position even where no clip covers it.
	graph.Add(Stage{
		Filters: []Filter{{
			Name: "color",
			Args: []Arg{
				{Key: "c", Value: "black"},
				{Key: "s", Value: fmt.Sprintf("%dx%d", settings.Width, settings.Height)},
				{Key: "r", Value: strconv.Itoa(settings.FPS)},
				{Key: "d", Value: formatSeconds(total)},
			},
		}},
		Outputs: []string{"base"},
	})

	composite := "base"
	for i, pc := range videoClips {
		prepared := fmt.Sprintf("v%d", i)
		graph.Add(prepareVideoStage(pc, settings, prepared))

		next := fmt.Sprintf("comp%d", i)
		graph.Add(overlayStage(composite, prepared, pc, next))
		composite = next
	}

	hasAudio := len(audioClips) > 0
	if hasAudio {
		mixInputs := make([]string, len(audioClips))
		for i, pc := range audioClips {
			label := fmt.Sprintf("a%d", i)
			graph.Add(prepareAudioStage(pc, label))
			mixInputs[i] = label
		}
		graph.Add(Stage{
			Inputs: mixInputs,
			Filters: []Filter{{
				Name: "amix",
				Args: []Arg{
					{Key: "inputs", Value: strconv.Itoa(len(mixInputs))},
					{Key: "duration", Value: "longest"},
				},
			}},
			Outputs: []string{"aout"},
		})
	}

	args = append(args, "-filter_complex", graph.String())
	args = append(args, "-map", "["+composite+"]")
	if hasAudio {
		args = append(args, "-map", "[aout]")
	}

	args = append(args, "-c:v", "libx264")
	switch quality {
	case QualityExport:
		args = append(args, "-preset", "medium", "-crf", "18")
	default:
		args = append(args, "-preset", "ultrafast", "-crf", "28")
	}
	args = append(args, "-pix_fmt", "yuv420p")
	args = append(args, "-r", strconv.Itoa(settings.FPS))
	if hasAudio {
		args = append(args, "-c:a", "aac")
	}
	args = append(args, "-movflags", "+faststart")
	// Defensive bound against filter-graph drift.
	args = append(args, "-t", formatSeconds(total))
	args = append(args, "-y", outputPath)

	return &Plan{
		Args:       args,
		Graph:      graph.String(),
		HasAudio:   hasAudio,
		Duration:   total,
		OutputPath: outputPath,
	}, nil
}

// partition splits clips into video-bearing and audio-bearing by asset type,
// regardless of nominal track, dropping clips whose asset is gone.
func partition(p *project.Project, assets map[string]*project.Asset) (video, audio []*placedClip) {
	trackOrder := make(map[string]int, len(p.Tracks))
	for _, t := range p.Tracks {
		trackOrder[t.ID] = t.Order
	}

	for i, clip := range p.Clips {
		asset, ok := assets[clip.AssetID]
		if !ok {
			continue
		}
		pc := &placedClip{
			clip:       clip,
			asset:      asset,
			trackOrder: trackOrder[clip.TrackID],
			listIndex:  i,
		}
		if asset.Type == project.AssetAudio {
			audio = append(audio, pc)
		} else {
			video = append(video, pc)
		}
	}
	return video, audio
}

// orderVideoClips sorts by track priority (lower order = base layer) and
// keeps list order within a track. Overlapping clips on one track both
// render; the later one wins visually where they intersect.
func orderVideoClips(clips []*placedClip) {
	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].trackOrder != clips[j].trackOrder {
			return clips[i].trackOrder < clips[j].trackOrder
		}
		return clips[i].listIndex < clips[j].listIndex
	})
}

// prepareVideoStage trims the clip to its in/out window, rebases timestamps
// to zero, fits it to the canvas, and applies the optional transform scale
// and opacity. Order matters: trim before scale before overlay.
func prepareVideoStage(pc *placedClip, settings project.Settings, output string) Stage {
	input := fmt.Sprintf("%d:v", pc.inputIndex)
	var filters []Filter

	if pc.asset.Type != project.AssetImage {
		filters = append(filters, Filter{
			Name: "trim",
			Args: []Arg{
				{Key: "start", Value: formatSeconds(pc.clip.InPoint)},
				{Key: "end", Value: formatSeconds(pc.clip.OutPoint)},
			},
		})
	}
	filters = append(filters, Filter{Name: "setpts", Args: []Arg{{Value: "PTS-STARTPTS"}}})

	filters = append(filters,
		Filter{
			Name: "scale",
			Args: []Arg{
				{Value: strconv.Itoa(settings.Width)},
				{Value: strconv.Itoa(settings.Height)},
				{Key: "force_original_aspect_ratio", Value: "decrease"},
			},
		},
		Filter{
			Name: "pad",
			Args: []Arg{
				{Value: strconv.Itoa(settings.Width)},
				{Value: strconv.Itoa(settings.Height)},
				{Value: "(ow-iw)/2"},
				{Value: "(oh-ih)/2"},
			},
		},
	)

	if t := pc.clip.Transform; t != nil {
		if t.Scale > 0 && t.Scale != 1 {
			// Applied after the fit step, compounding with it.
			filters = append(filters, Filter{
				Name: "scale",
				Args: []Arg{
					{Value: fmt.Sprintf("iw*%s", formatNumber(t.Scale))},
					{Value: fmt.Sprintf("ih*%s", formatNumber(t.Scale))},
				},
			})
		}
		if t.Opacity != nil && *t.Opacity < 1 {
			// An explicit 0 renders the clip transparent; only nil (or a
			// full 1) skips the alpha stage.
			aa := *t.Opacity
			if aa < 0 {
				aa = 0
			}
			filters = append(filters,
				Filter{Name: "format", Args: []Arg{{Value: "yuva420p"}}},
				Filter{Name: "colorchannelmixer", Args: []Arg{{Key: "aa", Value: formatNumber(aa)}}},
			)
		}
	}

	return Stage{Inputs: []string{input}, Filters: filters, Outputs: []string{output}}
}

// overlayStage composites the prepared clip onto the running composite,
// gated to its window on the global timeline. The gating is what lets a clip
// sit anywhere on the timeline independent of its source in/out points.
func overlayStage(background, foreground string, pc *placedClip, output string) Stage {
	x := "(main_w-overlay_w)/2"
	y := "(main_h-overlay_h)/2"
	if t := pc.clip.Transform; t != nil {
		if t.X != 0 {
			x = fmt.Sprintf("(main_w-overlay_w)/2+%s", formatNumber(t.X))
		}
		if t.Y != 0 {
			y = fmt.Sprintf("(main_h-overlay_h)/2+%s", formatNumber(t.Y))
		}
	}

	windowStart := pc.clip.Start
	windowEnd := pc.clip.Start + pc.clip.Duration

	return Stage{
		Inputs: []string{background, foreground},
		Filters: []Filter{{
			Name: "overlay",
			Args: []Arg{
				{Key: "x", Value: x},
				{Key: "y", Value: y},
				{Key: "enable", Value: fmt.Sprintf("'between(t,%s,%s)'",
					formatSeconds(windowStart), formatSeconds(windowEnd))},
			},
		}},
		Outputs: []string{output},
	}
}

// prepareAudioStage trims the audio clip, rebases timestamps, and delays it
// so its first sample lands at the clip's timeline start on both channels.
func prepareAudioStage(pc *placedClip, output string) Stage {
	input := fmt.Sprintf("%d:a", pc.inputIndex)
	delayMs := int(pc.clip.Start * 1000)

	filters := []Filter{
		{
			Name: "atrim",
			Args: []Arg{
				{Key: "start", Value: formatSeconds(pc.clip.InPoint)},
				{Key: "end", Value: formatSeconds(pc.clip.OutPoint)},
			},
		},
		{Name: "asetpts", Args: []Arg{{Value: "PTS-STARTPTS"}}},
		{
			Name: "adelay",
			Args: []Arg{{Value: fmt.Sprintf("%d|%d", delayMs, delayMs)}},
		},
	}
	return Stage{Inputs: []string{input}, Filters: filters, Outputs: []string{output}}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
