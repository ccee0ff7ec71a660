// Package export renders a session timeline as a CMX 3600 style EDL so the
// cut can be carried into desktop editing tools.
package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/clipforge/clipforge-server/internal/project"
)

// Event is one timeline clip resolved against the asset library.
type Event struct {
	ClipName  string
	MediaPath string
	SourceIn  float64
	SourceOut float64
	RecordIn  float64
	RecordOut float64
}

// Result is a generated EDL plus the clips that could not be resolved.
type Result struct {
	EDL        string
	EventCount int
	Unresolved []string
}

// FromProject resolves the timeline's clips against the asset table and
// generates the EDL. Clips whose asset is gone are reported as unresolved,
// not dropped silently. Events are ordered by record (timeline) position.
func FromProject(p *project.Project, assets map[string]*project.Asset, title string) Result {
	var events []Event
	var unresolved []string

	for _, clip := range p.Clips {
		asset, ok := assets[clip.AssetID]
		if !ok {
			unresolved = append(unresolved, clip.ID)
			continue
		}
		events = append(events, Event{
			ClipName:  asset.Filename,
			MediaPath: asset.Path,
			SourceIn:  clip.InPoint,
			SourceOut: clip.OutPoint,
			RecordIn:  clip.Start,
			RecordOut: clip.Start + clip.Duration,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].RecordIn < events[j].RecordIn
	})

	fps := p.Settings.FPS
	if fps <= 0 {
		fps = 30
	}

	return Result{
		EDL:        generate(events, title, fps),
		EventCount: len(events),
		Unresolved: unresolved,
	}
}

func generate(events []Event, title string, fps int) string {
	lines := []string{
		"TITLE: " + title,
		"FCM: NON-DROP FRAME",
		"",
	}

	for i, ev := range events {
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s",
				i+1, "AX", "V",
				timecode(ev.SourceIn, fps), timecode(ev.SourceOut, fps),
				timecode(ev.RecordIn, fps), timecode(ev.RecordOut, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func timecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, secs, frames)
}
