package render

import (
	"context"
	"fmt"
	"strconv"
)

// GIFEffect selects an optional playback treatment for generated GIFs.
type GIFEffect string

const (
	GIFEffectNone      GIFEffect = "none"
	GIFEffectReverse   GIFEffect = "reverse"
	GIFEffectBoomerang GIFEffect = "boomerang"
)

// GIFOptions describe a GIF extraction from a source video.
type GIFOptions struct {
	Start    float64
	Duration float64
	FPS      int
	Width    int
	Height   int
	Effect   GIFEffect
}

func (o GIFOptions) withDefaults() GIFOptions {
	if o.Duration <= 0 {
		o.Duration = 3
	}
	if o.FPS <= 0 {
		o.FPS = 15
	}
	if o.Width <= 0 {
		o.Width = 480
	}
	if o.Height <= 0 {
		o.Height = -1
	}
	if o.Effect == "" {
		o.Effect = GIFEffectNone
	}
	return o
}

// CompileGIF builds the palette-based GIF extraction plan. A generated
// palette keeps quality acceptable at GIF's 256-color limit; the palettegen
// and paletteuse passes share one invocation via a split.
func CompileGIF(srcPath, dstPath string, opts GIFOptions) *Plan {
	opts = opts.withDefaults()

	var graph Graph

	base := []Filter{
		{Name: "fps", Args: []Arg{{Value: strconv.Itoa(opts.FPS)}}},
		{Name: "scale", Args: []Arg{
			{Value: strconv.Itoa(opts.Width)},
			{Value: strconv.Itoa(opts.Height)},
			{Key: "flags", Value: "lanczos"},
		}},
	}

	switch opts.Effect {
	case GIFEffectReverse:
		graph.Add(Stage{
			Inputs:  []string{"0:v"},
			Filters: append(base, Filter{Name: "reverse"}),
			Outputs: []string{"frames"},
		})
	case GIFEffectBoomerang:
		graph.Add(Stage{
			Inputs:  []string{"0:v"},
			Filters: append(base, Filter{Name: "split"}),
			Outputs: []string{"fwd", "tail"},
		})
		graph.Add(Stage{
			Inputs:  []string{"tail"},
			Filters: []Filter{{Name: "reverse"}},
			Outputs: []string{"rev"},
		})
		graph.Add(Stage{
			Inputs:  []string{"fwd", "rev"},
			Filters: []Filter{{Name: "concat", Args: []Arg{{Key: "n", Value: "2"}}}},
			Outputs: []string{"frames"},
		})
	default:
		graph.Add(Stage{
			Inputs:  []string{"0:v"},
			Filters: base,
			Outputs: []string{"frames"},
		})
	}

	graph.Add(Stage{
		Inputs:  []string{"frames"},
		Filters: []Filter{{Name: "split"}},
		Outputs: []string{"pal_in", "use_in"},
	})
	graph.Add(Stage{
		Inputs:  []string{"pal_in"},
		Filters: []Filter{{Name: "palettegen"}},
		Outputs: []string{"palette"},
	})
	graph.Add(Stage{
		Inputs:  []string{"use_in", "palette"},
		Filters: []Filter{{Name: "paletteuse"}},
		Outputs: []string{"gif"},
	})

	args := []string{
		"-ss", formatSeconds(opts.Start),
		"-t", formatSeconds(opts.Duration),
		"-i", srcPath,
		"-filter_complex", graph.String(),
		"-map", "[gif]",
		"-y", dstPath,
	}

	return &Plan{Args: args, Graph: graph.String(), Duration: opts.Duration, OutputPath: dstPath}
}

// CreateGIF extracts an animated GIF from a source video.
func (r *Renderer) CreateGIF(ctx context.Context, srcPath, dstPath string, opts GIFOptions) error {
	plan := CompileGIF(srcPath, dstPath, opts)
	if err := r.invoker.Run(ctx, plan.Args, nil); err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	return nil
}
