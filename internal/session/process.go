package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidRequest marks edit parameters rejected before any subprocess is
// spawned. Callers can distinguish these from encoder failures.
var ErrInvalidRequest = errors.New("invalid edit request")

// BuildProcessArgs turns a legacy templated command string into an encoder
// argument list. This is a deprecated compatibility shim: the template is
// split on whitespace and only whole tokens of the form input.<ext> or
// output.<ext> are substituted with real paths. Tokens are never rewritten
// by pattern-matching inside larger strings.
//
// Returns the argument list and the resolved output path.
func BuildProcessArgs(command, inputPath, outputDir string) ([]string, string, error) {
	tokens := strings.Fields(command)
	if len(tokens) == 0 {
		return nil, "", fmt.Errorf("%w: empty command", ErrInvalidRequest)
	}

	var outputPath string
	sawInput := false

	args := make([]string, 0, len(tokens)+1)
	args = append(args, "-y")

	for _, token := range tokens {
		stem, ext, ok := splitPlaceholder(token)
		if !ok {
			args = append(args, token)
			continue
		}
		switch stem {
		case "input":
			args = append(args, inputPath)
			sawInput = true
		case "output":
			if outputPath == "" {
				outputPath = filepath.Join(outputDir, "output."+ext)
			}
			args = append(args, outputPath)
		default:
			args = append(args, token)
		}
	}

	if !sawInput {
		return nil, "", fmt.Errorf("%w: command has no input placeholder", ErrInvalidRequest)
	}
	if outputPath == "" {
		return nil, "", fmt.Errorf("%w: command has no output placeholder", ErrInvalidRequest)
	}
	return args, outputPath, nil
}

// splitPlaceholder recognizes name.<ext> tokens with a short alphanumeric
// extension. Anything else, including paths and filter expressions containing
// dots, passes through untouched.
func splitPlaceholder(token string) (stem, ext string, ok bool) {
	dot := strings.LastIndexByte(token, '.')
	if dot <= 0 || dot == len(token)-1 {
		return "", "", false
	}
	stem = strings.ToLower(token[:dot])
	ext = strings.ToLower(token[dot+1:])
	if stem != "input" && stem != "output" {
		return "", "", false
	}
	if len(ext) > 5 {
		return "", "", false
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", "", false
		}
	}
	return stem, ext, true
}

// EditRequest is the structured replacement for the templated command: a
// typed description of an in-place edit compiled deterministically into an
// argument list.
type EditRequest struct {
	TrimStart float64 `json:"trimStart,omitempty"`
	TrimEnd   float64 `json:"trimEnd,omitempty"`
	Width     int     `json:"width,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Mute      bool    `json:"mute,omitempty"`
}

// BuildEditArgs compiles an EditRequest into encoder arguments. Validation
// happens here, before any subprocess is spawned.
func BuildEditArgs(req EditRequest, inputPath, outputPath string) ([]string, error) {
	if req.TrimEnd != 0 && req.TrimEnd <= req.TrimStart {
		return nil, fmt.Errorf("%w: trim window [%g, %g]", ErrInvalidRequest, req.TrimStart, req.TrimEnd)
	}
	if req.TrimStart < 0 {
		return nil, fmt.Errorf("%w: trim start %g", ErrInvalidRequest, req.TrimStart)
	}
	// atempo accepts 0.5-2.0 per pass; stay inside a single pass.
	if req.Speed != 0 && (req.Speed < 0.5 || req.Speed > 2) {
		return nil, fmt.Errorf("%w: speed %g out of range [0.5, 2]", ErrInvalidRequest, req.Speed)
	}
	if req.Width < 0 {
		return nil, fmt.Errorf("%w: width %d", ErrInvalidRequest, req.Width)
	}

	args := []string{"-y", "-i", inputPath}

	if req.TrimStart > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", req.TrimStart))
	}
	if req.TrimEnd > 0 {
		args = append(args, "-to", fmt.Sprintf("%.3f", req.TrimEnd))
	}

	var videoFilters []string
	if req.Width > 0 {
		videoFilters = append(videoFilters, fmt.Sprintf("scale=%d:-2", req.Width))
	}
	if req.Speed != 0 && req.Speed != 1 {
		videoFilters = append(videoFilters, fmt.Sprintf("setpts=PTS/%g", req.Speed))
	}
	if len(videoFilters) > 0 {
		args = append(args, "-vf", strings.Join(videoFilters, ","))
	}

	if req.Mute {
		args = append(args, "-an")
	} else if req.Speed != 0 && req.Speed != 1 {
		args = append(args, "-af", fmt.Sprintf("atempo=%g", req.Speed))
	}

	args = append(args,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
	)
	if !req.Mute {
		args = append(args, "-c:a", "aac")
	}
	args = append(args, "-movflags", "+faststart", outputPath)
	return args, nil
}
