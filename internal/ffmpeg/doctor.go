package ffmpeg

import (
	"os/exec"
)

// Capabilities reports which external tools were found on PATH at startup.
type Capabilities struct {
	FFmpegPath  string
	FFprobePath string
	HasFFmpeg   bool
	HasFFprobe  bool
}

// CheckTools resolves the configured binaries. Missing tools are reported,
// not fatal: probing degrades to zero-valued metadata and encoding fails
// per-operation with a clear error.
func CheckTools(ffmpegBinary, ffprobeBinary string) Capabilities {
	caps := Capabilities{}
	if path, err := exec.LookPath(ffmpegBinary); err == nil {
		caps.HasFFmpeg = true
		caps.FFmpegPath = path
	}
	if path, err := exec.LookPath(ffprobeBinary); err == nil {
		caps.HasFFprobe = true
		caps.FFprobePath = path
	}
	return caps
}
