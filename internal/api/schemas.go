package api

import (
	"fmt"
	"time"

	"github.com/clipforge/clipforge-server/internal/project"
	"github.com/clipforge/clipforge-server/internal/session"
	"github.com/clipforge/clipforge-server/internal/transcribe"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	Sessions int    `json:"sessions"`
	FFmpeg   bool   `json:"ffmpeg"`
	FFprobe  bool   `json:"ffprobe"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type UploadResponse struct {
	SessionID string  `json:"sessionId"`
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
	Name      string  `json:"name"`
}

type InfoResponse struct {
	SessionID string  `json:"sessionId"`
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
	Name      string  `json:"name"`
	EditCount int     `json:"editCount"`
	CreatedAt string  `json:"createdAt"`
}

type ProcessRequest struct {
	Command string `json:"command"`
}

type ProcessResponse struct {
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
	EditCount int     `json:"editCount"`
}

type DeadAirRequest struct {
	SilenceThreshold   float64 `json:"silenceThreshold,omitempty"`
	MinSilenceDuration float64 `json:"minSilenceDuration,omitempty"`
}

type DeadAirResponse struct {
	Duration         float64 `json:"duration"`
	OriginalDuration float64 `json:"originalDuration"`
	RemovedDuration  float64 `json:"removedDuration"`
	PercentRemoved   float64 `json:"percentRemoved"`
	SegmentCount     int     `json:"segmentCount"`
	Size             int64   `json:"size"`
	EditCount        int     `json:"editCount"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type AssetResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Filename     string  `json:"filename"`
	Duration     float64 `json:"duration"`
	Size         int64   `json:"size"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

type AssetEnvelope struct {
	Asset AssetResponse `json:"asset"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

type RenderRequest struct {
	Preview bool `json:"preview"`
}

type RenderResponse struct {
	Size        int64   `json:"size"`
	Duration    float64 `json:"duration"`
	DownloadURL string  `json:"downloadUrl"`
}

type ExtractResponse struct {
	Transcript string               `json:"transcript"`
	Keywords   []transcribe.Keyword `json:"keywords"`
	GIFAssets  []AssetResponse      `json:"gifAssets"`
}

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type EDLResponse struct {
	EDL        string   `json:"edl"`
	EventCount int      `json:"eventCount"`
	Unresolved []string `json:"unresolved,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func AssetToResponse(sessionID string, a *project.Asset) AssetResponse {
	resp := AssetResponse{
		ID:        a.ID,
		Type:      string(a.Type),
		Filename:  a.Filename,
		Duration:  a.Duration,
		Size:      a.Size,
		Width:     a.Width,
		Height:    a.Height,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.ThumbnailPath != "" {
		resp.ThumbnailURL = fmt.Sprintf("/session/%s/assets/%s/thumbnail", sessionID, a.ID)
	}
	return resp
}

func JobToResponse(j *session.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}
