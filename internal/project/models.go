// Package project holds the session's editing state: the asset library and
// the timeline of tracks, clips and render settings.
package project

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrClipNotFound  = errors.New("clip not found")
	ErrTrackNotFound = errors.New("track not found")
)

// AssetType classifies a source media file.
type AssetType string

const (
	AssetVideo AssetType = "video"
	AssetImage AssetType = "image"
	AssetAudio AssetType = "audio"
)

// ImageNominalDuration is the default duration assigned to still images when
// they are placed on the timeline.
const ImageNominalDuration = 5.0

// MinClipDuration is the floor below which a clip's trim window degenerates
// into an unusable filter graph.
const MinClipDuration = 0.1

// Asset is a source media file registered in a session's library. The file at
// Path is exclusively owned by the asset and removed with it.
type Asset struct {
	ID            string    `json:"id"`
	Type          AssetType `json:"type"`
	Filename      string    `json:"filename"`
	Path          string    `json:"path"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
	Duration      float64   `json:"duration"`
	Size          int64     `json:"size"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TrackType groups lanes into video (composited) and audio (mixed).
type TrackType string

const (
	TrackVideo TrackType = "video"
	TrackAudio TrackType = "audio"
)

// Track is a named lane. Order determines compositing order for video
// tracks: lower order renders first, underneath.
type Track struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Type  TrackType `json:"type"`
	Order int       `json:"order"`
}

// Transform is an optional visual adjustment applied to a clip. X and Y are
// pixel offsets from the centered position; Scale is a uniform factor applied
// after scale-to-fit. Opacity is 0-1; nil means fully opaque, while an
// explicit 0 renders the clip transparent.
type Transform struct {
	X       float64  `json:"x"`
	Y       float64  `json:"y"`
	Scale   float64  `json:"scale"`
	Opacity *float64 `json:"opacity,omitempty"`
}

// Clip is a placed instance of an asset on a track. The clip plays the asset
// sub-range [InPoint, OutPoint) starting at Start on the global timeline.
type Clip struct {
	ID        string     `json:"id"`
	AssetID   string     `json:"assetId"`
	TrackID   string     `json:"trackId"`
	Start     float64    `json:"start"`
	Duration  float64    `json:"duration"`
	InPoint   float64    `json:"inPoint"`
	OutPoint  float64    `json:"outPoint"`
	Transform *Transform `json:"transform,omitempty"`
}

// Settings are the shared canvas parameters for a render.
type Settings struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

// Project is the serialized timeline structure: the sole persisted form.
type Project struct {
	Tracks   []Track  `json:"tracks"`
	Clips    []Clip   `json:"clips"`
	Settings Settings `json:"settings"`
}

// DefaultSettings returns the canvas defaults for new sessions.
func DefaultSettings() Settings {
	return Settings{Width: 1920, Height: 1080, FPS: 30}
}

// DefaultTracks returns the fixed default lane set: two video lanes layered
// beneath one another plus one audio lane. Additional tracks may be added.
func DefaultTracks() []Track {
	return []Track{
		{ID: "video-1", Name: "Video 1", Type: TrackVideo, Order: 0},
		{ID: "video-2", Name: "Video 2", Type: TrackVideo, Order: 1},
		{ID: "audio-1", Name: "Audio 1", Type: TrackAudio, Order: 2},
	}
}

// NewProject returns an empty project with default tracks and settings.
func NewProject() *Project {
	return &Project{
		Tracks:   DefaultTracks(),
		Clips:    []Clip{},
		Settings: DefaultSettings(),
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
	".ogg":  true,
	".flac": true,
}

// ClassifyType resolves an asset type from the declared type when given,
// otherwise from the filename extension. Unknown extensions default to video.
func ClassifyType(filename string, declared AssetType) AssetType {
	switch declared {
	case AssetVideo, AssetImage, AssetAudio:
		return declared
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if imageExtensions[ext] {
		return AssetImage
	}
	if audioExtensions[ext] {
		return AssetAudio
	}
	return AssetVideo
}
