package project

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
)

const (
	thumbnailWidth  = 320
	thumbnailHeight = 180
)

// MetadataProber reports tolerant media metadata for ingested files.
type MetadataProber interface {
	ProbeMediaInfo(ctx context.Context, path string) ffmpeg.MediaInfo
}

// Store holds the ingested media files of one session. It owns the files
// under its directory: deleting an asset deletes its backing files. The
// store is not safe for concurrent mutation; the owning session serializes
// access.
type Store struct {
	dir     string
	prober  MetadataProber
	invoker ffmpeg.Invoker
	logger  *slog.Logger

	assets map[string]*Asset
	order  []string
}

func NewStore(dir string, prober MetadataProber, invoker ffmpeg.Invoker, logger *slog.Logger) *Store {
	return &Store{
		dir:     dir,
		prober:  prober,
		invoker: invoker,
		logger:  logger,
		assets:  make(map[string]*Asset),
	}
}

// Dir returns the directory holding the store's files.
func (s *Store) Dir() string {
	return s.dir
}

// Ingest registers a new asset from an uploaded stream. The file is written
// under a fresh id, probed for metadata, and thumbnailed best-effort.
func (s *Store) Ingest(ctx context.Context, r io.Reader, filename string, declared AssetType) (*Asset, error) {
	id := uuid.NewString()
	dst := filepath.Join(s.dir, id+filepath.Ext(filename))

	if err := WriteFileAtomic(dst, r); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return s.register(ctx, id, dst, filename, declared)
}

// IngestFile registers an existing file (a derived asset such as a rendered
// GIF or a downloaded file) by moving it into the store.
func (s *Store) IngestFile(ctx context.Context, srcPath, filename string, declared AssetType) (*Asset, error) {
	id := uuid.NewString()
	dst := filepath.Join(s.dir, id+filepath.Ext(filename))

	if err := os.Rename(srcPath, dst); err != nil {
		// Source may live on another filesystem; fall back to a copy.
		src, openErr := os.Open(srcPath)
		if openErr != nil {
			return nil, fmt.Errorf("store file: %w", err)
		}
		copyErr := WriteFileAtomic(dst, src)
		src.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("store file: %w", copyErr)
		}
		os.Remove(srcPath)
	}
	return s.register(ctx, id, dst, filename, declared)
}

func (s *Store) register(ctx context.Context, id, path, filename string, declared AssetType) (*Asset, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat asset: %w", err)
	}

	assetType := ClassifyType(filename, declared)
	info := s.prober.ProbeMediaInfo(ctx, path)

	duration := info.Duration
	if assetType == AssetImage {
		duration = ImageNominalDuration
	}

	asset := &Asset{
		ID:        id,
		Type:      assetType,
		Filename:  filename,
		Path:      path,
		Duration:  duration,
		Size:      stat.Size(),
		Width:     info.Width,
		Height:    info.Height,
		CreatedAt: time.Now(),
	}

	if assetType != AssetAudio {
		asset.ThumbnailPath = s.generateThumbnail(ctx, asset)
	}

	s.assets[id] = asset
	s.order = append(s.order, id)
	return asset, nil
}

// generateThumbnail produces a single representative frame. Failure is
// logged, never propagated: a missing thumbnail does not fail ingestion.
func (s *Store) generateThumbnail(ctx context.Context, asset *Asset) string {
	thumbPath := filepath.Join(s.dir, asset.ID+"_thumb.jpg")

	fit := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		thumbnailWidth, thumbnailHeight, thumbnailWidth, thumbnailHeight)

	var args []string
	if asset.Type == AssetImage {
		args = []string{"-y", "-i", asset.Path, "-vf", fit, "-frames:v", "1", thumbPath}
	} else {
		offset := 1.0
		if tenth := asset.Duration * 0.1; tenth < offset {
			offset = tenth
		}
		args = []string{
			"-y",
			"-ss", fmt.Sprintf("%.3f", offset),
			"-i", asset.Path,
			"-vf", fit,
			"-frames:v", "1",
			thumbPath,
		}
	}

	if err := s.invoker.Run(ctx, args, nil); err != nil {
		if s.logger != nil {
			s.logger.Warn("thumbnail generation failed", "asset_id", asset.ID, "error", err)
		}
		return ""
	}
	return thumbPath
}

// Get returns the asset with the given id.
func (s *Store) Get(assetID string) (*Asset, error) {
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

// List returns assets in insertion order.
func (s *Store) List() []*Asset {
	out := make([]*Asset, 0, len(s.order))
	for _, id := range s.order {
		if asset, ok := s.assets[id]; ok {
			out = append(out, asset)
		}
	}
	return out
}

// Lookup is a map view for render compilation. Missing entries mean the
// referenced asset was deleted and the clip should be skipped.
func (s *Store) Lookup() map[string]*Asset {
	out := make(map[string]*Asset, len(s.assets))
	for id, asset := range s.assets {
		out[id] = asset
	}
	return out
}

// Delete removes the asset record and its backing files. File removal is
// best-effort; the record is removed regardless. Callers cascade the clip
// removal through the timeline.
func (s *Store) Delete(assetID string) (*Asset, error) {
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, ErrAssetNotFound
	}

	if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) && s.logger != nil {
		s.logger.Warn("asset file removal failed", "asset_id", assetID, "error", err)
	}
	if asset.ThumbnailPath != "" {
		if err := os.Remove(asset.ThumbnailPath); err != nil && !os.IsNotExist(err) && s.logger != nil {
			s.logger.Warn("thumbnail removal failed", "asset_id", assetID, "error", err)
		}
	}

	delete(s.assets, assetID)
	for i, id := range s.order {
		if id == assetID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return asset, nil
}

// Restore re-attaches asset records loaded from the registry after a restart.
// Records whose backing file no longer exists are dropped.
func (s *Store) Restore(assets []Asset) {
	for _, a := range assets {
		if _, err := os.Stat(a.Path); err != nil {
			continue
		}
		asset := a
		s.assets[asset.ID] = &asset
		s.order = append(s.order, asset.ID)
	}
}

// WriteFileAtomic drains r into a temp file next to dst and renames it into
// place, so dst never holds a partial write.
func WriteFileAtomic(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
