package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-server/internal/project"
	"github.com/clipforge/clipforge-server/internal/render"
	"github.com/clipforge/clipforge-server/internal/silence"
	"github.com/clipforge/clipforge-server/internal/transcribe"
)

// Info is a point-in-time view of a session's working media.
type Info struct {
	SessionID string    `json:"sessionId"`
	Duration  float64   `json:"duration"`
	Size      int64     `json:"size"`
	Name      string    `json:"name"`
	EditCount int       `json:"editCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// RenderResult reports a finished timeline render.
type RenderResult struct {
	Path     string
	Name     string
	Size     int64
	Duration float64
}

// DeadAirResult reports a dead-air removal pass on the working file.
type DeadAirResult struct {
	silence.Result
	Size      int64
	EditCount int
}

// ProcessResult reports an in-place edit of the working file.
type ProcessResult struct {
	Duration  float64
	Size      int64
	EditCount int
}

// GIFRequest describes a GIF extraction from a library asset.
type GIFRequest struct {
	SourceAssetID string  `json:"sourceAssetId"`
	Effect        string  `json:"effect"`
	Start         float64 `json:"start"`
	Duration      float64 `json:"duration"`
	FPS           int     `json:"fps"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
}

// ExtractResult reports the transcribe-and-extract pipeline. GIFAssets holds
// only the keywords whose fetch succeeded; per-keyword failures are logged
// and skipped, never fatal to the batch.
type ExtractResult struct {
	Transcript string
	Keywords   []transcribe.Keyword
	GIFAssets  []*project.Asset
}

// Info snapshots the session's working-file state.
func (m *Manager) Info(ctx context.Context, id string) (*Info, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	info := &Info{
		SessionID: s.ID,
		Name:      s.OriginalName,
		EditCount: s.EditCount,
		CreatedAt: s.CreatedAt,
	}
	if s.CurrentFile != "" {
		if stat, err := os.Stat(s.CurrentFile); err == nil {
			info.Size = stat.Size()
		}
		info.Duration = m.prober.ProbeDuration(ctx, s.CurrentFile)
	}
	return info, nil
}

// Render compiles the session's timeline and encodes it into the renders
// directory. The session lock is held for the whole encode; renders serialize
// against other mutating operations on the same session.
func (m *Manager) Render(ctx context.Context, id string, preview bool) (*RenderResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	quality := render.QualityExport
	if preview {
		quality = render.QualityPreview
	}

	s.Lock()
	defer s.Unlock()

	job := m.startJob(ctx, id, "render")
	path, err := m.renderer.Render(ctx, s.Project, s.Store.Lookup(), s.RendersDir(), quality)
	m.finishJob(ctx, job, err)
	if err != nil {
		return nil, err
	}

	result := &RenderResult{
		Path:     path,
		Name:     render.OutputName(quality),
		Duration: s.Project.TotalDuration(),
	}
	if stat, err := os.Stat(path); err == nil {
		result.Size = stat.Size()
	}
	if d := m.prober.ProbeDuration(ctx, path); d > 0 {
		result.Duration = d
	}
	return result, nil
}

// RemoveDeadAir cuts silence out of the session's working file in place.
func (m *Manager) RemoveDeadAir(ctx context.Context, id string, opts silence.Options) (*DeadAirResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.CurrentFile == "" {
		return nil, ErrNoWorkingFile
	}

	job := m.startJob(ctx, id, "dead-air")
	result, err := m.remover.RemoveDeadAir(ctx, s.CurrentFile, opts)
	m.finishJob(ctx, job, err)
	if err != nil {
		return nil, err
	}

	s.EditCount++
	m.persistCounters(ctx, s)

	out := &DeadAirResult{Result: result, EditCount: s.EditCount}
	if stat, err := os.Stat(s.CurrentFile); err == nil {
		out.Size = stat.Size()
	}
	return out, nil
}

// ProcessCommand runs a legacy templated encoder command against the working
// file and replaces it with the output.
func (m *Manager) ProcessCommand(ctx context.Context, id, command string) (*ProcessResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.CurrentFile == "" {
		return nil, ErrNoWorkingFile
	}

	args, outputPath, err := BuildProcessArgs(command, s.CurrentFile, s.Dir)
	if err != nil {
		return nil, err
	}
	return m.runEdit(ctx, s, "process", args, outputPath)
}

// ApplyEdit runs a structured edit against the working file and replaces it
// with the output. This is the primary in-place edit path; ProcessCommand is
// the deprecated shim over the same mechanism.
func (m *Manager) ApplyEdit(ctx context.Context, id string, req EditRequest) (*ProcessResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.CurrentFile == "" {
		return nil, ErrNoWorkingFile
	}

	outputPath := filepath.Join(s.Dir, "output"+filepath.Ext(s.CurrentFile))
	args, err := BuildEditArgs(req, s.CurrentFile, outputPath)
	if err != nil {
		return nil, err
	}
	return m.runEdit(ctx, s, "edit", args, outputPath)
}

func (m *Manager) runEdit(ctx context.Context, s *Session, jobType string, args []string, outputPath string) (*ProcessResult, error) {
	job := m.startJob(ctx, s.ID, jobType)
	err := m.invoker.Run(ctx, args, nil)
	m.finishJob(ctx, job, err)
	if err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	// The output extension may differ from the current one (say, mp4 to
	// gif), so the working file path can change on replace.
	newCurrent := filepath.Join(s.Dir, "current"+filepath.Ext(outputPath))
	if err := os.Rename(outputPath, newCurrent); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("replace working file: %w", err)
	}
	if newCurrent != s.CurrentFile {
		os.Remove(s.CurrentFile)
		s.CurrentFile = newCurrent
	}

	s.EditCount++
	m.persistCounters(ctx, s)

	result := &ProcessResult{
		Duration:  m.prober.ProbeDuration(ctx, s.CurrentFile),
		EditCount: s.EditCount,
	}
	if stat, err := os.Stat(s.CurrentFile); err == nil {
		result.Size = stat.Size()
	}
	return result, nil
}

// CreateGIF renders an animated GIF from a video asset and registers it as a
// new image asset in the session library.
func (m *Manager) CreateGIF(ctx context.Context, id string, req GIFRequest) (*project.Asset, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	src, err := s.Store.Get(req.SourceAssetID)
	if err != nil {
		return nil, err
	}
	if src.Type != project.AssetVideo {
		return nil, fmt.Errorf("%w: source asset %s is not a video", ErrInvalidRequest, req.SourceAssetID)
	}

	tmp := filepath.Join(s.Dir, "gif-"+uuid.NewString()+".gif")
	opts := render.GIFOptions{
		Start:    req.Start,
		Duration: req.Duration,
		FPS:      req.FPS,
		Width:    req.Width,
		Height:   req.Height,
		Effect:   render.GIFEffect(req.Effect),
	}

	job := m.startJob(ctx, id, "gif")
	err = m.renderer.CreateGIF(ctx, src.Path, tmp, opts)
	m.finishJob(ctx, job, err)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}

	name := strings.TrimSuffix(src.Filename, filepath.Ext(src.Filename)) + ".gif"
	asset, err := s.Store.IngestFile(ctx, tmp, name, project.AssetImage)
	if err != nil {
		os.Remove(tmp)
		return nil, err
	}
	m.persistAsset(ctx, s.ID, asset)
	return asset, nil
}

// TranscribeAndExtract transcribes the working file's audio, extracts
// keywords, and fetches one GIF per keyword into the session library.
// Per-keyword provider failures are skipped; the result reports successes
// only.
func (m *Manager) TranscribeAndExtract(ctx context.Context, id string) (*ExtractResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	if s.CurrentFile == "" {
		return nil, ErrNoWorkingFile
	}

	job := m.startJob(ctx, id, "transcribe")

	audioPath := filepath.Join(s.Dir, "transcribe-audio.mp3")
	extractArgs := []string{
		"-y",
		"-i", s.CurrentFile,
		"-vn",
		"-acodec", "libmp3lame", "-q:a", "4",
		audioPath,
	}
	if err := m.invoker.Run(ctx, extractArgs, nil); err != nil {
		m.finishJob(ctx, job, err)
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	defer os.Remove(audioPath)

	transcript, err := m.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		m.finishJob(ctx, job, err)
		return nil, err
	}

	result := &ExtractResult{
		Transcript: transcript.Text,
		Keywords:   transcribe.ExtractKeywords(transcript, transcribe.DefaultMaxKeywords),
	}

	for _, kw := range result.Keywords {
		gif, err := m.gifs.Search(ctx, kw.Keyword)
		if err != nil {
			m.logger.Warn("gif search failed, skipping keyword", "keyword", kw.Keyword, "error", err)
			continue
		}

		dst := filepath.Join(s.Dir, "kw-"+uuid.NewString()+".gif")
		if err := m.gifs.Download(ctx, gif.URL, dst); err != nil {
			m.logger.Warn("gif download failed, skipping keyword", "keyword", kw.Keyword, "error", err)
			continue
		}

		asset, err := s.Store.IngestFile(ctx, dst, kw.Keyword+".gif", project.AssetImage)
		if err != nil {
			m.logger.Warn("gif ingest failed, skipping keyword", "keyword", kw.Keyword, "error", err)
			os.Remove(dst)
			continue
		}
		m.persistAsset(ctx, s.ID, asset)
		result.GIFAssets = append(result.GIFAssets, asset)
	}

	m.finishJob(ctx, job, nil)
	return result, nil
}

// UploadAsset ingests an uploaded file into the session library.
func (m *Manager) UploadAsset(ctx context.Context, id string, r io.Reader, filename string, declared project.AssetType) (*project.Asset, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	asset, err := s.Store.Ingest(ctx, r, filename, declared)
	if err != nil {
		return nil, err
	}
	m.persistAsset(ctx, s.ID, asset)
	return asset, nil
}

// DeleteAsset removes an asset and cascades into the timeline: every clip
// referencing it is removed as well.
func (m *Manager) DeleteAsset(ctx context.Context, id, assetID string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()

	if _, err := s.Store.Delete(assetID); err != nil {
		return err
	}
	removed := s.Project.RemoveClipsForAsset(assetID)
	if len(removed) > 0 {
		if err := s.SaveProject(); err != nil {
			return err
		}
	}
	if err := m.repo.DeleteAsset(ctx, assetID); err != nil {
		m.logger.Warn("asset registry delete failed", "asset_id", assetID, "error", err)
	}
	return nil
}

// GetAsset looks up an asset in the session library.
func (m *Manager) GetAsset(id, assetID string) (*project.Asset, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()
	return s.Store.Get(assetID)
}

// ListAssets returns the session library in insertion order.
func (m *Manager) ListAssets(id string) ([]*project.Asset, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()
	return s.Store.List(), nil
}

// GetProject returns a snapshot of the timeline safe to marshal outside the
// session lock.
func (m *Manager) GetProject(id string) (*project.Project, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()

	snapshot := &project.Project{
		Tracks:   append([]project.Track(nil), s.Project.Tracks...),
		Clips:    append([]project.Clip(nil), s.Project.Clips...),
		Settings: s.Project.Settings,
	}
	return snapshot, nil
}

// UpdateProject replaces the timeline wholesale and persists it. The returned
// snapshot is the stored structure after normalization, so callers see any
// defaults that were filled in for them.
func (m *Manager) UpdateProject(ctx context.Context, id string, p *project.Project) (*project.Project, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	if len(p.Tracks) == 0 {
		p.Tracks = project.DefaultTracks()
	}
	if p.Clips == nil {
		p.Clips = []project.Clip{}
	}
	if p.Settings.Width <= 0 || p.Settings.Height <= 0 || p.Settings.FPS <= 0 {
		p.Settings = project.DefaultSettings()
	}

	s.Lock()
	defer s.Unlock()

	s.Project = p
	if err := s.SaveProject(); err != nil {
		return nil, err
	}

	snapshot := &project.Project{
		Tracks:   append([]project.Track(nil), p.Tracks...),
		Clips:    append([]project.Clip(nil), p.Clips...),
		Settings: p.Settings,
	}
	return snapshot, nil
}

// Jobs lists recent operation history for a session.
func (m *Manager) Jobs(ctx context.Context, id string, limit int) ([]*Job, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	return m.repo.ListJobs(ctx, id, limit)
}

func (m *Manager) startJob(ctx context.Context, sessionID, jobType string) *Job {
	now := time.Now()
	j := &Job{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      jobType,
		Status:    JobRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.CreateJob(ctx, j); err != nil {
		m.logger.Warn("job record creation failed", "job_type", jobType, "error", err)
	}
	return j
}

func (m *Manager) finishJob(ctx context.Context, j *Job, opErr error) {
	status := JobCompleted
	msg := ""
	if opErr != nil {
		status = JobFailed
		msg = opErr.Error()
	}
	if err := m.repo.UpdateJobStatus(ctx, j.ID, status, msg); err != nil {
		m.logger.Warn("job record update failed", "job_id", j.ID, "error", err)
	}
	if opErr == nil {
		if err := m.repo.UpdateJobProgress(ctx, j.ID, 100); err != nil {
			m.logger.Warn("job progress update failed", "job_id", j.ID, "error", err)
		}
	}
}

func (m *Manager) persistCounters(ctx context.Context, s *Session) {
	if err := m.repo.UpdateSessionEditCount(ctx, s.ID, s.EditCount); err != nil {
		m.logger.Warn("edit count update failed", "session_id", s.ID, "error", err)
	}
	if err := m.repo.UpdateSessionCurrent(ctx, s.ID, s.CurrentFile, s.OriginalName); err != nil {
		m.logger.Warn("working file update failed", "session_id", s.ID, "error", err)
	}
}

func (m *Manager) persistAsset(ctx context.Context, sessionID string, asset *project.Asset) {
	if err := m.repo.SaveAsset(ctx, sessionID, asset); err != nil {
		m.logger.Warn("asset registry save failed", "asset_id", asset.ID, "error", err)
	}
}
