package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/giphy"
	"github.com/clipforge/clipforge-server/internal/logging"
	"github.com/clipforge/clipforge-server/internal/project"
	"github.com/clipforge/clipforge-server/internal/render"
	"github.com/clipforge/clipforge-server/internal/silence"
	"github.com/clipforge/clipforge-server/internal/transcribe"
)

var (
	// ErrSessionNotFound covers unknown and expired session ids alike.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoWorkingFile is returned by operations on the legacy single-file
	// flow when the session was created without an upload.
	ErrNoWorkingFile = errors.New("session has no working media file")
)

// Prober reports tolerant media metadata.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) float64
	ProbeMediaInfo(ctx context.Context, path string) ffmpeg.MediaInfo
}

// ManagerConfig carries the manager's collaborators from the composition root.
type ManagerConfig struct {
	Root          string
	TTL           time.Duration
	SweepInterval time.Duration
	Repository    Repository
	Invoker       ffmpeg.Invoker
	Prober        Prober
	GIFClient     giphy.Client
	Transcriber   transcribe.Client
	Logger        *slog.Logger
}

// Manager is the session registry. It is the only owner of session lifetime;
// handlers reach sessions exclusively through it.
type Manager struct {
	root          string
	ttl           time.Duration
	sweepInterval time.Duration
	repo          Repository
	invoker       ffmpeg.Invoker
	prober        Prober
	renderer      *render.Renderer
	remover       *silence.Remover
	gifs          giphy.Client
	transcriber   transcribe.Client
	logger        *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		root:          cfg.Root,
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		repo:          cfg.Repository,
		invoker:       cfg.Invoker,
		prober:        cfg.Prober,
		renderer:      render.NewRenderer(cfg.Invoker, logging.WithComponent(logger, "render")),
		remover:       silence.NewRemover(cfg.Invoker, cfg.Prober, logging.WithComponent(logger, "silence")),
		gifs:          cfg.GIFClient,
		transcriber:   cfg.Transcriber,
		logger:        logger,
	}
}

// Create allocates a fresh session with its directory subtree and default
// timeline.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, id)

	s := &Session{
		ID:        id,
		Dir:       dir,
		CreatedAt: time.Now(),
		Project:   project.NewProject(),
	}

	for _, sub := range []string{s.AssetsDir(), s.RendersDir()} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	s.Store = project.NewStore(s.AssetsDir(), m.prober, m.invoker, logging.WithSessionID(m.logger, id))

	if err := s.SaveProject(); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if err := m.repo.CreateSession(ctx, &Record{
		ID:        s.ID,
		Dir:       s.Dir,
		CreatedAt: s.CreatedAt,
	}); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("register session: %w", err)
	}

	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*Session)
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id)
	return s, nil
}

// CreateFromUpload creates a session and installs the uploaded file as its
// current working media, the legacy single-asset flow.
func (m *Manager) CreateFromUpload(ctx context.Context, r io.Reader, filename string) (*Session, error) {
	s, err := m.Create(ctx)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	current := filepath.Join(s.Dir, "current"+ext)

	if err := project.WriteFileAtomic(current, r); err != nil {
		m.Destroy(s.ID)
		return nil, fmt.Errorf("write working file: %w", err)
	}

	s.CurrentFile = current
	s.OriginalName = filename
	if err := m.repo.UpdateSessionCurrent(ctx, s.ID, current, filename); err != nil {
		m.logger.Warn("failed to record working file", "session_id", s.ID, "error", err)
	}
	return s, nil
}

// Get returns the session or ErrSessionNotFound, including after expiry.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Destroy removes the session's directory subtree and forgets it. Idempotent.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	if err := os.RemoveAll(s.Dir); err != nil {
		m.logger.Warn("session directory removal failed", "session_id", id, "error", err)
	}
	if err := m.repo.DeleteSession(context.Background(), id); err != nil {
		m.logger.Warn("session registry delete failed", "session_id", id, "error", err)
	}

	m.logger.Info("session destroyed", "session_id", id)
	return nil
}

// StartSweeper destroys expired sessions on a fixed interval until ctx is
// cancelled. Expiry is keyed off creation time, not last access, so a
// long-lived actively edited session is still evicted at the TTL.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(time.Now())
			}
		}
	}()
}

func (m *Manager) sweep(now time.Time) {
	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if now.Sub(s.CreatedAt) > m.ttl {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.logger.Info("session expired", "session_id", id)
		m.Destroy(id)
	}
}

// Restore re-attaches sessions found in the registry after a restart.
// Registry rows whose directory is gone are purged; directories load their
// project descriptor and asset records.
func (m *Manager) Restore(ctx context.Context) error {
	records, err := m.repo.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*Session)
	}
	m.mu.Unlock()

	for _, rec := range records {
		if _, err := os.Stat(rec.Dir); err != nil {
			m.logger.Warn("purging session without directory", "session_id", rec.ID)
			if err := m.repo.DeleteSession(ctx, rec.ID); err != nil {
				m.logger.Warn("purge failed", "session_id", rec.ID, "error", err)
			}
			continue
		}

		s := &Session{
			ID:           rec.ID,
			Dir:          rec.Dir,
			CreatedAt:    rec.CreatedAt,
			EditCount:    rec.EditCount,
			CurrentFile:  rec.CurrentFile,
			OriginalName: rec.OriginalName,
		}

		p, err := project.Load(s.ProjectPath())
		if err != nil {
			m.logger.Warn("project descriptor unreadable, starting fresh", "session_id", rec.ID, "error", err)
			p = project.NewProject()
		}
		s.Project = p

		s.Store = project.NewStore(s.AssetsDir(), m.prober, m.invoker, logging.WithSessionID(m.logger, rec.ID))
		assets, err := m.repo.ListAssets(ctx, rec.ID)
		if err != nil {
			m.logger.Warn("asset records unreadable", "session_id", rec.ID, "error", err)
		}
		s.Store.Restore(assets)

		m.mu.Lock()
		m.sessions[rec.ID] = s
		m.mu.Unlock()
		m.logger.Info("session restored", "session_id", rec.ID, "assets", len(assets))
	}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
