package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/project"
)

type fakeInvoker struct {
	mu    sync.Mutex
	calls [][]string
	fail  bool
}

func (f *fakeInvoker) Run(ctx context.Context, args []string, onLine ffmpeg.LineFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.fail {
		return &ffmpeg.ToolError{Err: errors.New("exit status 1"), Tail: "boom"}
	}
	last := args[len(args)-1]
	if last == "-" {
		// Analysis pass, no output file. No diagnostic lines means no
		// silence detected.
		return nil
	}
	return os.WriteFile(last, []byte("media"), 0644)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProber struct {
	duration float64
}

func (f *fakeProber) ProbeDuration(ctx context.Context, path string) float64 {
	return f.duration
}

func (f *fakeProber) ProbeMediaInfo(ctx context.Context, path string) ffmpeg.MediaInfo {
	return ffmpeg.MediaInfo{Width: 1920, Height: 1080, Duration: f.duration}
}

type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]*Record
	assets   map[string][]project.Asset
	jobs     []*Job
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[string]*Record),
		assets:   make(map[string][]project.Asset),
	}
}

func (r *fakeRepo) CreateSession(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.sessions[rec.ID] = &cp
	return nil
}

func (r *fakeRepo) GetSession(ctx context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeRepo) ListSessions(ctx context.Context) ([]*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Record
	for _, rec := range r.sessions {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeRepo) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.assets, id)
	return nil
}

func (r *fakeRepo) UpdateSessionCurrent(ctx context.Context, id, currentFile, originalName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[id]; ok {
		rec.CurrentFile = currentFile
		rec.OriginalName = originalName
	}
	return nil
}

func (r *fakeRepo) UpdateSessionEditCount(ctx context.Context, id string, editCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.sessions[id]; ok {
		rec.EditCount = editCount
	}
	return nil
}

func (r *fakeRepo) SaveAsset(ctx context.Context, sessionID string, a *project.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[sessionID] = append(r.assets[sessionID], *a)
	return nil
}

func (r *fakeRepo) DeleteAsset(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, assets := range r.assets {
		for i, a := range assets {
			if a.ID == id {
				r.assets[sid] = append(assets[:i], assets[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (r *fakeRepo) ListAssets(ctx context.Context, sessionID string) ([]project.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]project.Asset(nil), r.assets[sessionID]...), nil
}

func (r *fakeRepo) CreateJob(ctx context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs = append(r.jobs, &cp)
	return nil
}

func (r *fakeRepo) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			j.Status = status
			j.Error = errorMsg
		}
	}
	return nil
}

func (r *fakeRepo) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.ID == id {
			j.Progress = progress
		}
	}
	return nil
}

func (r *fakeRepo) ListJobs(ctx context.Context, sessionID string, limit int) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Job
	for _, j := range r.jobs {
		if j.SessionID == sessionID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) jobsByType(jobType string) []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Job
	for _, j := range r.jobs {
		if j.Type == jobType {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *fakeRepo, *fakeInvoker) {
	t.Helper()
	repo := newFakeRepo()
	inv := &fakeInvoker{}
	m := NewManager(ManagerConfig{
		Root:          t.TempDir(),
		TTL:           2 * time.Hour,
		SweepInterval: 10 * time.Minute,
		Repository:    repo,
		Invoker:       inv,
		Prober:        &fakeProber{duration: 10},
		Logger:        testLogger(),
	})
	return m, repo, inv
}

func TestCreate_DirectoryLayoutAndRegistry(t *testing.T) {
	m, repo, _ := newTestManager(t)

	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for _, dir := range []string{s.AssetsDir(), s.RendersDir()} {
		if stat, err := os.Stat(dir); err != nil || !stat.IsDir() {
			t.Errorf("missing directory %s", dir)
		}
	}
	if _, err := os.Stat(s.ProjectPath()); err != nil {
		t.Errorf("project descriptor not written: %v", err)
	}

	rec, _ := repo.GetSession(context.Background(), s.ID)
	if rec == nil {
		t.Fatal("session not registered")
	}
	if rec.Dir != s.Dir {
		t.Errorf("registered dir = %s, want %s", rec.Dir, s.Dir)
	}
}

func TestGet_Unknown(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	m, repo, _ := newTestManager(t)

	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Destroy(s.ID); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Error("session directory not removed")
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after destroy = %v, want ErrSessionNotFound", err)
	}
	if rec, _ := repo.GetSession(context.Background(), s.ID); rec != nil {
		t.Error("registry row not removed")
	}

	if err := m.Destroy(s.ID); err != nil {
		t.Fatalf("second Destroy() error = %v", err)
	}
}

func TestSweep_DestroysOnlyExpired(t *testing.T) {
	m, _, _ := newTestManager(t)

	old, err := m.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := m.Create(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	old.CreatedAt = time.Now().Add(-3 * time.Hour)
	m.sweep(time.Now())

	if _, err := m.Get(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("expired session survived the sweep")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("fresh session destroyed by sweep: %v", err)
	}
}

func TestCreateFromUpload_InstallsWorkingFile(t *testing.T) {
	m, _, _ := newTestManager(t)

	s, err := m.CreateFromUpload(context.Background(), strings.NewReader("video-bytes"), "clip.mp4")
	if err != nil {
		t.Fatalf("CreateFromUpload() error = %v", err)
	}

	if s.CurrentFile != filepath.Join(s.Dir, "current.mp4") {
		t.Errorf("current file = %s", s.CurrentFile)
	}
	data, err := os.ReadFile(s.CurrentFile)
	if err != nil {
		t.Fatalf("working file missing: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Errorf("working file content = %q", data)
	}

	info, err := m.Info(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Name != "clip.mp4" || info.Size != int64(len("video-bytes")) || info.Duration != 10 {
		t.Errorf("info = %+v", info)
	}

	// The working file is written atomically; no upload temp may survive.
	leftovers, err := filepath.Glob(filepath.Join(s.Dir, ".upload-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("upload temp files left behind: %v", leftovers)
	}
}

func TestCreateFromUpload_FailedWriteDestroysSession(t *testing.T) {
	m, repo, _ := newTestManager(t)

	_, err := m.CreateFromUpload(context.Background(), failingReader{}, "clip.mp4")
	if err == nil {
		t.Fatal("CreateFromUpload() error = nil, want write failure")
	}
	if m.Count() != 0 {
		t.Errorf("live sessions = %d, want 0 after rollback", m.Count())
	}
	records, _ := repo.ListSessions(context.Background())
	if len(records) != 0 {
		t.Errorf("registry rows = %d, want 0 after rollback", len(records))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream interrupted")
}

func TestRestore_ReattachesSessionsAndPurgesOrphans(t *testing.T) {
	repo := newFakeRepo()
	inv := &fakeInvoker{}
	root := t.TempDir()
	cfg := ManagerConfig{
		Root:          root,
		TTL:           2 * time.Hour,
		SweepInterval: 10 * time.Minute,
		Repository:    repo,
		Invoker:       inv,
		Prober:        &fakeProber{duration: 10},
		Logger:        testLogger(),
	}

	m1 := NewManager(cfg)
	s, err := m1.CreateFromUpload(context.Background(), strings.NewReader("v"), "movie.mp4")
	if err != nil {
		t.Fatal(err)
	}
	asset, err := m1.UploadAsset(context.Background(), s.ID, strings.NewReader("img"), "logo.png", "")
	if err != nil {
		t.Fatal(err)
	}

	s.Lock()
	if _, err := s.Project.AddClip(asset, "video-1", 0, 0, 0, 5); err != nil {
		s.Unlock()
		t.Fatal(err)
	}
	saveErr := s.SaveProject()
	s.Unlock()
	if saveErr != nil {
		t.Fatal(saveErr)
	}

	// A registry row whose directory is gone must be purged on restore.
	repo.CreateSession(context.Background(), &Record{
		ID:        "orphan",
		Dir:       filepath.Join(root, "orphan"),
		CreatedAt: time.Now(),
	})

	m2 := NewManager(cfg)
	if err := m2.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	restored, err := m2.Get(s.ID)
	if err != nil {
		t.Fatalf("restored session missing: %v", err)
	}
	if restored.OriginalName != "movie.mp4" || restored.CurrentFile != s.CurrentFile {
		t.Errorf("restored working file state = %+v", restored)
	}
	if len(restored.Project.Clips) != 1 {
		t.Errorf("restored clips = %d, want 1", len(restored.Project.Clips))
	}
	if _, err := restored.Store.Get(asset.ID); err != nil {
		t.Errorf("restored asset missing: %v", err)
	}

	if rec, _ := repo.GetSession(context.Background(), "orphan"); rec != nil {
		t.Error("orphan registry row not purged")
	}
	if _, err := m2.Get("orphan"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("orphan session should not be attached")
	}
}
