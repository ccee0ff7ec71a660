package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/clipforge/clipforge-server/internal/ffmpeg"
)

type fakeProber struct {
	info ffmpeg.MediaInfo
}

func (f *fakeProber) ProbeMediaInfo(ctx context.Context, path string) ffmpeg.MediaInfo {
	return f.info
}

// fakeInvoker creates the output file (last argument) unless told to fail.
type fakeInvoker struct {
	fail  bool
	calls int
}

func (f *fakeInvoker) Run(ctx context.Context, args []string, onLine ffmpeg.LineFunc) error {
	f.calls++
	if f.fail {
		return &ffmpeg.ToolError{Err: errors.New("exit status 1"), Tail: "thumb fail"}
	}
	return os.WriteFile(args[len(args)-1], []byte("jpeg"), 0644)
}

func newTestStore(t *testing.T, info ffmpeg.MediaInfo, inv *fakeInvoker) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(t.TempDir(), &fakeProber{info: info}, inv, logger)
}

func TestIngest_Video(t *testing.T) {
	inv := &fakeInvoker{}
	store := newTestStore(t, ffmpeg.MediaInfo{Width: 1920, Height: 1080, Duration: 42.5}, inv)

	asset, err := store.Ingest(context.Background(), strings.NewReader("videobytes"), "holiday.mp4", "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if asset.Type != AssetVideo {
		t.Errorf("Type = %s, want video", asset.Type)
	}
	if asset.Duration != 42.5 || asset.Width != 1920 || asset.Height != 1080 {
		t.Errorf("metadata = %+v, want probed values", asset)
	}
	if asset.Size != int64(len("videobytes")) {
		t.Errorf("Size = %d, want %d", asset.Size, len("videobytes"))
	}
	if asset.ThumbnailPath == "" {
		t.Error("ThumbnailPath empty, want generated thumbnail")
	}
	if _, err := os.Stat(asset.Path); err != nil {
		t.Errorf("backing file missing: %v", err)
	}
}

func TestIngest_ImageGetsNominalDuration(t *testing.T) {
	store := newTestStore(t, ffmpeg.MediaInfo{Width: 800, Height: 600}, &fakeInvoker{})

	asset, err := store.Ingest(context.Background(), strings.NewReader("png"), "frame.png", "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if asset.Type != AssetImage {
		t.Errorf("Type = %s, want image", asset.Type)
	}
	if asset.Duration != ImageNominalDuration {
		t.Errorf("Duration = %v, want %v", asset.Duration, ImageNominalDuration)
	}
}

func TestIngest_AudioSkipsThumbnail(t *testing.T) {
	inv := &fakeInvoker{}
	store := newTestStore(t, ffmpeg.MediaInfo{Duration: 200}, inv)

	asset, err := store.Ingest(context.Background(), strings.NewReader("mp3"), "talk.mp3", "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if asset.Type != AssetAudio {
		t.Errorf("Type = %s, want audio", asset.Type)
	}
	if asset.ThumbnailPath != "" {
		t.Error("audio assets must not get thumbnails")
	}
	if inv.calls != 0 {
		t.Errorf("invoker calls = %d, want 0", inv.calls)
	}
}

func TestIngest_DeclaredTypeOverridesExtension(t *testing.T) {
	store := newTestStore(t, ffmpeg.MediaInfo{}, &fakeInvoker{})

	asset, err := store.Ingest(context.Background(), strings.NewReader("x"), "capture.mp4", AssetAudio)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if asset.Type != AssetAudio {
		t.Errorf("Type = %s, want declared audio", asset.Type)
	}
}

func TestIngest_ThumbnailFailureTolerated(t *testing.T) {
	store := newTestStore(t, ffmpeg.MediaInfo{Duration: 10}, &fakeInvoker{fail: true})

	asset, err := store.Ingest(context.Background(), strings.NewReader("bytes"), "clip.mov", "")
	if err != nil {
		t.Fatalf("Ingest() error = %v, thumbnail failure must not fail ingestion", err)
	}
	if asset.ThumbnailPath != "" {
		t.Errorf("ThumbnailPath = %q, want empty after failure", asset.ThumbnailPath)
	}
}

func TestDelete_RemovesBackingFiles(t *testing.T) {
	store := newTestStore(t, ffmpeg.MediaInfo{Duration: 10}, &fakeInvoker{})

	asset, err := store.Ingest(context.Background(), strings.NewReader("bytes"), "clip.mp4", "")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if _, err := store.Delete(asset.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := os.Stat(asset.Path); !os.IsNotExist(err) {
		t.Error("asset file should be removed")
	}
	if _, err := os.Stat(asset.ThumbnailPath); !os.IsNotExist(err) {
		t.Error("thumbnail should be removed")
	}
	if _, err := store.Get(asset.ID); err != ErrAssetNotFound {
		t.Errorf("Get() error = %v, want ErrAssetNotFound", err)
	}
	if _, err := store.Delete(asset.ID); err != ErrAssetNotFound {
		t.Errorf("second Delete() error = %v, want ErrAssetNotFound", err)
	}
}

func TestList_InsertionOrder(t *testing.T) {
	store := newTestStore(t, ffmpeg.MediaInfo{}, &fakeInvoker{})

	first, _ := store.Ingest(context.Background(), strings.NewReader("a"), "a.mp4", "")
	second, _ := store.Ingest(context.Background(), strings.NewReader("b"), "b.mp4", "")

	list := store.List()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("List() order wrong: %v", list)
	}
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		filename string
		declared AssetType
		want     AssetType
	}{
		{"a.mp4", "", AssetVideo},
		{"a.MOV", "", AssetVideo},
		{"a.png", "", AssetImage},
		{"a.GIF", "", AssetImage},
		{"a.mp3", "", AssetAudio},
		{"a.flac", "", AssetAudio},
		{"noext", "", AssetVideo},
		{"a.png", AssetVideo, AssetVideo},
		{"a.mp4", "bogus", AssetVideo},
	}
	for _, tt := range tests {
		if got := ClassifyType(tt.filename, tt.declared); got != tt.want {
			t.Errorf("ClassifyType(%q, %q) = %s, want %s", tt.filename, tt.declared, got, tt.want)
		}
	}
}
