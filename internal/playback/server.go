package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Server streams session files. Reads may run concurrently with each other;
// writers use rename-into-place so a stream never observes a partial file.
type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeFile streams the file at path, honoring a single byte range.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, path string) error {
	return s.serve(w, r, path, "")
}

// ServeDownload streams the file as an attachment with the given filename.
func (s *Server) ServeDownload(w http.ResponseWriter, r *http.Request, path, filename string) error {
	return s.serve(w, r, path, filename)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, path, downloadName string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat media file: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)
	if downloadName != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}

	rng, err := ParseRange(r.Header.Get("Range"), size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if rng == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return nil
	}

	if s.logger != nil {
		s.logger.Debug("serving byte range", "start", rng.Start, "end", rng.End, "size", size)
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", rng.Length()))
	w.Header().Set("Content-Range", rng.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek media file: %w", err)
	}
	io.CopyN(w, f, rng.Length())
	return nil
}
