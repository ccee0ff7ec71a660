// Package session owns the lifecycle and isolation of editing sessions: the
// per-session directory subtree, the in-memory registry, idle expiry, and the
// serialization of mutating operations.
package session

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/clipforge/clipforge-server/internal/project"
)

// Session is the unit of isolation. It owns a private directory subtree
// (assets/, renders/), an asset store, and the timeline. Mutating operations
// serialize on mu; the replace-current-file pattern is not safe to run
// concurrently within one session.
type Session struct {
	ID        string
	Dir       string
	CreatedAt time.Time

	mu sync.Mutex

	// Guarded by mu.
	EditCount    int
	CurrentFile  string
	OriginalName string
	Store        *project.Store
	Project      *project.Project
}

// Lock serializes mutating operations on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session for the next mutating operation.
func (s *Session) Unlock() { s.mu.Unlock() }

// AssetsDir is where ingested media and thumbnails live.
func (s *Session) AssetsDir() string {
	return filepath.Join(s.Dir, "assets")
}

// RendersDir is where rendered outputs live.
func (s *Session) RendersDir() string {
	return filepath.Join(s.Dir, "renders")
}

// ProjectPath is the timeline descriptor location, part of the session's
// durable on-disk contract.
func (s *Session) ProjectPath() string {
	return filepath.Join(s.Dir, project.DescriptorFilename)
}

// SaveProject persists the timeline descriptor. Callers hold the lock.
func (s *Session) SaveProject() error {
	return s.Project.Save(s.ProjectPath())
}
