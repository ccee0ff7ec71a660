package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DescriptorFilename is the project descriptor inside a session directory.
// Its layout ({tracks, clips, settings}) is a durable contract other tooling
// depends on.
const DescriptorFilename = "project.json"

// Save serializes the full project structure to path. The write goes to a
// temp file first and renames into place so readers never observe a partial
// descriptor.
func (p *Project) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".project-*.json")
	if err != nil {
		return fmt.Errorf("create temp descriptor: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close descriptor: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace descriptor: %w", err)
	}
	return nil
}

// Load reconstructs a project from a saved descriptor.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if p.Clips == nil {
		p.Clips = []Clip{}
	}
	if len(p.Tracks) == 0 {
		p.Tracks = DefaultTracks()
	}
	return &p, nil
}
