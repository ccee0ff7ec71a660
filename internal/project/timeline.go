package project

import (
	"github.com/google/uuid"
)

// KeepStart signals MoveClip/ResizeClip to leave the clip's start unchanged.
const KeepStart = -1

// AddClip places an asset on a track. inPoint defaults to 0, outPoint to the
// asset's duration, and duration to outPoint-inPoint unless a positive
// override is supplied (used for fixed-length overlays such as GIFs).
func (p *Project) AddClip(asset *Asset, trackID string, start, duration, inPoint, outPoint float64) (*Clip, error) {
	if p.findTrack(trackID) == nil {
		return nil, ErrTrackNotFound
	}
	if start < 0 {
		start = 0
	}
	if inPoint < 0 {
		inPoint = 0
	}
	if outPoint <= 0 || outPoint > asset.Duration {
		outPoint = asset.Duration
	}
	if duration <= 0 {
		duration = outPoint - inPoint
	}

	clip := Clip{
		ID:       uuid.NewString(),
		AssetID:  asset.ID,
		TrackID:  trackID,
		Start:    start,
		Duration: duration,
		InPoint:  inPoint,
		OutPoint: outPoint,
	}
	p.Clips = append(p.Clips, clip)
	return &p.Clips[len(p.Clips)-1], nil
}

// MoveClip repositions a clip on the global timeline, optionally changing its
// track. newStart is clamped to 0; pass an empty newTrackID to keep the track.
func (p *Project) MoveClip(clipID string, newStart float64, newTrackID string) (*Clip, error) {
	clip := p.FindClip(clipID)
	if clip == nil {
		return nil, ErrClipNotFound
	}
	if newTrackID != "" {
		if p.findTrack(newTrackID) == nil {
			return nil, ErrTrackNotFound
		}
		clip.TrackID = newTrackID
	}
	if newStart < 0 {
		newStart = 0
	}
	clip.Start = newStart
	return clip, nil
}

// ResizeClip updates a clip's trim window and recomputes its duration. Pass
// KeepStart to leave the timeline position unchanged. The model is a thin
// boundary: callers clamp against asset bounds and the minimum-duration floor
// before calling; no re-validation happens here.
func (p *Project) ResizeClip(clipID string, newInPoint, newOutPoint, newStart float64) (*Clip, error) {
	clip := p.FindClip(clipID)
	if clip == nil {
		return nil, ErrClipNotFound
	}
	clip.InPoint = newInPoint
	clip.OutPoint = newOutPoint
	clip.Duration = newOutPoint - newInPoint
	if newStart != KeepStart {
		if newStart < 0 {
			newStart = 0
		}
		clip.Start = newStart
	}
	return clip, nil
}

// SetTransform replaces a clip's transform. A nil transform clears it.
func (p *Project) SetTransform(clipID string, transform *Transform) (*Clip, error) {
	clip := p.FindClip(clipID)
	if clip == nil {
		return nil, ErrClipNotFound
	}
	clip.Transform = transform
	return clip, nil
}

// DeleteClip removes a clip from the timeline.
func (p *Project) DeleteClip(clipID string) error {
	for i := range p.Clips {
		if p.Clips[i].ID == clipID {
			p.Clips = append(p.Clips[:i], p.Clips[i+1:]...)
			return nil
		}
	}
	return ErrClipNotFound
}

// RemoveClipsForAsset removes every clip referencing the asset and returns
// the removed clip ids. Used by the asset-delete cascade.
func (p *Project) RemoveClipsForAsset(assetID string) []string {
	var removed []string
	kept := p.Clips[:0]
	for _, clip := range p.Clips {
		if clip.AssetID == assetID {
			removed = append(removed, clip.ID)
			continue
		}
		kept = append(kept, clip)
	}
	p.Clips = kept
	return removed
}

// FindClip returns the clip with the given id, or nil.
func (p *Project) FindClip(clipID string) *Clip {
	for i := range p.Clips {
		if p.Clips[i].ID == clipID {
			return &p.Clips[i]
		}
	}
	return nil
}

// AddTrack appends a new lane after the existing ones.
func (p *Project) AddTrack(name string, trackType TrackType) *Track {
	order := 0
	for _, t := range p.Tracks {
		if t.Order >= order {
			order = t.Order + 1
		}
	}
	track := Track{ID: uuid.NewString(), Name: name, Type: trackType, Order: order}
	p.Tracks = append(p.Tracks, track)
	return &p.Tracks[len(p.Tracks)-1]
}

// TotalDuration is the end of the last clip on the timeline, or 0 when empty.
func (p *Project) TotalDuration() float64 {
	total := 0.0
	for _, clip := range p.Clips {
		if end := clip.Start + clip.Duration; end > total {
			total = end
		}
	}
	return total
}

func (p *Project) findTrack(trackID string) *Track {
	for i := range p.Tracks {
		if p.Tracks[i].ID == trackID {
			return &p.Tracks[i]
		}
	}
	return nil
}
