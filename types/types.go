package types

import (
	"strings"
	"sync/atomic"
	"time"
)

// ImageInfo holds one library photo as recorded in the catalogue
type ImageInfo struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CameraModel string    `json:"camera_model"`
	CaptureTime string    `json:"capture_time"`
	Keywords    []string  `json:"keywords"`
	ModifiedAt  time.Time `json:"modified_at"`
	Size        int64     `json:"size"`
}

// PhotoMetadata holds the fields used to look a photo up in the catalogue.
// Zero values mean the field was not present.
type PhotoMetadata struct {
	FileName    string
	Width       int
	Height      int
	CameraModel string
	CaptureTime time.Time
}

// HasIdentity reports whether the fields every lookup needs are present
func (m PhotoMetadata) HasIdentity() bool {
	return m.FileName != "" && m.Width > 0 && m.Height > 0
}

// HasCaptureInfo reports whether camera model and capture time are both known
func (m PhotoMetadata) HasCaptureInfo() bool {
	return m.CameraModel != "" && !m.CaptureTime.IsZero()
}

// MatchCandidate is a catalogue hit paired with the tier that produced it
type MatchCandidate struct {
	Path string
	Tier string
}

// TagSet is a keyword list with case-insensitive membership
type TagSet []string

// Contains reports whether tag is present, ignoring case
func (s TagSet) Contains(tag string) bool {
	for _, t := range s {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// With returns a copy of the set with tag appended
func (s TagSet) With(tag string) TagSet {
	out := make(TagSet, 0, len(s)+1)
	out = append(out, s...)
	return append(out, tag)
}

// RunStatistics holds the counters reported at the end of a tagging run
type RunStatistics struct {
	Scanned       atomic.Int64
	Matched       atomic.Int64
	Tagged        atomic.Int64
	TagsApplied   atomic.Int64
	AlreadyTagged atomic.Int64
	Deleted       atomic.Int64
	Failures      atomic.Int64
}

// StatsSnapshot is a plain copy of RunStatistics
type StatsSnapshot struct {
	Scanned       int64
	Matched       int64
	Tagged        int64
	TagsApplied   int64
	AlreadyTagged int64
	Deleted       int64
	Failures      int64
}

// Snapshot copies the current counter values
func (s *RunStatistics) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Scanned:       s.Scanned.Load(),
		Matched:       s.Matched.Load(),
		Tagged:        s.Tagged.Load(),
		TagsApplied:   s.TagsApplied.Load(),
		AlreadyTagged: s.AlreadyTagged.Load(),
		Deleted:       s.Deleted.Load(),
		Failures:      s.Failures.Load(),
	}
}
