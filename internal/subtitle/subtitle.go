package subtitle

import (
	"time"
)

// Entry is one timed subtitle record. Index is 0-based and contiguous
// within a track; writers renumber on output.
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// Duration of the entry on screen.
func (e Entry) Duration() time.Duration {
	return e.EndTime - e.StartTime
}

// represents complete subtitle track
type Subtitle struct {
	Entries  []Entry
	Language string
	Format   string
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(name string) (Format, bool) {
	switch Format(name) {
	case FormatSRT, FormatVTT, FormatASS:
		return Format(name), true
	}
	return "", false
}

// interface for subtitle generation
type Generator interface {
	Generate(segments []Segment) (*Subtitle, error)
}

// Segment is a recognized frame: raw OCR text with its display window.
type Segment struct {
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
}

// interface for writing subtitles to files
type Writer interface {
	Write(subtitle *Subtitle, path string) error
}
