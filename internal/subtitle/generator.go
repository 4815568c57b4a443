package subtitle

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// TextGenerator turns OCR segments into subtitle entries. It never drops
// a segment: a frame OCR could not read still occupies its slot with
// empty text so the timing of the track stays intact.
type TextGenerator struct {
	Language string
}

func NewTextGenerator(language string) *TextGenerator {
	return &TextGenerator{Language: language}
}

func (g *TextGenerator) Generate(segments []Segment) (*Subtitle, error) {
	entries := make([]Entry, 0, len(segments))
	for i, seg := range segments {
		if seg.EndTime < seg.StartTime {
			return nil, fmt.Errorf(
				"segment %d ends before it starts (%v < %v)",
				i,
				seg.EndTime,
				seg.StartTime,
			)
		}
		entries = append(entries, Entry{
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
			Text:      NormalizeText(seg.Text),
		})
	}

	// decoders emit in stream order, which is almost always time order
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.StartTime, b.StartTime)
	})
	for i := range entries {
		entries[i].Index = i
	}

	return &Subtitle{
		Entries:  entries,
		Language: g.Language,
		Format:   string(FormatSRT),
	}, nil
}

// NormalizeText cleans raw engine output: form feeds become line breaks,
// lines are trimmed and blank lines are removed.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")

	var lines []string
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
