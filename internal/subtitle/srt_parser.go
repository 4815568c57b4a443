package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type SRTFile struct {
	entries []Entry
}

var srtTimestampRegex = regexp.MustCompile(
	`(\d{2,}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2,}):(\d{2}):(\d{2}),(\d{3})`,
)

func parseSRTFile(path string) (*SRTFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SRT file: %w", err)
	}
	defer file.Close()

	entries, err := ParseSRT(file)
	if err != nil {
		return nil, err
	}
	return &SRTFile{entries: entries}, nil
}

// ParseSRT reads SubRip cues. Cues with a timing line but no text are
// kept. Indices are reassigned 0-based in file order.
func ParseSRT(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)

	var current *Entry
	var timed bool
	var textLines []string
	lineNum := 0

	flush := func() {
		if current != nil && timed {
			current.Text = strings.Join(textLines, "\n")
			current.Index = len(entries)
			entries = append(entries, *current)
		}
		current = nil
		timed = false
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			if _, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				current = &Entry{}
				continue
			}
		}

		if current != nil && !timed {
			matches := srtTimestampRegex.FindStringSubmatch(line)
			if len(matches) == 9 {
				startTime, err := parseSRTTimestamp(
					matches[1], matches[2], matches[3], matches[4],
				)
				if err != nil {
					return nil, fmt.Errorf(
						"invalid start timestamp at line %d: %w",
						lineNum,
						err,
					)
				}
				endTime, err := parseSRTTimestamp(
					matches[5], matches[6], matches[7], matches[8],
				)
				if err != nil {
					return nil, fmt.Errorf(
						"invalid end timestamp at line %d: %w",
						lineNum,
						err,
					)
				}
				current.StartTime = startTime
				current.EndTime = endTime
				timed = true
				continue
			}
		}

		if current != nil && timed {
			textLines = append(textLines, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT file: %w", err)
	}

	return entries, nil
}

func parseSRTTimestamp(
	hours, minutes, seconds, millis string,
) (time.Duration, error) {
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(minutes)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(seconds)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.Atoi(millis)
	if err != nil {
		return 0, err
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

func (f *SRTFile) Format() Format {
	return FormatSRT
}

func (f *SRTFile) Subtitle() *Subtitle {
	return &Subtitle{
		Entries: f.entries,
		Format:  string(FormatSRT),
	}
}

func (f *SRTFile) SetText(index int, text string) error {
	if index < 0 || index >= len(f.entries) {
		return fmt.Errorf(
			"index %d out of range (0-%d)",
			index,
			len(f.entries)-1,
		)
	}
	f.entries[index].Text = text
	return nil
}

func (f *SRTFile) Write(path string) error {
	writer, err := NewWriter(FormatSRT)
	if err != nil {
		return err
	}
	return writer.Write(f.Subtitle(), path)
}
