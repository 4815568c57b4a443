package vobsub

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	idxSizePrefix       = "size: "
	idxOriginPrefix     = "org: "
	idxAlphaPrefix      = "alpha: "
	idxTimeOffsetPrefix = "time offset: "
	idxLangIdxPrefix    = "langidx: "
	idxPalettePrefix    = "palette: "
	idxIDPrefix         = "id: "
	idxDelayPrefix      = "delay: "
	idxTimestampPrefix  = "timestamp: "
	idxPaletteLen       = 16
)

// one "timestamp:" line of the index
type IndexEntry struct {
	Timestamp time.Duration
	FilePos   int64
}

// one "id:" section
type IndexStream struct {
	Language string
	Index    int
	Entries  []IndexEntry
}

// parsed .idx companion file
type Index struct {
	Width, Height int
	OriginX       int
	OriginY       int
	AlphaRatio    float64
	TimeOffset    time.Duration
	LangIdx       int
	// 16 colors as 6-digit hex strings, e.g. "ffffff"
	Palette []string
	Streams []IndexStream
}

// stream selected by langidx, or the first one
func (idx *Index) Stream() *IndexStream {
	for i := range idx.Streams {
		if idx.Streams[i].Index == idx.LangIdx {
			return &idx.Streams[i]
		}
	}
	if len(idx.Streams) > 0 {
		return &idx.Streams[0]
	}
	return nil
}

func ParseIndex(r io.Reader) (*Index, error) {
	idx := &Index{AlphaRatio: 1}
	var current *IndexStream
	var delay time.Duration

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var err error
		switch {
		case strings.HasPrefix(line, idxSizePrefix):
			idx.Width, idx.Height, err = parsePair(line[len(idxSizePrefix):], "x")
		case strings.HasPrefix(line, idxOriginPrefix):
			idx.OriginX, idx.OriginY, err = parsePair(line[len(idxOriginPrefix):], ",")
		case strings.HasPrefix(line, idxAlphaPrefix):
			value := strings.TrimSuffix(line[len(idxAlphaPrefix):], "%")
			var pct int
			if pct, err = strconv.Atoi(strings.TrimSpace(value)); err == nil {
				if pct <= 0 || pct > 100 {
					err = fmt.Errorf("alpha %d%% out of range", pct)
				}
				idx.AlphaRatio = float64(pct) / 100
			}
		case strings.HasPrefix(line, idxTimeOffsetPrefix):
			var ms int
			if ms, err = strconv.Atoi(strings.TrimSpace(line[len(idxTimeOffsetPrefix):])); err == nil {
				idx.TimeOffset = time.Duration(ms) * time.Millisecond
			}
		case strings.HasPrefix(line, idxLangIdxPrefix):
			idx.LangIdx, err = strconv.Atoi(strings.TrimSpace(line[len(idxLangIdxPrefix):]))
		case strings.HasPrefix(line, idxPalettePrefix):
			idx.Palette, err = parsePalette(line[len(idxPalettePrefix):])
		case strings.HasPrefix(line, idxIDPrefix):
			var stream IndexStream
			stream, err = parseStreamID(line[len(idxIDPrefix):])
			idx.Streams = append(idx.Streams, stream)
			current = &idx.Streams[len(idx.Streams)-1]
			delay = 0
		case strings.HasPrefix(line, idxDelayPrefix):
			var d time.Duration
			if d, err = parseTimestamp(line[len(idxDelayPrefix):]); err == nil {
				delay += d
			}
		case strings.HasPrefix(line, idxTimestampPrefix):
			if current == nil {
				idx.Streams = append(idx.Streams, IndexStream{})
				current = &idx.Streams[len(idx.Streams)-1]
			}
			var entry IndexEntry
			if entry, err = parseEntry(line[len(idxTimestampPrefix):]); err == nil {
				entry.Timestamp += delay + idx.TimeOffset
				current.Entries = append(current.Entries, entry)
			}
		}
		if err != nil {
			return nil, &FormatError{Offset: -1, Reason: fmt.Sprintf("idx line %d: %v", lineNum, err)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read idx: %w", err)
	}

	if len(idx.Palette) != idxPaletteLen {
		return nil, &FormatError{Offset: -1, Reason: "idx has no palette"}
	}
	return idx, nil
}

func parsePair(value, sep string) (int, int, error) {
	parts := strings.Split(value, sep)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expecting two values in %q", value)
	}
	a, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parsePalette(value string) ([]string, error) {
	fields := strings.Split(value, ",")
	if len(fields) != idxPaletteLen {
		return nil, fmt.Errorf("palette should have %d colors, got %d", idxPaletteLen, len(fields))
	}
	palette := make([]string, len(fields))
	for i, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if _, err := hex.DecodeString(f); err != nil || len(f) != 6 {
			return nil, fmt.Errorf("invalid palette color #%d: %q", i, f)
		}
		palette[i] = f
	}
	return palette, nil
}

// "en, index: 0"
func parseStreamID(value string) (IndexStream, error) {
	lang, rest, found := strings.Cut(value, ",")
	stream := IndexStream{Language: strings.TrimSpace(lang)}
	if !found {
		return stream, nil
	}
	rest = strings.TrimSpace(rest)
	if n, ok := strings.CutPrefix(rest, "index:"); ok {
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return stream, fmt.Errorf("invalid stream index %q", n)
		}
		stream.Index = i
	}
	return stream, nil
}

// "00:00:01:234, filepos: 000000000"
func parseEntry(value string) (IndexEntry, error) {
	ts, rest, found := strings.Cut(value, ",")
	if !found {
		return IndexEntry{}, fmt.Errorf("missing filepos in %q", value)
	}
	d, err := parseTimestamp(ts)
	if err != nil {
		return IndexEntry{}, err
	}
	pos, ok := strings.CutPrefix(strings.TrimSpace(rest), "filepos:")
	if !ok {
		return IndexEntry{}, fmt.Errorf("missing filepos in %q", value)
	}
	fp, err := strconv.ParseInt(strings.TrimSpace(pos), 16, 64)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("invalid filepos %q", pos)
	}
	return IndexEntry{Timestamp: d, FilePos: fp}, nil
}

// HH:MM:SS:mmm, optionally signed
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	sign := time.Duration(1)
	if rest, ok := strings.CutPrefix(value, "-"); ok {
		sign, value = -1, rest
	} else {
		value = strings.TrimPrefix(value, "+")
	}
	parts := strings.Split(value, ":")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	units := []time.Duration{time.Hour, time.Minute, time.Second, time.Millisecond}
	var d time.Duration
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		d += time.Duration(n) * units[i]
	}
	return sign * d, nil
}
