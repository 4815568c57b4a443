// Package media lists and extracts the subtitle streams of a container.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/tools"
)

// Kind is the subtitle format a stream extracts to.
type Kind string

const (
	KindPGS         Kind = "pgs"
	KindVobSub      Kind = "vobsub"
	KindSRT         Kind = "srt"
	KindUnsupported Kind = "unsupported"
)

func kindForCodec(codec string) Kind {
	switch codec {
	case "hdmv_pgs_subtitle":
		return KindPGS
	case "dvd_subtitle":
		return KindVobSub
	case "subrip":
		return KindSRT
	default:
		return KindUnsupported
	}
}

// Track is one subtitle stream of a container.
type Track struct {
	// ID numbers the subtitle streams from 0 and names the output files
	ID int `json:"id"`
	// StreamIndex is the absolute stream index in the container
	StreamIndex int    `json:"stream_index"`
	Codec       string `json:"codec"`
	Kind        Kind   `json:"kind"`
	// Language is the OCR language code, empty when the stream is untagged
	Language string `json:"language"`
	Title    string `json:"title,omitempty"`
	Forced   bool   `json:"forced,omitempty"`
	Default  bool   `json:"default,omitempty"`
	// Size of the stream in bytes when the container reports it
	Size int64 `json:"size,omitempty"`
}

// HumanSize formats Size, or "-" when unknown.
func (t Track) HumanSize() string {
	if t.Size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(t.Size))
}

// Inventory is the probed subtitle layout of a container.
type Inventory struct {
	Path   string
	Size   int64
	Tracks []Track
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Size string `json:"size"`
	} `json:"format"`
}

type probeStream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Tags        map[string]string `json:"tags"`
	Disposition map[string]int    `json:"disposition"`
}

// Probe runs ffprobe on path and returns its subtitle streams.
func Probe(ctx context.Context, path string) (*Inventory, error) {
	ffprobe, err := tools.FFprobe()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-select_streams", "s",
		"-of", "json",
		"--", path,
	)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	inv, err := parseProbe(output)
	if err != nil {
		return nil, err
	}
	inv.Path = path
	return inv, nil
}

func parseProbe(data []byte) (*Inventory, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	inv := &Inventory{}
	inv.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	id := 0
	for _, s := range out.Streams {
		if s.CodecType != "" && s.CodecType != "subtitle" {
			continue
		}
		inv.Tracks = append(inv.Tracks, Track{
			ID:          id,
			StreamIndex: s.Index,
			Codec:       s.CodecName,
			Kind:        kindForCodec(s.CodecName),
			Language:    language.Normalize(tag(s.Tags, "language")),
			Title:       tag(s.Tags, "title"),
			Forced:      s.Disposition["forced"] == 1,
			Default:     s.Disposition["default"] == 1,
			Size:        streamSize(s.Tags),
		})
		id++
	}
	return inv, nil
}

// tag lookup ignoring case, ffprobe reports Matroska tags upper-cased
func tag(tags map[string]string, key string) string {
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Matroska muxers store per-stream statistics as NUMBER_OF_BYTES tags
func streamSize(tags map[string]string) int64 {
	for k, v := range tags {
		if strings.HasPrefix(strings.ToUpper(k), "NUMBER_OF_BYTES") {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}
