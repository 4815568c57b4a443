package vobsub

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mgpai22/subocr/internal/vobsub/vobsubtest"
)

func testEvent(pts time.Duration, stopTicks int) vobsubtest.Event {
	// 4x4 frame, white text pixels on a transparent background
	return vobsubtest.Event{
		PTS:    pts,
		Width:  4,
		Height: 4,
		Pixels: []byte{
			0, 0, 0, 0,
			0, 1, 1, 0,
			0, 1, 1, 0,
			0, 0, 0, 0,
		},
		Colors:    [4]byte{0, 1, 2, 0},
		Alpha:     [4]byte{0, 15, 15, 15},
		StopTicks: stopTicks,
	}
}

func TestParseIndex(t *testing.T) {
	idxText := `# VobSub index file, v7 (do not modify this line!)
size: 720x576
org: 10, 20
alpha: 50%
time offset: 100
palette: 000000, FFFFFF, 808080, 000000, 000000, 000000, 000000, 000000, 000000, 000000, 000000, 000000, 000000, 000000, 000000, 0000ff
langidx: 1
id: en, index: 0
timestamp: 00:00:01:000, filepos: 000000000
id: de, index: 1
timestamp: 00:00:02:500, filepos: 000000800
delay: 00:00:01:000
timestamp: 01:00:00:000, filepos: 000001000
`
	idx, err := ParseIndex(strings.NewReader(idxText))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	if idx.Width != 720 || idx.Height != 576 {
		t.Errorf("size = %dx%d, want 720x576", idx.Width, idx.Height)
	}
	if idx.OriginX != 10 || idx.OriginY != 20 {
		t.Errorf("origin = %d,%d, want 10,20", idx.OriginX, idx.OriginY)
	}
	if idx.AlphaRatio != 0.5 {
		t.Errorf("alpha = %v, want 0.5", idx.AlphaRatio)
	}
	if len(idx.Palette) != 16 || idx.Palette[1] != "ffffff" || idx.Palette[15] != "0000ff" {
		t.Errorf("palette = %v", idx.Palette)
	}

	stream := idx.Stream()
	if stream == nil || stream.Language != "de" {
		t.Fatalf("Stream() = %+v, want de", stream)
	}
	want := []IndexEntry{
		{Timestamp: 2600 * time.Millisecond, FilePos: 0x800},
		{Timestamp: time.Hour + 1100*time.Millisecond, FilePos: 0x1000},
	}
	if len(stream.Entries) != len(want) {
		t.Fatalf("entries = %v, want %v", stream.Entries, want)
	}
	for i := range want {
		if stream.Entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, stream.Entries[i], want[i])
		}
	}
}

func TestParseIndexErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no palette", "size: 720x480\n"},
		{"short palette", "palette: 000000, ffffff\n"},
		{"bad color", "palette: zz0000" + strings.Repeat(", 000000", 15) + "\n"},
		{"bad timestamp", "palette: 000000" + strings.Repeat(", 000000", 15) + "\ntimestamp: 00:01, filepos: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIndex(strings.NewReader(tt.text))
			if !errors.Is(err, ErrFormat) {
				t.Errorf("ParseIndex() error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestParseMergesSplitPackets(t *testing.T) {
	var b vobsubtest.Builder
	ev := testEvent(time.Second, 176)
	ev.ChunkSize = 7
	b.Add(ev)
	b.Add(testEvent(3*time.Second, -1))

	idx, err := ParseIndex(strings.NewReader(b.Idx(vobsubtest.DefaultPalette())))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	packs, err := Parse(b.Sub(), idx, Options{MinDuration: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(packs) != 2 {
		t.Fatalf("got %d packs, want 2", len(packs))
	}

	if packs[0].Start != time.Second {
		t.Errorf("pack 0 start = %v, want 1s", packs[0].Start)
	}
	if want := time.Second + 176*dateTick; packs[0].End != want {
		t.Errorf("pack 0 end = %v, want %v", packs[0].End, want)
	}
	if packs[1].Start != 3*time.Second {
		t.Errorf("pack 1 start = %v, want 3s", packs[1].Start)
	}
	if want := 3500 * time.Millisecond; packs[1].End != want {
		t.Errorf("trailing pack end = %v, want %v", packs[1].End, want)
	}
	if !bytes.Equal(packs[0].Data, vobsubtest.EncodeSPU(ev)) {
		t.Errorf("merged payload differs from the encoded subpicture")
	}
}

func TestParseEndFallsBackToNextStart(t *testing.T) {
	var b vobsubtest.Builder
	b.Add(testEvent(time.Second, -1))
	b.Add(testEvent(4*time.Second, -1))

	idx, err := ParseIndex(strings.NewReader(b.Idx(vobsubtest.DefaultPalette())))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	packs, err := Parse(b.Sub(), idx, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if packs[0].End != 4*time.Second {
		t.Errorf("end = %v, want start of next event", packs[0].End)
	}
	if packs[1].End != 4*time.Second+DefaultMinDuration {
		t.Errorf("trailing end = %v, want start + %v", packs[1].End, DefaultMinDuration)
	}
	if packs[0].EndAssumed {
		t.Errorf("pack 0 ends at the next event, EndAssumed should be false")
	}
	if !packs[1].EndAssumed {
		t.Errorf("trailing pack got the minimum duration, EndAssumed should be true")
	}
	for i, p := range packs {
		if p.Start >= p.End {
			t.Errorf("pack %d start %v not before end %v", i, p.Start, p.End)
		}
	}
}

func TestParseWithoutIndexUsesPTS(t *testing.T) {
	var b vobsubtest.Builder
	b.Add(testEvent(2500*time.Millisecond, -1))
	packs, err := Parse(b.Sub(), nil, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(packs) != 1 || packs[0].Start != 2500*time.Millisecond {
		t.Fatalf("packs = %+v", packs)
	}
	if _, err := packs[0].Raster(); !errors.Is(err, ErrPaletteNotSet) {
		t.Errorf("Raster() error = %v, want ErrPaletteNotSet", err)
	}
}

func TestParseStopDateIsNotAssumed(t *testing.T) {
	var b vobsubtest.Builder
	b.Add(testEvent(time.Second, 88))

	packs, err := Parse(b.Sub(), nil, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if packs[0].EndAssumed {
		t.Errorf("pack with a stop date flagged EndAssumed")
	}
}

func TestParseSelectsIndexStream(t *testing.T) {
	// the .sub opens with a stream 1 packet, ahead of the stream 0 events
	var b vobsubtest.Builder
	second := testEvent(500*time.Millisecond, 88)
	second.Stream = 1
	b.Add(second)
	b.Add(testEvent(time.Second, 88))
	b.Add(testEvent(3*time.Second, 88))

	tests := []struct {
		name    string
		langIdx int
		starts  []time.Duration
	}{
		{"langidx 0", 0, []time.Duration{time.Second, 3 * time.Second}},
		{"langidx 1", 1, []time.Duration{500 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.LangIdx = tt.langIdx
			idx, err := ParseIndex(strings.NewReader(b.Idx(vobsubtest.DefaultPalette())))
			if err != nil {
				t.Fatalf("ParseIndex() error = %v", err)
			}
			if got := idx.Stream().Index; got != tt.langIdx {
				t.Fatalf("selected stream %d, want %d", got, tt.langIdx)
			}

			packs, err := Parse(b.Sub(), idx, Options{})
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(packs) != len(tt.starts) {
				t.Fatalf("got %d packs, want %d", len(packs), len(tt.starts))
			}
			for i, p := range packs {
				if p.Start != tt.starts[i] {
					t.Errorf("pack %d start = %v, want %v", i, p.Start, tt.starts[i])
				}
			}
		})
	}
}

func TestParseFormatErrors(t *testing.T) {
	var b vobsubtest.Builder
	b.Add(testEvent(time.Second, -1))
	valid := b.Sub()

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage start code", append([]byte{0xde, 0xad, 0xbe, 0xef}, valid...)},
		{"truncated packet", valid[:30]},
		{"continuation first", func() []byte {
			var c vobsubtest.Builder
			ev := testEvent(time.Second, -1)
			ev.ChunkSize = 8
			c.Add(ev)
			raw := c.Sub()
			// drop the first pack so the stream starts with a continuation
			return raw[14+6+3+5+1+8:]
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data, nil, Options{})
			if !errors.Is(err, ErrFormat) {
				t.Errorf("Parse() error = %v, want ErrFormat", err)
			}
			var fe *FormatError
			if errors.As(err, &fe) && fe.Offset < 0 {
				t.Errorf("offset = %d, want a byte position", fe.Offset)
			}
		})
	}
}

func TestBitmap(t *testing.T) {
	var b vobsubtest.Builder
	b.Add(testEvent(0, -1))
	packs, err := Parse(b.Sub(), nil, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p := packs[0]
	p.SetPalette(vobsubtest.DefaultPalette())

	full, err := p.Raster()
	if err != nil {
		t.Fatalf("Raster() error = %v", err)
	}
	if full.Width != 4 || full.Height != 4 {
		t.Fatalf("raster = %dx%d, want 4x4", full.Width, full.Height)
	}
	if r, _, _, a := full.Channels(1, 1); r != 1 || a != 1 {
		t.Errorf("text pixel = %v/%v, want white opaque", r, a)
	}
	if _, _, _, a := full.Channels(0, 0); a != 0 {
		t.Errorf("background alpha = %v, want 0", a)
	}

	bmp, found, err := p.Bitmap()
	if err != nil {
		t.Fatalf("Bitmap() error = %v", err)
	}
	if !found || bmp.Width != 2 || bmp.Height != 2 {
		t.Errorf("Bitmap() = %dx%d found=%v, want 2x2 true", bmp.Width, bmp.Height, found)
	}
}

func TestBitmapBlankFallsBack(t *testing.T) {
	ev := testEvent(0, -1)
	ev.Pixels = make([]byte, 16)
	var b vobsubtest.Builder
	b.Add(ev)
	packs, err := Parse(b.Sub(), nil, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	packs[0].SetPalette(vobsubtest.DefaultPalette())
	bmp, found, err := packs[0].Bitmap()
	if err != nil {
		t.Fatalf("Bitmap() error = %v", err)
	}
	if found || bmp.Width != 1 || bmp.Height != 1 {
		t.Errorf("Bitmap() = %dx%d found=%v, want 1x1 false", bmp.Width, bmp.Height, found)
	}
}

func TestDecodeRLELongRuns(t *testing.T) {
	width, height := 300, 3
	pixels := make([]byte, width*height)
	for i := range pixels {
		if i%width >= 100 {
			pixels[i] = 2
		}
	}
	ev := vobsubtest.Event{Width: width, Height: height, Pixels: pixels, StopTicks: -1}
	data := vobsubtest.EncodeSPU(ev)
	s, err := parseSPU(data)
	if err != nil {
		t.Fatalf("parseSPU() error = %v", err)
	}
	got := decodeRLE(data, s.FieldOffsets, width, height)
	if !bytes.Equal(got, pixels) {
		t.Errorf("decoded pixels differ from the encoded frame")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	var b vobsubtest.Builder
	b.Add(testEvent(time.Second, 88))

	subPath := filepath.Join(dir, "0.sub")
	idxPath := filepath.Join(dir, "0.idx")
	if err := os.WriteFile(subPath, b.Sub(), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(idxPath, []byte(b.Idx(vobsubtest.DefaultPalette())), 0644); err != nil {
		t.Fatal(err)
	}

	track, err := Open(subPath, idxPath, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(track.Packs) != 1 {
		t.Fatalf("got %d packs, want 1", len(track.Packs))
	}
	if len(track.Packs[0].Palette()) != 16 {
		t.Errorf("palette not injected from idx")
	}

	if _, err := Open(filepath.Join(dir, "missing.sub"), idxPath, Options{}); err == nil {
		t.Errorf("Open() with missing sub should fail")
	}
}
