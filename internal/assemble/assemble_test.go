package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mgpai22/subocr/internal/logging"
	"github.com/mgpai22/subocr/internal/pgs/pgstest"
	"github.com/mgpai22/subocr/internal/raster"
	"github.com/mgpai22/subocr/internal/vobsub"
	"github.com/mgpai22/subocr/internal/vobsub/vobsubtest"
)

// fakeEngine answers "line N" for the Nth call
type fakeEngine struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	langs  []string
	sizes  []image.Rectangle
}

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image, lang string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.langs = append(f.langs, lang)
	f.sizes = append(f.sizes, img.Bounds())
	if f.failOn[f.calls] {
		return "", errors.New("engine unavailable")
	}
	return fmt.Sprintf("line %d\f", f.calls), nil
}

func (f *fakeEngine) Languages(context.Context) ([]string, error) {
	return []string{"eng"}, nil
}

func (f *fakeEngine) Close() error { return nil }

var square = []byte{
	1, 1,
	1, 1,
}

func TestPGSTrailingImageDropped(t *testing.T) {
	var b pgstest.Builder
	b.Image(0, 2, 2, square, pgstest.DefaultPalette).
		Clear(time.Second).
		Image(1500*time.Millisecond, 2, 2, square, pgstest.DefaultPalette)

	engine := &fakeEngine{}
	a := New(engine, Options{Language: "eng", Raster: raster.DefaultOptions()}, nil)
	sub, err := a.Run(context.Background(), NewPGSDecoder(bytes.NewReader(b.Bytes()), 0))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sub.Entries) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(sub.Entries), sub.Entries)
	}
	got := sub.Entries[0]
	if got.Index != 0 || got.StartTime != 0 || got.EndTime != time.Second || got.Text != "line 1" {
		t.Errorf("record = %+v, want {0 0s 1s line 1}", got)
	}

	if engine.calls != 2 {
		t.Errorf("engine called %d times, want 2", engine.calls)
	}
	for i, lang := range engine.langs {
		if lang != "eng" {
			t.Errorf("call %d used language %q", i, lang)
		}
	}
	want := image.Rect(0, 0, 2+2*raster.DefaultPadding, 2+2*raster.DefaultPadding)
	if engine.sizes[0] != want {
		t.Errorf("OCR image bounds = %v, want %v", engine.sizes[0], want)
	}
}

func TestPGSBackToBackImages(t *testing.T) {
	var b pgstest.Builder
	b.Image(0, 2, 2, square, pgstest.DefaultPalette).
		Image(2*time.Second, 2, 2, square, pgstest.DefaultPalette).
		Clear(3 * time.Second).
		Clear(4 * time.Second)

	a := New(&fakeEngine{}, Options{Language: "eng"}, nil)
	sub, err := a.Run(context.Background(), NewPGSDecoder(bytes.NewReader(b.Bytes()), 0))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []struct {
		start, end time.Duration
		text       string
	}{
		{0, 2 * time.Second, "line 1"},
		{2 * time.Second, 3 * time.Second, "line 2"},
	}
	if len(sub.Entries) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(sub.Entries))
	}
	for i, w := range want {
		e := sub.Entries[i]
		if e.Index != i || e.StartTime != w.start || e.EndTime != w.end || e.Text != w.text {
			t.Errorf("record %d = %+v, want %+v", i, e, w)
		}
	}
}

func TestPGSFormatErrorFailsTrack(t *testing.T) {
	var b pgstest.Builder
	b.Image(0, 2, 2, square, pgstest.DefaultPalette).Clear(time.Second)
	data := b.Bytes()
	data = append(data, 'P', 'G', 0, 0)

	a := New(&fakeEngine{}, Options{Language: "eng"}, nil)
	_, err := a.Run(context.Background(), NewPGSDecoder(bytes.NewReader(data), 0))
	if err == nil {
		t.Fatal("expected error for truncated stream")
	}
	if !IsFormatError(err) {
		t.Errorf("IsFormatError(%v) = false", err)
	}
}

func testPacks(t *testing.T) ([]*vobsub.MergedPack, []string) {
	t.Helper()
	event := func(pts time.Duration, stop int) vobsubtest.Event {
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
			StopTicks: stop,
		}
	}

	var b vobsubtest.Builder
	b.Add(event(time.Second, 176))
	b.Add(event(5*time.Second, -1))
	b.Add(event(9*time.Second, 88))

	idx, err := vobsub.ParseIndex(strings.NewReader(b.Idx(vobsubtest.DefaultPalette())))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	packs, err := vobsub.Parse(b.Sub(), idx, vobsub.Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return packs, idx.Palette
}

func TestVobSubRecordsMatchPacks(t *testing.T) {
	packs, palette := testPacks(t)

	engine := &fakeEngine{}
	a := New(engine, Options{Language: "eng", Raster: raster.Options{Scale: 2}}, nil)
	sub, err := a.Run(context.Background(), NewVobSubDecoder(packs, palette))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sub.Entries) != len(packs) {
		t.Fatalf("expected %d records, got %d", len(packs), len(sub.Entries))
	}
	for i, e := range sub.Entries {
		if e.Index != i {
			t.Errorf("record %d has index %d", i, e.Index)
		}
		if e.StartTime != packs[i].Start || e.EndTime != packs[i].End {
			t.Errorf("record %d = %v-%v, want %v-%v", i, e.StartTime, e.EndTime, packs[i].Start, packs[i].End)
		}
		if e.StartTime > e.EndTime {
			t.Errorf("record %d starts after it ends", i)
		}
		if want := fmt.Sprintf("line %d", i+1); e.Text != want {
			t.Errorf("record %d text = %q, want %q", i, e.Text, want)
		}
	}

	// 2x2 crop, scaled by 2, no padding
	if want := image.Rect(0, 0, 4, 4); engine.sizes[0] != want {
		t.Errorf("OCR image bounds = %v, want %v", engine.sizes[0], want)
	}
}

func TestOCRFailureKeepsRecord(t *testing.T) {
	packs, palette := testPacks(t)

	engine := &fakeEngine{failOn: map[int]bool{2: true}}
	a := New(engine, Options{Language: "eng"}, nil)
	sub, err := a.Run(context.Background(), NewVobSubDecoder(packs, palette))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sub.Entries) != 3 {
		t.Fatalf("expected 3 records, got %d", len(sub.Entries))
	}
	if sub.Entries[1].Text != "" {
		t.Errorf("failed frame text = %q, want empty", sub.Entries[1].Text)
	}
	if sub.Entries[2].Text != "line 3" {
		t.Errorf("frame after failure text = %q", sub.Entries[2].Text)
	}
}

func TestVobSubAssumedEndIsLogged(t *testing.T) {
	var b vobsubtest.Builder
	ev := vobsubtest.Event{
		PTS:       time.Second,
		Width:     2,
		Height:    2,
		Pixels:    []byte{1, 1, 1, 1},
		Colors:    [4]byte{0, 1, 2, 0},
		Alpha:     [4]byte{0, 15, 15, 15},
		StopTicks: 88,
	}
	b.Add(ev)
	ev.PTS = 4 * time.Second
	ev.StopTicks = -1
	b.Add(ev)

	idx, err := vobsub.ParseIndex(strings.NewReader(b.Idx(vobsubtest.DefaultPalette())))
	if err != nil {
		t.Fatalf("ParseIndex() error = %v", err)
	}
	packs, err := vobsub.Parse(b.Sub(), idx, vobsub.Options{MinDuration: 1500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	log := &logging.Logger{SugaredLogger: zap.New(core).Sugar()}
	a := New(&fakeEngine{}, Options{Language: "eng", Label: "track 0"}, log)
	sub, err := a.Run(context.Background(), NewVobSubDecoder(packs, idx.Palette))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := 5500 * time.Millisecond; sub.Entries[1].EndTime != want {
		t.Errorf("trailing end = %v, want %v", sub.Entries[1].EndTime, want)
	}

	entries := logs.FilterMessage("frame has no end, using minimum duration").All()
	if len(entries) != 1 {
		t.Fatalf("got %d minimum duration notes, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["frame"]; got != int64(1) {
		t.Errorf("note names frame %v, want 1", got)
	}
}

func TestImageDump(t *testing.T) {
	var b pgstest.Builder
	b.Image(0, 2, 2, square, pgstest.DefaultPalette).
		Clear(time.Second).
		Image(2*time.Second, 2, 2, square, pgstest.DefaultPalette).
		Clear(3 * time.Second)

	dir := filepath.Join(t.TempDir(), "images", "0")
	var progress bytes.Buffer
	a := New(&fakeEngine{}, Options{
		Language: "eng",
		ImageDir: dir,
		Progress: &progress,
		Label:    "track 0",
	}, nil)
	sub, err := a.Run(context.Background(), NewPGSDecoder(bytes.NewReader(b.Bytes()), 0.1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sub.Entries) != 2 {
		t.Fatalf("got %d records, want 2", len(sub.Entries))
	}

	// one image per record, named by record index
	for _, e := range sub.Entries {
		name := strconv.Itoa(e.Index) + ".jpg"
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d images, want 2 (clear frames are not saved)", len(entries))
	}
}

func TestCanceledContext(t *testing.T) {
	packs, palette := testPacks(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(&fakeEngine{}, Options{Language: "eng"}, nil)
	_, err := a.Run(ctx, NewVobSubDecoder(packs, palette))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
