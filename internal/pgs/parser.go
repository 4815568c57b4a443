package pgs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"
)

// group of segments shown or cleared together
type DisplaySet struct {
	// presentation time of the composition
	PresentationTimestamp time.Duration
	// byte offset of the first segment in the set
	Offset int64

	Composition *Composition
	Windows     []Window
	Palettes    []*Palette
	Objects     []*Object

	// palette in effect for the composition, possibly defined by an
	// earlier set of the same epoch
	Palette *Palette

	// set was closed by an END segment
	Ended bool
}

// a set carrying object data shows an image, one without it clears the screen
func (ds *DisplaySet) HasImage() bool {
	return len(ds.Objects) > 0
}

// reads display sets from a PGS stream
type Parser struct {
	r        *bufio.Reader
	offset   int64
	palettes map[uint8]*Palette
	used     bool
	// video size of the latest composition, objects may not exceed it
	screenW, screenH int
}

// used when no composition has declared the video size yet
const maxScreenSize = 4096

func NewParser(r io.Reader) *Parser {
	return &Parser{
		r:        bufio.NewReader(r),
		palettes: make(map[uint8]*Palette),
	}
}

// DisplaySets returns the display sets in stream order. The sequence is lazy
// and can be ranged over once. A malformed segment yields a *FormatError as
// the final element.
func (p *Parser) DisplaySets() iter.Seq2[*DisplaySet, error] {
	return func(yield func(*DisplaySet, error) bool) {
		if p.used {
			yield(nil, errors.New("pgs: display sets already consumed"))
			return
		}
		p.used = true

		var current *DisplaySet
		for {
			segStart := p.offset
			hdr, payload, err := p.readSegment()
			if err == io.EOF {
				if current != nil {
					p.finish(current)
					yield(current, nil)
				}
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}

			// a second composition without END starts a new set
			if current != nil && hdr.Type == SegmentPCS && current.Composition != nil {
				p.finish(current)
				if !yield(current, nil) {
					return
				}
				current = nil
			}
			if current == nil {
				current = &DisplaySet{
					PresentationTimestamp: ptsToDuration(hdr.PTS),
					Offset:                segStart,
				}
			}

			if err := p.apply(current, hdr, payload); err != nil {
				yield(nil, &FormatError{Offset: segStart, Reason: err.Error()})
				return
			}

			if hdr.Type == SegmentEND {
				current.Ended = true
				p.finish(current)
				if !yield(current, nil) {
					return
				}
				current = nil
			}
		}
	}
}

// reads and collects every display set, stopping at the first error
func ReadAll(r io.Reader) ([]*DisplaySet, error) {
	var sets []*DisplaySet
	for ds, err := range NewParser(r).DisplaySets() {
		if err != nil {
			return sets, err
		}
		sets = append(sets, ds)
	}
	return sets, nil
}

func (p *Parser) readSegment() (segmentHeader, []byte, error) {
	var hb [headerSize]byte
	n, err := io.ReadFull(p.r, hb[:])
	if err == io.EOF {
		return segmentHeader{}, nil, io.EOF
	}
	if err != nil {
		return segmentHeader{}, nil, &FormatError{
			Offset: p.offset,
			Reason: fmt.Sprintf("truncated segment header (%d of %d bytes)", n, headerSize),
		}
	}

	hdr, ok := parseHeader(hb[:])
	if !ok {
		return segmentHeader{}, nil, &FormatError{
			Offset: p.offset,
			Reason: fmt.Sprintf("bad magic %q", hb[0:2]),
		}
	}
	switch hdr.Type {
	case SegmentPDS, SegmentODS, SegmentPCS, SegmentWDS, SegmentEND:
	default:
		return segmentHeader{}, nil, &FormatError{
			Offset: p.offset,
			Reason: fmt.Sprintf("unknown segment type %s", hdr.Type),
		}
	}

	payload := make([]byte, hdr.Size)
	n, err = io.ReadFull(p.r, payload)
	if err != nil {
		return segmentHeader{}, nil, &FormatError{
			Offset: p.offset,
			Reason: fmt.Sprintf(
				"%s segment declares %d bytes but only %d remain",
				hdr.Type, hdr.Size, n,
			),
		}
	}

	p.offset += int64(headerSize) + int64(hdr.Size)
	return hdr, payload, nil
}

func (p *Parser) apply(ds *DisplaySet, hdr segmentHeader, payload []byte) error {
	switch hdr.Type {
	case SegmentPCS:
		c, err := parseComposition(payload)
		if err != nil {
			return err
		}
		ds.Composition = c
		ds.PresentationTimestamp = ptsToDuration(hdr.PTS)
		if c.Width > 0 && c.Height > 0 {
			p.screenW, p.screenH = c.Width, c.Height
		}
	case SegmentWDS:
		w, err := parseWindows(payload)
		if err != nil {
			return err
		}
		ds.Windows = append(ds.Windows, w...)
	case SegmentPDS:
		pal, err := parsePalette(payload)
		if err != nil {
			return err
		}
		ds.Palettes = append(ds.Palettes, pal)
		p.palettes[pal.ID] = pal
	case SegmentODS:
		if len(payload) < 2 {
			return fmt.Errorf("object segment too short: %d bytes", len(payload))
		}
		id := uint16(payload[0])<<8 | uint16(payload[1])
		obj := ds.object(id)
		if obj == nil {
			obj = &Object{}
			ds.Objects = append(ds.Objects, obj)
		}
		if err := obj.addFragment(payload); err != nil {
			return err
		}
		if w, h := p.screenSize(); obj.Width > w || obj.Height > h {
			return fmt.Errorf("object %d is %dx%d, larger than the %dx%d video",
				obj.ID, obj.Width, obj.Height, w, h)
		}
	}
	return nil
}

func (p *Parser) screenSize() (int, int) {
	if p.screenW == 0 || p.screenH == 0 {
		return maxScreenSize, maxScreenSize
	}
	return p.screenW, p.screenH
}

func (ds *DisplaySet) object(id uint16) *Object {
	for _, o := range ds.Objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// resolves the palette referenced by the composition
func (p *Parser) finish(ds *DisplaySet) {
	if ds.Composition != nil {
		if pal, ok := p.palettes[ds.Composition.PaletteID]; ok {
			ds.Palette = pal
			return
		}
	}
	if len(ds.Palettes) > 0 {
		ds.Palette = ds.Palettes[0]
	}
}
