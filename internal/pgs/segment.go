package pgs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"time"
)

// segment type tags as they appear in the stream
type SegmentType byte

const (
	SegmentPDS SegmentType = 0x14 // palette definition
	SegmentODS SegmentType = 0x15 // object definition
	SegmentPCS SegmentType = 0x16 // presentation composition
	SegmentWDS SegmentType = 0x17 // window definition
	SegmentEND SegmentType = 0x80 // end of display set
)

func (t SegmentType) String() string {
	switch t {
	case SegmentPDS:
		return "PDS"
	case SegmentODS:
		return "ODS"
	case SegmentPCS:
		return "PCS"
	case SegmentWDS:
		return "WDS"
	case SegmentEND:
		return "END"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}

const (
	headerSize = 13
	magic      = "PG"
	clockRate  = 90000
)

// ODS sequence flags
const (
	firstInSequence = 0x80
	lastInSequence  = 0x40
)

// matched by every malformed stream error
var ErrFormat = errors.New("pgs: malformed stream")

// malformed segment data, carrying the byte offset of the offending segment
type FormatError struct {
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("pgs: %s (byte offset %d)", e.Reason, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

type segmentHeader struct {
	PTS  uint32
	DTS  uint32
	Type SegmentType
	Size uint16
}

func parseHeader(b []byte) (segmentHeader, bool) {
	if string(b[0:2]) != magic {
		return segmentHeader{}, false
	}
	return segmentHeader{
		PTS:  binary.BigEndian.Uint32(b[2:6]),
		DTS:  binary.BigEndian.Uint32(b[6:10]),
		Type: SegmentType(b[10]),
		Size: binary.BigEndian.Uint16(b[11:13]),
	}, true
}

// converts a 90 kHz presentation timestamp without rounding to milliseconds
func ptsToDuration(pts uint32) time.Duration {
	return time.Duration(int64(pts) * int64(time.Second) / clockRate)
}

// one object placed by a composition
type CompositionObject struct {
	ObjectID uint16
	WindowID uint8
	X, Y     int
	Forced   bool
	Crop     image.Rectangle
	Cropped  bool
}

// decoded PCS payload
type Composition struct {
	Width, Height int
	Number        uint16
	State         uint8
	PaletteUpdate bool
	PaletteID     uint8
	Objects       []CompositionObject
}

func parseComposition(p []byte) (*Composition, error) {
	if len(p) < 11 {
		return nil, fmt.Errorf("composition segment too short: %d bytes", len(p))
	}
	c := &Composition{
		Width:         int(binary.BigEndian.Uint16(p[0:2])),
		Height:        int(binary.BigEndian.Uint16(p[2:4])),
		Number:        binary.BigEndian.Uint16(p[5:7]),
		State:         p[7],
		PaletteUpdate: p[8] == 0x80,
		PaletteID:     p[9],
	}
	count := int(p[10])
	pos := 11
	for i := 0; i < count; i++ {
		if pos+8 > len(p) {
			return nil, fmt.Errorf("composition object %d truncated", i)
		}
		obj := CompositionObject{
			ObjectID: binary.BigEndian.Uint16(p[pos : pos+2]),
			WindowID: p[pos+2],
			Forced:   p[pos+3]&0x40 != 0,
			Cropped:  p[pos+3]&0x80 != 0,
			X:        int(binary.BigEndian.Uint16(p[pos+4 : pos+6])),
			Y:        int(binary.BigEndian.Uint16(p[pos+6 : pos+8])),
		}
		pos += 8
		if obj.Cropped {
			if pos+8 > len(p) {
				return nil, fmt.Errorf("composition object %d crop truncated", i)
			}
			x := int(binary.BigEndian.Uint16(p[pos : pos+2]))
			y := int(binary.BigEndian.Uint16(p[pos+2 : pos+4]))
			w := int(binary.BigEndian.Uint16(p[pos+4 : pos+6]))
			h := int(binary.BigEndian.Uint16(p[pos+6 : pos+8]))
			obj.Crop = image.Rect(x, y, x+w, y+h)
			pos += 8
		}
		c.Objects = append(c.Objects, obj)
	}
	return c, nil
}

// decoded WDS entry
type Window struct {
	ID     uint8
	Bounds image.Rectangle
}

func parseWindows(p []byte) ([]Window, error) {
	if len(p) < 1 {
		return nil, fmt.Errorf("window segment empty")
	}
	count := int(p[0])
	if len(p) < 1+count*9 {
		return nil, fmt.Errorf("window segment declares %d windows in %d bytes", count, len(p))
	}
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		b := p[1+i*9:]
		x := int(binary.BigEndian.Uint16(b[1:3]))
		y := int(binary.BigEndian.Uint16(b[3:5]))
		w := int(binary.BigEndian.Uint16(b[5:7]))
		h := int(binary.BigEndian.Uint16(b[7:9]))
		windows = append(windows, Window{ID: b[0], Bounds: image.Rect(x, y, x+w, y+h)})
	}
	return windows, nil
}

// object being assembled from one or more ODS fragments
type Object struct {
	ID      uint16
	Version uint8
	Width   int
	Height  int
	Data    []byte

	declared int
	complete bool
}

// true once the last fragment has been seen
func (o *Object) Complete() bool {
	return o.complete
}

// appends one ODS payload. A first-in-sequence fragment resets the object
func (o *Object) addFragment(p []byte) error {
	if len(p) < 4 {
		return fmt.Errorf("object segment too short: %d bytes", len(p))
	}
	o.ID = binary.BigEndian.Uint16(p[0:2])
	o.Version = p[2]
	flags := p[3]
	data := p[4:]

	if flags&firstInSequence != 0 {
		if len(data) < 7 {
			return fmt.Errorf("object %d first fragment too short", o.ID)
		}
		o.declared = int(data[0])<<16 | int(data[1])<<8 | int(data[2])
		o.Width = int(binary.BigEndian.Uint16(data[3:5]))
		o.Height = int(binary.BigEndian.Uint16(data[5:7]))
		o.Data = append(o.Data[:0], data[7:]...)
		o.complete = false
	} else {
		if o.Width == 0 && o.Height == 0 {
			return fmt.Errorf("object %d continuation without first fragment", o.ID)
		}
		o.Data = append(o.Data, data...)
	}

	if flags&lastInSequence != 0 {
		o.complete = true
	}
	return nil
}
