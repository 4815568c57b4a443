package vobsub

import (
	"encoding/binary"
	"fmt"
	"image"
	"time"
)

// SPU control commands
const (
	cmdForceDisplay = 0x00
	cmdStartDisplay = 0x01
	cmdStopDisplay  = 0x02
	cmdPalette      = 0x03
	cmdAlpha        = 0x04
	cmdCoordinates  = 0x05
	cmdRLEOffsets   = 0x06
	cmdChangeColor  = 0x07
	cmdEnd          = 0xFF
)

// control sequence dates tick at 1024/90000 s
const dateTick = 1024 * time.Second / ptsClockRate

// decoded control block of one subpicture unit
type spu struct {
	StartDelay time.Duration
	StopDelay  time.Duration
	HasStop    bool
	Forced     bool
	// palette index and alpha (0-15) for pixel values 0-3
	Colors [4]byte
	Alpha  [4]byte
	Rect   image.Rectangle
	// offsets of the even and odd field RLE data from the SPU start
	FieldOffsets [2]int
}

func parseSPU(data []byte) (*spu, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("subpicture too short: %d bytes", len(data))
	}
	size := int(binary.BigEndian.Uint16(data[0:2]))
	if size > len(data) {
		return nil, fmt.Errorf("subpicture declares %d bytes, has %d", size, len(data))
	}
	data = data[:size]

	s := &spu{}
	hasRect, hasOffsets := false, false
	offset := int(binary.BigEndian.Uint16(data[2:4]))

	// guard against sequences that point back at each other
	for seen := 0; seen < 64; seen++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("control sequence at %d out of bounds", offset)
		}
		date := time.Duration(binary.BigEndian.Uint16(data[offset:offset+2])) * dateTick
		next := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))

		pos := offset + 4
	commands:
		for pos < len(data) {
			cmd := data[pos]
			pos++
			switch cmd {
			case cmdForceDisplay:
				s.Forced = true
				s.StartDelay = date
			case cmdStartDisplay:
				s.StartDelay = date
			case cmdStopDisplay:
				s.StopDelay = date
				s.HasStop = true
			case cmdPalette, cmdAlpha:
				if pos+2 > len(data) {
					return nil, fmt.Errorf("command 0x%02x truncated", cmd)
				}
				dst := &s.Colors
				if cmd == cmdAlpha {
					dst = &s.Alpha
				}
				dst[3], dst[2] = data[pos]>>4, data[pos]&0x0f
				dst[1], dst[0] = data[pos+1]>>4, data[pos+1]&0x0f
				pos += 2
			case cmdCoordinates:
				if pos+6 > len(data) {
					return nil, fmt.Errorf("coordinates truncated")
				}
				b := data[pos : pos+6]
				x1 := int(b[0])<<4 | int(b[1])>>4
				x2 := int(b[1]&0x0f)<<8 | int(b[2])
				y1 := int(b[3])<<4 | int(b[4])>>4
				y2 := int(b[4]&0x0f)<<8 | int(b[5])
				s.Rect = image.Rect(x1, y1, x2+1, y2+1)
				hasRect = true
				pos += 6
			case cmdRLEOffsets:
				if pos+4 > len(data) {
					return nil, fmt.Errorf("RLE offsets truncated")
				}
				s.FieldOffsets[0] = int(binary.BigEndian.Uint16(data[pos : pos+2]))
				s.FieldOffsets[1] = int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
				hasOffsets = true
				pos += 4
			case cmdChangeColor:
				if pos+2 > len(data) {
					return nil, fmt.Errorf("color change truncated")
				}
				pos += int(binary.BigEndian.Uint16(data[pos : pos+2]))
			case cmdEnd:
				break commands
			default:
				return nil, fmt.Errorf("unknown control command 0x%02x", cmd)
			}
		}

		if next == offset || next+4 > len(data) {
			break
		}
		offset = next
	}

	if !hasRect {
		return nil, fmt.Errorf("subpicture has no coordinates")
	}
	if !hasOffsets {
		return nil, fmt.Errorf("subpicture has no RLE offsets")
	}
	if s.Rect.Dx() <= 0 || s.Rect.Dy() <= 0 {
		return nil, fmt.Errorf("subpicture has empty area %v", s.Rect)
	}
	return s, nil
}

type nibbleReader struct {
	data []byte
	pos  int // in nibbles
}

func (r *nibbleReader) next() (byte, bool) {
	i := r.pos / 2
	if i >= len(r.data) {
		return 0, false
	}
	b := r.data[i]
	if r.pos%2 == 0 {
		b >>= 4
	} else {
		b &= 0x0f
	}
	r.pos++
	return b, true
}

func (r *nibbleReader) align() {
	r.pos += r.pos % 2
}

// reads one run: pixel count and value. count 0 means "to end of line"
func (r *nibbleReader) run() (int, byte, bool) {
	code := 0
	for i := 0; i < 4; i++ {
		n, ok := r.next()
		if !ok {
			return 0, 0, false
		}
		code = code<<4 | int(n)
		// 4, 8 and 12 bit codes are recognised by their leading value
		if (i == 0 && code >= 0x4) || (i == 1 && code >= 0x10) || (i == 2 && code >= 0x40) {
			break
		}
	}
	return code >> 2, byte(code & 0x3), true
}

// decodeRLE expands both interlaced fields into width*height pixel values
// (0-3). Missing data leaves pixels at 0 and overlong runs are truncated.
func decodeRLE(data []byte, offsets [2]int, width, height int) []byte {
	pix := make([]byte, width*height)
	for field := 0; field < 2; field++ {
		if offsets[field] >= len(data) {
			continue
		}
		r := &nibbleReader{data: data, pos: offsets[field] * 2}
		for y := field; y < height; y += 2 {
			x := 0
			for x < width {
				count, value, ok := r.run()
				if !ok {
					break
				}
				if count == 0 {
					count = width - x
				}
				end := min(x+count, width)
				for ; x < end; x++ {
					pix[y*width+x] = value
				}
			}
			r.align()
		}
	}
	return pix
}
