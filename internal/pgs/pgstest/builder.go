// Package pgstest builds small PGS streams for tests.
package pgstest

import (
	"bytes"
	"encoding/binary"
	"time"
)

type PaletteEntry struct {
	Index     byte
	Y, Cr, Cb byte
	Alpha     byte
}

// opaque white at index 1, fully transparent at 0
var DefaultPalette = []PaletteEntry{
	{Index: 0, Y: 16, Cr: 128, Cb: 128, Alpha: 0},
	{Index: 1, Y: 235, Cr: 128, Cb: 128, Alpha: 255},
}

type Builder struct {
	buf    bytes.Buffer
	number uint16
}

func ToPTS(d time.Duration) uint32 {
	return uint32(d * 90000 / time.Second)
}

// Segment appends one raw segment
func (b *Builder) Segment(typ byte, pts time.Duration, payload []byte) *Builder {
	var hdr [13]byte
	hdr[0], hdr[1] = 'P', 'G'
	binary.BigEndian.PutUint32(hdr[2:6], ToPTS(pts))
	hdr[10] = typ
	binary.BigEndian.PutUint16(hdr[11:13], uint16(len(payload)))
	b.buf.Write(hdr[:])
	b.buf.Write(payload)
	return b
}

// Image appends a full display set showing pixels (palette indices, row major)
func (b *Builder) Image(pts time.Duration, width, height int, pixels []byte, palette []PaletteEntry) *Builder {
	b.Segment(0x16, pts, b.composition(1, 10, 20))
	b.Segment(0x17, pts, window(10, 20, width, height))
	b.Segment(0x14, pts, PaletteSegment(palette))
	b.Segment(0x15, pts, ObjectSegment(0, width, height, EncodeRLE(pixels, width, height)))
	return b.Segment(0x80, pts, nil)
}

// Clear appends a display set removing the current image
func (b *Builder) Clear(pts time.Duration) *Builder {
	b.Segment(0x16, pts, b.composition(0, 0, 0))
	b.Segment(0x17, pts, window(0, 0, 0, 0))
	return b.Segment(0x80, pts, nil)
}

func (b *Builder) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *Builder) composition(objects, x, y int) []byte {
	p := make([]byte, 11, 19)
	binary.BigEndian.PutUint16(p[0:2], 1920)
	binary.BigEndian.PutUint16(p[2:4], 1080)
	p[4] = 0x10
	binary.BigEndian.PutUint16(p[5:7], b.number)
	b.number++
	p[7] = 0x80
	p[10] = byte(objects)
	if objects > 0 {
		obj := make([]byte, 8)
		binary.BigEndian.PutUint16(obj[4:6], uint16(x))
		binary.BigEndian.PutUint16(obj[6:8], uint16(y))
		p = append(p, obj...)
	}
	return p
}

func window(x, y, w, h int) []byte {
	p := make([]byte, 10)
	p[0] = 1
	binary.BigEndian.PutUint16(p[2:4], uint16(x))
	binary.BigEndian.PutUint16(p[4:6], uint16(y))
	binary.BigEndian.PutUint16(p[6:8], uint16(w))
	binary.BigEndian.PutUint16(p[8:10], uint16(h))
	return p
}

// PaletteSegment encodes a PDS payload with palette id 0
func PaletteSegment(entries []PaletteEntry) []byte {
	p := []byte{0, 0}
	for _, e := range entries {
		p = append(p, e.Index, e.Y, e.Cr, e.Cb, e.Alpha)
	}
	return p
}

// ObjectSegment encodes a single-fragment ODS payload. The declared size is
// written as given, so tests can describe objects the RLE does not fill.
func ObjectSegment(id uint16, width, height int, rle []byte) []byte {
	p := make([]byte, 11, 11+len(rle))
	binary.BigEndian.PutUint16(p[0:2], id)
	p[3] = 0xC0
	n := len(rle) + 4
	p[4], p[5], p[6] = byte(n>>16), byte(n>>8), byte(n)
	binary.BigEndian.PutUint16(p[7:9], uint16(width))
	binary.BigEndian.PutUint16(p[9:11], uint16(height))
	return append(p, rle...)
}

// EncodeRLE is the inverse of the object decoder
func EncodeRLE(pixels []byte, width, height int) []byte {
	var out []byte
	for y := 0; y < height; y++ {
		row := pixels[y*width : (y+1)*width]
		for x := 0; x < width; {
			c := row[x]
			n := 1
			for x+n < width && row[x+n] == c && n < 0x3fff {
				n++
			}
			x += n
			switch {
			case c != 0 && n < 3:
				for ; n > 0; n-- {
					out = append(out, c)
				}
			case c == 0 && n < 64:
				out = append(out, 0, byte(n))
			case c == 0:
				out = append(out, 0, 0x40|byte(n>>8), byte(n))
			case n < 64:
				out = append(out, 0, 0x80|byte(n), c)
			default:
				out = append(out, 0, 0xC0|byte(n>>8), byte(n), c)
			}
		}
		out = append(out, 0, 0)
	}
	return out
}
