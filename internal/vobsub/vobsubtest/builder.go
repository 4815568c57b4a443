// Package vobsubtest builds small sub/idx pairs for tests.
package vobsubtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
	"time"
)

// one subtitle event
type Event struct {
	PTS    time.Duration
	Width  int
	Height int
	// pixel values 0-3, row major
	Pixels []byte
	// palette index and alpha per pixel value
	Colors [4]byte
	Alpha  [4]byte
	// stop date in 1024/90000 s ticks, negative for none
	StopTicks int
	// maximum payload per packet, 0 for a single packet
	ChunkSize int
	// subpicture stream number, written as substream 0x20+Stream
	Stream int
}

type entry struct {
	pts     time.Duration
	filepos int64
	stream  int
}

type Builder struct {
	// langidx written to the idx
	LangIdx int

	buf     bytes.Buffer
	entries []entry
}

// appends one event and returns its pack offset
func (b *Builder) Add(ev Event) int64 {
	spu := EncodeSPU(ev)
	chunk := ev.ChunkSize
	if chunk <= 0 {
		chunk = len(spu)
	}

	first := int64(b.buf.Len())
	b.entries = append(b.entries, entry{pts: ev.PTS, filepos: first, stream: ev.Stream})
	for i := 0; i < len(spu); i += chunk {
		end := min(i+chunk, len(spu))
		b.writePack(spu[i:end], ev.PTS, i == 0, byte(0x20+ev.Stream))
	}
	return first
}

// raw MPEG-PS bytes of the .sub file
func (b *Builder) Sub() []byte {
	out := append([]byte(nil), b.buf.Bytes()...)
	return append(out, 0, 0, 1, 0xB9)
}

// Idx renders a companion index with the given palette, one id section per
// stream in use and one timestamp per event
func (b *Builder) Idx(palette []string) string {
	var sb strings.Builder
	sb.WriteString("# VobSub index file, v7 (do not modify this line!)\n")
	sb.WriteString("size: 720x480\n")
	sb.WriteString("org: 0, 0\n")
	sb.WriteString("alpha: 100%\n")
	sb.WriteString("time offset: 0\n")
	sb.WriteString("palette: " + strings.Join(palette, ", ") + "\n")
	sb.WriteString(fmt.Sprintf("langidx: %d\n", b.LangIdx))

	streams := []int{0}
	for _, e := range b.entries {
		if !slices.Contains(streams, e.stream) {
			streams = append(streams, e.stream)
		}
	}
	slices.Sort(streams)
	for _, n := range streams {
		sb.WriteString(fmt.Sprintf("id: %s, index: %d\n", languages[n%len(languages)], n))
		for _, e := range b.entries {
			if e.stream != n {
				continue
			}
			ms := e.pts.Milliseconds()
			sb.WriteString(fmt.Sprintf("timestamp: %02d:%02d:%02d:%03d, filepos: %09x\n",
				ms/3600000, ms/60000%60, ms/1000%60, ms%1000, e.filepos))
		}
	}
	return sb.String()
}

var languages = []string{"en", "fr", "de", "es"}

// 16 colors: black, white, gray, then black
func DefaultPalette() []string {
	p := []string{"000000", "ffffff", "808080"}
	for len(p) < 16 {
		p = append(p, "000000")
	}
	return p
}

func (b *Builder) writePack(payload []byte, pts time.Duration, withPTS bool, substream byte) {
	// MPEG-2 pack header, no stuffing
	b.buf.Write([]byte{0, 0, 1, 0xBA, 0x44, 0, 4, 0, 4, 1, 1, 0x89, 0xC3, 0xF8})

	header := []byte{0x81, 0x00, 0x00}
	if withPTS {
		header = []byte{0x81, 0x80, 0x05}
		header = append(header, encodePTS(pts)...)
	}
	length := len(header) + 1 + len(payload)
	b.buf.Write([]byte{0, 0, 1, 0xBD, byte(length >> 8), byte(length)})
	b.buf.Write(header)
	b.buf.WriteByte(substream)
	b.buf.Write(payload)
}

func encodePTS(d time.Duration) []byte {
	pts := int64(d) * 90000 / int64(time.Second)
	return []byte{
		0x21 | byte(pts>>29)&0x0e,
		byte(pts >> 22),
		byte(pts>>14)&0xfe | 1,
		byte(pts >> 7),
		byte(pts<<1)&0xfe | 1,
	}
}

// EncodeSPU builds a complete subpicture unit for ev
func EncodeSPU(ev Event) []byte {
	var even, odd []byte
	for y := 0; y < ev.Height; y++ {
		line := encodeLine(ev.Pixels[y*ev.Width : (y+1)*ev.Width])
		if y%2 == 0 {
			even = append(even, line...)
		} else {
			odd = append(odd, line...)
		}
	}

	evenOff := 4
	oddOff := evenOff + len(even)
	ctrl := oddOff + len(odd)

	var seq []byte
	x2, y2 := ev.Width-1, ev.Height-1
	first := []byte{0x00, 0x00, 0, 0, 0x01}
	first = append(first, 0x03, ev.Colors[3]<<4|ev.Colors[2], ev.Colors[1]<<4|ev.Colors[0])
	first = append(first, 0x04, ev.Alpha[3]<<4|ev.Alpha[2], ev.Alpha[1]<<4|ev.Alpha[0])
	first = append(first, 0x05,
		0, byte(x2>>8), byte(x2),
		0, byte(y2>>8), byte(y2))
	first = append(first, 0x06, byte(evenOff>>8), byte(evenOff), byte(oddOff>>8), byte(oddOff))
	first = append(first, 0xFF)

	if ev.StopTicks >= 0 {
		second := ctrl + len(first)
		binary.BigEndian.PutUint16(first[2:4], uint16(second))
		last := []byte{byte(ev.StopTicks >> 8), byte(ev.StopTicks), byte(second >> 8), byte(second), 0x02, 0xFF}
		seq = append(first, last...)
	} else {
		binary.BigEndian.PutUint16(first[2:4], uint16(ctrl))
		seq = first
	}

	out := []byte{0, 0, byte(ctrl >> 8), byte(ctrl)}
	out = append(out, even...)
	out = append(out, odd...)
	out = append(out, seq...)
	binary.BigEndian.PutUint16(out[0:2], uint16(len(out)))
	return out
}

type nibbleWriter struct {
	out  []byte
	half bool
}

func (w *nibbleWriter) put(n byte) {
	if w.half {
		w.out[len(w.out)-1] |= n & 0x0f
	} else {
		w.out = append(w.out, n<<4)
	}
	w.half = !w.half
}

func encodeLine(pixels []byte) []byte {
	w := &nibbleWriter{}
	for x := 0; x < len(pixels); {
		v := pixels[x]
		n := 1
		for x+n < len(pixels) && pixels[x+n] == v && n < 255 {
			n++
		}
		x += n
		code := n<<2 | int(v)
		switch {
		case n < 4:
			w.put(byte(code))
		case n < 16:
			w.put(byte(code >> 4))
			w.put(byte(code))
		case n < 64:
			w.put(byte(code >> 8))
			w.put(byte(code >> 4))
			w.put(byte(code))
		default:
			w.put(byte(code >> 12))
			w.put(byte(code >> 8))
			w.put(byte(code >> 4))
			w.put(byte(code))
		}
	}
	return w.out
}
