package vobsub

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// MPEG stream ids handled by the reader
const (
	streamIDProgramEnd     = 0xB9
	streamIDPackHeader     = 0xBA
	streamIDSystemHeader   = 0xBB
	streamIDPrivateStream1 = 0xBD
	streamIDPaddingStream  = 0xBE
	streamIDPrivateStream2 = 0xBF
	subStreamIDBase        = 0x20
	subStreamIDLast        = 0x3F
	mpeg2PackHeaderLength  = 14
	mpeg1PackHeaderLength  = 12
	pesFixedHeaderLength   = 6
	ptsClockRate           = 90000
	ptsFlag                = 0x2
)

// matched by every malformed stream error
var ErrFormat = errors.New("vobsub: malformed stream")

// malformed sub or idx data. Offset is -1 when the error comes from the idx file
type FormatError struct {
	Offset int64
	Reason string
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("vobsub: %s", e.Reason)
	}
	return fmt.Sprintf("vobsub: %s (byte offset %d)", e.Reason, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// subpicture payload of one private stream 1 PES packet
type packet struct {
	// offset of the enclosing pack header, matches idx filepos
	Offset      int64
	SubStreamID byte
	HasPTS      bool
	PTS         time.Duration
	Payload     []byte
}

// readPackets walks the program stream and returns every subpicture packet
func readPackets(data []byte) ([]packet, error) {
	var packets []packet
	pos := 0
	packStart := int64(0)

	for pos < len(data) {
		if allZero(data[pos:]) {
			break
		}
		if pos+4 > len(data) {
			return packets, &FormatError{Offset: int64(pos), Reason: "truncated start code"}
		}
		if data[pos] != 0 || data[pos+1] != 0 || data[pos+2] != 1 {
			return packets, &FormatError{
				Offset: int64(pos),
				Reason: fmt.Sprintf("invalid start code % x", data[pos:pos+3]),
			}
		}

		switch id := data[pos+3]; id {
		case streamIDProgramEnd:
			pos += 4
		case streamIDPackHeader:
			packStart = int64(pos)
			n, err := packHeaderLength(data[pos:])
			if err != nil {
				return packets, &FormatError{Offset: int64(pos), Reason: err.Error()}
			}
			pos += n
		case streamIDPrivateStream1:
			pkt, n, err := parsePES(data[pos:])
			if err != nil {
				return packets, &FormatError{Offset: int64(pos), Reason: err.Error()}
			}
			pkt.Offset = packStart
			if pkt.SubStreamID >= subStreamIDBase && pkt.SubStreamID <= subStreamIDLast {
				packets = append(packets, pkt)
			}
			pos += n
		default:
			// padding, system header and any other PES are skipped by length
			if id < streamIDSystemHeader {
				return packets, &FormatError{
					Offset: int64(pos),
					Reason: fmt.Sprintf("unexpected stream id 0x%02x", id),
				}
			}
			if pos+pesFixedHeaderLength > len(data) {
				return packets, &FormatError{Offset: int64(pos), Reason: "truncated packet header"}
			}
			length := int(binary.BigEndian.Uint16(data[pos+4 : pos+6]))
			if pos+pesFixedHeaderLength+length > len(data) {
				return packets, &FormatError{
					Offset: int64(pos),
					Reason: fmt.Sprintf("stream 0x%02x length %d exceeds file", id, length),
				}
			}
			pos += pesFixedHeaderLength + length
		}
	}
	return packets, nil
}

func packHeaderLength(b []byte) (int, error) {
	if len(b) < 5 {
		return 0, errors.New("truncated pack header")
	}
	if b[4]>>6 == 0x1 {
		if len(b) < mpeg2PackHeaderLength {
			return 0, errors.New("truncated pack header")
		}
		return mpeg2PackHeaderLength + int(b[13]&0x07), nil
	}
	if len(b) < mpeg1PackHeaderLength {
		return 0, errors.New("truncated pack header")
	}
	return mpeg1PackHeaderLength, nil
}

func parsePES(b []byte) (packet, int, error) {
	if len(b) < pesFixedHeaderLength+3 {
		return packet{}, 0, errors.New("truncated PES header")
	}
	length := int(binary.BigEndian.Uint16(b[4:6]))
	total := pesFixedHeaderLength + length
	if total > len(b) {
		return packet{}, 0, fmt.Errorf("PES length %d exceeds file", length)
	}

	flags := b[7]
	headerLen := int(b[8])
	payloadStart := pesFixedHeaderLength + 3 + headerLen
	if payloadStart+1 > total {
		return packet{}, 0, fmt.Errorf("PES header length %d exceeds packet", headerLen)
	}

	var pkt packet
	if flags>>6&ptsFlag != 0 {
		if headerLen < 5 {
			return packet{}, 0, errors.New("PES declares a PTS without room for it")
		}
		pkt.HasPTS = true
		pkt.PTS = decodePTS(b[9:14])
	}
	pkt.SubStreamID = b[payloadStart]
	pkt.Payload = b[payloadStart+1 : total]
	return pkt, total, nil
}

// 33-bit timestamp spread over 5 bytes with marker bits
func decodePTS(b []byte) time.Duration {
	pts := int64(b[0]>>1&0x07)<<30 |
		int64(b[1])<<22 |
		int64(b[2]>>1)<<15 |
		int64(b[3])<<7 |
		int64(b[4]>>1)
	return time.Duration(pts * int64(time.Second) / ptsClockRate)
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
