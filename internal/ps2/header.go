// Package ps2 implements the PS2 Classics encrypted container codec:
// the fixed leading header, the LIMG layout sub-header, per-segment
// AES-128-CBC encryption with SHA-1 integrity meta blocks, and the
// streaming encode/decode pipelines that tie them together.
package ps2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/matheusfillipe/ps3toolbox/internal/keys"
)

const (
	// HeaderSize is the fixed length of the container's leading header.
	HeaderSize = 0x80

	// SegmentSize is the fixed plaintext/ciphertext segment length.
	// It is a multiple of the AES block size, so segments never need
	// intra-segment padding.
	SegmentSize = 0x4000

	// AlignBoundary is the boundary the raw image is zero-padded to
	// before the sub-header is prepended.
	AlignBoundary = 0x4000

	// MaxContentID is the fixed width of the content ID field.
	MaxContentID = 0x30

	versionMajor = 1
	versionMinor = 1

	modeCodeCEX = 1
	modeCodeDEX = 2
)

var headerMagic = []byte{'P', 'S', '2', 0}

// Header offsets. All multi-byte fields are big-endian.
const (
	offVersionMajor = 0x04
	offVersionMinor = 0x06
	offMode         = 0x08
	offDisc         = 0x0C
	offContentID    = 0x10
	offOriginalSize = 0x40
	offSegmentSize  = 0x48
	offSegmentCount = 0x4C
)

// Header describes one container. Fields are immutable once written.
type Header struct {
	VersionMajor uint16
	VersionMinor uint16
	Mode         keys.Mode
	Disc         int
	ContentID    string
	OriginalSize int64
	SegmentSize  int
	SegmentCount int
}

// BuildHeader serializes the fixed-width leading header.
func BuildHeader(h Header) ([]byte, error) {
	modeCode, err := modeCode(h.Mode)
	if err != nil {
		return nil, err
	}
	if len(h.ContentID) > MaxContentID {
		return nil, fmt.Errorf("%w: content ID longer than %d bytes", ErrFormat, MaxContentID)
	}

	buf := make([]byte, HeaderSize)
	copy(buf, headerMagic)
	binary.BigEndian.PutUint16(buf[offVersionMajor:], versionMajor)
	binary.BigEndian.PutUint16(buf[offVersionMinor:], versionMinor)
	binary.BigEndian.PutUint32(buf[offMode:], modeCode)
	binary.BigEndian.PutUint32(buf[offDisc:], uint32(h.Disc))
	copy(buf[offContentID:offContentID+MaxContentID], h.ContentID)
	binary.BigEndian.PutUint64(buf[offOriginalSize:], uint64(h.OriginalSize))
	binary.BigEndian.PutUint32(buf[offSegmentSize:], uint32(h.SegmentSize))
	binary.BigEndian.PutUint32(buf[offSegmentCount:], uint32(h.SegmentCount))
	return buf, nil
}

// ParseHeader validates and decodes a leading header.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes, want %d", ErrFormat, len(buf), HeaderSize)
	}
	if !bytes.Equal(buf[:4], headerMagic) {
		return Header{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	h := Header{
		VersionMajor: binary.BigEndian.Uint16(buf[offVersionMajor:]),
		VersionMinor: binary.BigEndian.Uint16(buf[offVersionMinor:]),
		Disc:         int(binary.BigEndian.Uint32(buf[offDisc:])),
		ContentID:    strings.TrimRight(string(buf[offContentID:offContentID+MaxContentID]), "\x00"),
		OriginalSize: int64(binary.BigEndian.Uint64(buf[offOriginalSize:])),
		SegmentSize:  int(binary.BigEndian.Uint32(buf[offSegmentSize:])),
		SegmentCount: int(binary.BigEndian.Uint32(buf[offSegmentCount:])),
	}

	if h.VersionMajor != versionMajor {
		return Header{}, fmt.Errorf("%w: unsupported version %d.%d", ErrFormat, h.VersionMajor, h.VersionMinor)
	}

	switch binary.BigEndian.Uint32(buf[offMode:]) {
	case modeCodeCEX:
		h.Mode = keys.ModeCEX
	case modeCodeDEX:
		h.Mode = keys.ModeDEX
	default:
		return Header{}, fmt.Errorf("%w: unknown mode code %d", ErrFormat, binary.BigEndian.Uint32(buf[offMode:]))
	}

	if h.SegmentSize != SegmentSize {
		return Header{}, fmt.Errorf("%w: segment size %#x, want %#x", ErrFormat, h.SegmentSize, SegmentSize)
	}
	if h.SegmentCount == 0 && h.OriginalSize > 0 {
		return Header{}, fmt.Errorf("%w: zero segments for %d payload bytes", ErrFormat, h.OriginalSize)
	}
	if h.OriginalSize > int64(h.SegmentCount)*int64(h.SegmentSize) {
		return Header{}, fmt.Errorf("%w: original size %d exceeds %d segments of %#x bytes",
			ErrFormat, h.OriginalSize, h.SegmentCount, h.SegmentSize)
	}
	if h.Disc < keys.MinDisc || h.Disc > keys.MaxDisc {
		return Header{}, fmt.Errorf("%w: disc index %d out of range", ErrFormat, h.Disc)
	}
	return h, nil
}

func modeCode(m keys.Mode) (uint32, error) {
	switch m {
	case keys.ModeCEX:
		return modeCodeCEX, nil
	case keys.ModeDEX:
		return modeCodeDEX, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", keys.ErrInvalidModeOrDisc, m)
	}
}
