package ps2

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/matheusfillipe/ps3toolbox/internal/iso"
)

// LimgSize is the fixed length of the LIMG sub-header block. It equals
// one segment, so the sub-header occupies exactly segment 0 of the
// plaintext payload.
const LimgSize = SegmentSize

var limgMagic = []byte{'L', 'I', 'M', 'G'}

// Limg describes the internal volume layout of the wrapped image, as
// consumed by the loader.
type Limg struct {
	Media       iso.MediaType
	SectorCount uint32
	SectorSize  int
}

// BuildLimg computes the sub-header as a pure function of the original
// image size. Geometry follows the loader's rules: media type from the
// DVD size threshold, sector count over the padded image.
func BuildLimg(originalSize int64) ([]byte, Limg) {
	media, sectorSize := iso.MediaFor(originalSize)
	padded := iso.PadSize(originalSize, AlignBoundary)

	l := Limg{
		Media:       media,
		SectorCount: iso.SectorCount(padded, sectorSize),
		SectorSize:  sectorSize,
	}

	buf := make([]byte, LimgSize)
	copy(buf, limgMagic)
	binary.BigEndian.PutUint32(buf[0x04:], uint32(l.Media))
	binary.BigEndian.PutUint32(buf[0x08:], l.SectorCount)
	binary.BigEndian.PutUint32(buf[0x0C:], uint32(l.SectorSize))
	return buf, l
}

// ParseLimg validates and decodes a sub-header. payloadSize bounds the
// image bytes the declared geometry may cover (the payload after the
// sub-header itself).
func ParseLimg(buf []byte, payloadSize int64) (Limg, error) {
	if len(buf) < 0x10 {
		return Limg{}, fmt.Errorf("%w: %d bytes", ErrMalformedSubHeader, len(buf))
	}
	if !bytes.Equal(buf[:4], limgMagic) {
		return Limg{}, fmt.Errorf("%w: bad tag", ErrMalformedSubHeader)
	}

	l := Limg{
		Media:       iso.MediaType(binary.BigEndian.Uint32(buf[0x04:])),
		SectorCount: binary.BigEndian.Uint32(buf[0x08:]),
		SectorSize:  int(binary.BigEndian.Uint32(buf[0x0C:])),
	}

	switch l.Media {
	case iso.MediaDVD, iso.MediaCD:
	default:
		return Limg{}, fmt.Errorf("%w: unknown media type %d", ErrMalformedSubHeader, l.Media)
	}
	if l.SectorSize != iso.SectorSizeDVD && l.SectorSize != iso.SectorSizeCD {
		return Limg{}, fmt.Errorf("%w: sector size %#x", ErrMalformedSubHeader, l.SectorSize)
	}

	// The declared sectors may overrun the payload by at most the
	// final partial sector introduced by boundary padding.
	covered := int64(l.SectorCount) * int64(l.SectorSize)
	if covered >= payloadSize+int64(l.SectorSize) {
		return Limg{}, fmt.Errorf("%w: %d sectors of %#x bytes exceed payload of %d bytes",
			ErrMalformedSubHeader, l.SectorCount, l.SectorSize, payloadSize)
	}
	return l, nil
}
