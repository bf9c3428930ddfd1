// Package iso holds the ISO9660 geometry rules the PS2 Classics loader
// expects: signature validation, DVD/CD media detection and boundary
// padding arithmetic.
package iso

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MediaType identifies the physical disc format an image came from.
type MediaType uint32

const (
	MediaDVD MediaType = 1
	MediaCD  MediaType = 2
)

const (
	// SectorSizeDVD is the raw sector size of a DVD image.
	SectorSizeDVD = 0x800
	// SectorSizeCD is the raw (2352-byte) sector size of a CD image.
	SectorSizeCD = 0x930

	// dvdThreshold is the size above which an image is treated as DVD
	// media. Anything that fits on a 700 MB CD still counts as CD.
	dvdThreshold = 0x2BC00000

	// Offsets of the primary volume descriptor signature for DVD and
	// raw CD images respectively.
	sigOffsetDVD = 0x8000
	sigOffsetCD  = 0x9318
)

var (
	ErrNotISO9660 = errors.New("not an ISO9660 image")

	signature = []byte{0x01, 'C', 'D', '0', '0', '1'}
)

// MediaFor classifies an image by size and returns its sector size.
func MediaFor(size int64) (MediaType, int) {
	if size > dvdThreshold {
		return MediaDVD, SectorSizeDVD
	}
	return MediaCD, SectorSizeCD
}

func (m MediaType) String() string {
	switch m {
	case MediaDVD:
		return "dvd"
	case MediaCD:
		return "cd"
	default:
		return fmt.Sprintf("media(%d)", uint32(m))
	}
}

// PadSize returns size rounded up to the next multiple of boundary.
func PadSize(size, boundary int64) int64 {
	if boundary <= 0 {
		return size
	}
	rem := size % boundary
	if rem == 0 {
		return size
	}
	return size + boundary - rem
}

// SectorCount returns the number of whole sectors covering size bytes.
func SectorCount(size int64, sectorSize int) uint32 {
	if size <= 0 {
		return 0
	}
	return uint32((size + int64(sectorSize) - 1) / int64(sectorSize))
}

// Validate checks for the ISO9660 primary volume descriptor signature
// at the DVD offset first, then at the raw CD offset.
func Validate(r io.ReaderAt) error {
	buf := make([]byte, len(signature))
	for _, off := range []int64{sigOffsetDVD, sigOffsetCD} {
		n, err := r.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return fmt.Errorf("read descriptor at %#x: %w", off, err)
		}
		if n == len(buf) && bytes.Equal(buf, signature) {
			return nil
		}
	}
	return ErrNotISO9660
}
