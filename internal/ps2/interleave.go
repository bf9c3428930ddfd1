package ps2

import (
	"errors"
	"fmt"
	"io"
)

// PairSize is the on-disk stride of one (meta block, ciphertext) pair.
const PairSize = MetaBlockSize + SegmentSize

// ContainerSize returns the total byte length of a container holding
// segmentCount segments.
func ContainerSize(segmentCount int) int64 {
	return HeaderSize + int64(segmentCount)*PairSize
}

// WritePair appends one (meta block, ciphertext) pair to w.
func WritePair(w io.Writer, meta [MetaBlockSize]byte, ciphertext []byte) error {
	if _, err := w.Write(meta[:]); err != nil {
		return fmt.Errorf("write meta block: %w", err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return fmt.Errorf("write segment: %w", err)
	}
	return nil
}

// PairReader walks a container stream after the header, yielding
// (meta block, ciphertext) pairs in index order.
type PairReader struct {
	r         io.Reader
	remaining int
	next      int
}

// NewPairReader positions a reader over segmentCount pairs. r must
// already be past the leading header.
func NewPairReader(r io.Reader, segmentCount int) *PairReader {
	return &PairReader{r: r, remaining: segmentCount}
}

// Remaining reports how many pairs have not been read yet.
func (p *PairReader) Remaining() int { return p.remaining }

// Next reads the next pair into ciphertext, which must be SegmentSize
// long. It returns the pair's index, or ErrTruncatedStream when the
// stream ends before the promised segment count.
func (p *PairReader) Next(ciphertext []byte) (meta [MetaBlockSize]byte, index int, err error) {
	if p.remaining == 0 {
		return meta, 0, io.EOF
	}
	if len(ciphertext) != SegmentSize {
		return meta, 0, fmt.Errorf("%w: pair buffer is %d bytes", ErrCipher, len(ciphertext))
	}

	if _, err := io.ReadFull(p.r, meta[:]); err != nil {
		return meta, 0, truncated(p.next, err)
	}
	if _, err := io.ReadFull(p.r, ciphertext); err != nil {
		return meta, 0, truncated(p.next, err)
	}

	index = p.next
	p.next++
	p.remaining--
	return meta, index, nil
}

func truncated(index int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: stream ended at segment %d", ErrTruncatedStream, index)
	}
	return fmt.Errorf("read segment %d: %w", index, err)
}
