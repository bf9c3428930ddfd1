package ps2

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairReader_WalksInOrder(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 3; i++ {
		seg := randomSegment(int64(i))
		require.NoError(t, WritePair(&stream, BuildMetaBlock(seg, 1, i), seg))
	}

	pr := NewPairReader(&stream, 3)
	buf := make([]byte, SegmentSize)
	for i := 0; i < 3; i++ {
		meta, index, err := pr.Next(buf)
		require.NoError(t, err)
		assert.Equal(t, i, index)
		assert.Equal(t, i, MetaSegmentIndex(meta))
	}

	_, _, err := pr.Next(buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, pr.Remaining())
}

func TestPairReader_Truncated(t *testing.T) {
	var stream bytes.Buffer
	seg := randomSegment(1)
	require.NoError(t, WritePair(&stream, BuildMetaBlock(seg, 1, 0), seg))

	tests := []struct {
		name string
		cut  int
	}{
		{"empty stream", stream.Len()},
		{"inside meta block", stream.Len() - MetaBlockSize/2 - SegmentSize},
		{"inside segment", SegmentSize / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			short := stream.Bytes()[:stream.Len()-tt.cut]
			pr := NewPairReader(bytes.NewReader(short), 1)
			_, _, err := pr.Next(make([]byte, SegmentSize))
			assert.ErrorIs(t, err, ErrTruncatedStream)
		})
	}
}

func TestContainerSize(t *testing.T) {
	assert.Equal(t, int64(HeaderSize), ContainerSize(0))
	assert.Equal(t, int64(HeaderSize+2*PairSize), ContainerSize(2))
}
