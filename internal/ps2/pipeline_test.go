package ps2

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusfillipe/ps3toolbox/internal/keys"
)

func randomImage(t *testing.T, size int64) []byte {
	t.Helper()
	buf := make([]byte, size)
	rand.New(rand.NewSource(size + 1)).Read(buf)
	return buf
}

func encodeImage(t *testing.T, image []byte, opts EncodeOptions) []byte {
	t.Helper()
	var out bytes.Buffer
	_, err := Encode(context.Background(), &out, bytes.NewReader(image), int64(len(image)), opts)
	require.NoError(t, err)
	return out.Bytes()
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sizes := []int64{0, 1, AlignBoundary, AlignBoundary + 1, 3*AlignBoundary - 17}
	modes := []keys.Mode{keys.ModeCEX, keys.ModeDEX}

	for _, mode := range modes {
		for _, size := range sizes {
			for disc := 1; disc <= 2; disc++ {
				image := randomImage(t, size)
				container := encodeImage(t, image, EncodeOptions{Mode: mode, Disc: disc})

				var decoded bytes.Buffer
				header, err := Decode(context.Background(), &decoded, bytes.NewReader(container), DecodeOptions{})
				require.NoError(t, err, "mode=%s disc=%d size=%d", mode, disc, size)

				assert.Equal(t, mode, header.Mode)
				assert.Equal(t, disc, header.Disc)
				assert.Equal(t, size, header.OriginalSize)
				assert.Equal(t, image, decoded.Bytes(), "mode=%s disc=%d size=%d", mode, disc, size)
			}
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	image := randomImage(t, 2*AlignBoundary+123)
	opts := EncodeOptions{Mode: keys.ModeCEX, Disc: 1}

	assert.Equal(t, encodeImage(t, image, opts), encodeImage(t, image, opts))
}

func TestEncode_ParallelEquivalence(t *testing.T) {
	image := randomImage(t, 7*AlignBoundary+999)

	serial := encodeImage(t, image, EncodeOptions{Mode: keys.ModeDEX, Disc: 2, Workers: 1})
	parallel := encodeImage(t, image, EncodeOptions{Mode: keys.ModeDEX, Disc: 2, Workers: 8})

	assert.Equal(t, serial, parallel)
}

func TestEncode_SizingArithmetic(t *testing.T) {
	// An image of exactly one alignment boundary pads to itself and
	// gains only the sub-header segment.
	image := randomImage(t, AlignBoundary)
	container := encodeImage(t, image, EncodeOptions{Mode: keys.ModeCEX, Disc: 1})

	header, err := Inspect(bytes.NewReader(container))
	require.NoError(t, err)
	assert.Equal(t, 2, header.SegmentCount)
	assert.Equal(t, ContainerSize(header.SegmentCount), int64(len(container)))
}

func TestDecode_TamperDetection(t *testing.T) {
	image := randomImage(t, 2*AlignBoundary)
	container := encodeImage(t, image, EncodeOptions{Mode: keys.ModeCEX, Disc: 1})

	// Flip one bit in each ciphertext segment in turn.
	for seg := 0; seg < 3; seg++ {
		tampered := append([]byte(nil), container...)
		off := HeaderSize + seg*PairSize + MetaBlockSize + 1000 + seg
		tampered[off] ^= 0x01

		var decoded bytes.Buffer
		_, err := Decode(context.Background(), &decoded, bytes.NewReader(tampered), DecodeOptions{})

		var integrity *IntegrityError
		require.ErrorAs(t, err, &integrity, "segment %d", seg)
		assert.Equal(t, seg, integrity.Segment)
	}
}

func TestDecode_TamperedMetaIndex(t *testing.T) {
	image := randomImage(t, AlignBoundary)
	container := encodeImage(t, image, EncodeOptions{Mode: keys.ModeCEX, Disc: 1})

	tampered := append([]byte(nil), container...)
	tampered[HeaderSize+PairSize+offMetaIndex+3] ^= 0xFF

	var decoded bytes.Buffer
	_, err := Decode(context.Background(), &decoded, bytes.NewReader(tampered), DecodeOptions{})

	var integrity *IntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestDecode_TruncatedAndCorruptHeader(t *testing.T) {
	image := randomImage(t, AlignBoundary+1)
	container := encodeImage(t, image, EncodeOptions{Mode: keys.ModeCEX, Disc: 1})

	t.Run("truncated after header", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Decode(context.Background(), &out, bytes.NewReader(container[:HeaderSize]), DecodeOptions{})
		assert.ErrorIs(t, err, ErrTruncatedStream)
	})

	t.Run("truncated mid pair", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Decode(context.Background(), &out, bytes.NewReader(container[:HeaderSize+PairSize+100]), DecodeOptions{})
		assert.ErrorIs(t, err, ErrTruncatedStream)
	})

	t.Run("empty stream", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Decode(context.Background(), &out, bytes.NewReader(nil), DecodeOptions{})
		assert.ErrorIs(t, err, ErrTruncatedStream)
	})

	t.Run("corrupt magic", func(t *testing.T) {
		bad := append([]byte(nil), container...)
		bad[0] = 'X'
		var out bytes.Buffer
		_, err := Decode(context.Background(), &out, bytes.NewReader(bad), DecodeOptions{})
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("corrupt version", func(t *testing.T) {
		bad := append([]byte(nil), container...)
		bad[offVersionMajor] = 0x7f
		var out bytes.Buffer
		_, err := Decode(context.Background(), &out, bytes.NewReader(bad), DecodeOptions{})
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestDecode_WrongModeFailsIntegrity(t *testing.T) {
	// A container re-keyed under the wrong mode decrypts to garbage;
	// the integrity layer is what reports it.
	image := randomImage(t, AlignBoundary)
	container := encodeImage(t, image, EncodeOptions{Mode: keys.ModeCEX, Disc: 1})

	bad := append([]byte(nil), container...)
	bad[offMode+3] = modeCodeDEX

	var out bytes.Buffer
	_, err := Decode(context.Background(), &out, bytes.NewReader(bad), DecodeOptions{})

	var integrity *IntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestEncode_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	image := randomImage(t, AlignBoundary)
	var out bytes.Buffer
	_, err := Encode(ctx, &out, bytes.NewReader(image), int64(len(image)), EncodeOptions{Mode: keys.ModeCEX, Disc: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncode_ProgressReachesTotal(t *testing.T) {
	image := randomImage(t, 2*AlignBoundary+5)

	var last, total int64
	var out bytes.Buffer
	_, err := Encode(context.Background(), &out, bytes.NewReader(image), int64(len(image)), EncodeOptions{
		Mode: keys.ModeCEX,
		Disc: 1,
		Progress: func(current, t int64) {
			last, total = current, t
		},
	})
	require.NoError(t, err)
	assert.Equal(t, total, last)
	assert.Equal(t, int64(LimgSize+3*AlignBoundary), total)
}
