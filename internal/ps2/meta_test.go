package ps2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetaBlock_VerifyAndFields(t *testing.T) {
	plain := randomSegment(9)

	meta := BuildMetaBlock(plain, 3, 0x1234)

	assert.True(t, VerifyMetaBlock(meta, plain))
	assert.Equal(t, 0x1234, MetaSegmentIndex(meta))
	assert.Equal(t, 3, MetaDisc(meta))
}

func TestMetaBlock_MismatchOnChangedPlaintext(t *testing.T) {
	plain := randomSegment(10)
	meta := BuildMetaBlock(plain, 1, 0)

	plain[0] ^= 0x80
	assert.False(t, VerifyMetaBlock(meta, plain))
}

func TestMetaBlock_ReservedTailIsZero(t *testing.T) {
	meta := BuildMetaBlock(randomSegment(11), 1, 1)
	for i := offMetaIndex + 4; i < MetaBlockSize; i++ {
		assert.Zero(t, meta[i], "byte %#x", i)
	}
}
