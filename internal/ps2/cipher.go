package ps2

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/matheusfillipe/ps3toolbox/internal/keys"
)

// SegmentCipher encrypts and decrypts whole segments. Each segment is
// a self-contained AES-128-CBC unit: its IV is derived from the base
// IV and the segment index alone, never chained from a neighbour, so
// segments can be processed in any order and in parallel.
type SegmentCipher struct {
	block  cipher.Block
	baseIV [keys.IVSize]byte
}

// NewSegmentCipher builds a cipher from derived key material. The
// returned value is safe for concurrent use; each call allocates its
// own CBC state.
func NewSegmentCipher(m keys.Material) (*SegmentCipher, error) {
	block, err := aes.NewCipher(m.Key[:])
	if err != nil {
		return nil, fmt.Errorf("init segment cipher: %w", err)
	}
	return &SegmentCipher{block: block, baseIV: m.BaseIV}, nil
}

// IV returns the initialization vector for segment index.
func (c *SegmentCipher) IV(index int) [keys.IVSize]byte {
	iv := c.baseIV
	binary.BigEndian.PutUint64(iv[8:], binary.BigEndian.Uint64(iv[8:])^uint64(index))
	return iv
}

// Encrypt fills dst with the ciphertext of one plaintext segment.
// dst and src must both be SegmentSize long.
func (c *SegmentCipher) Encrypt(dst, src []byte, index int) error {
	if len(src) != SegmentSize || len(dst) < SegmentSize {
		return fmt.Errorf("%w: plaintext segment is %d bytes, want %#x", ErrCipher, len(src), SegmentSize)
	}
	iv := c.IV(index)
	cipher.NewCBCEncrypter(c.block, iv[:]).CryptBlocks(dst[:SegmentSize], src)
	return nil
}

// Decrypt fills dst with the plaintext of one ciphertext segment. It
// fails only on wrong-length input; tampered-but-well-sized ciphertext
// decrypts to garbage that the integrity check catches afterwards.
func (c *SegmentCipher) Decrypt(dst, src []byte, index int) error {
	if len(src) != SegmentSize || len(dst) < SegmentSize {
		return fmt.Errorf("%w: ciphertext segment is %d bytes, want %#x", ErrCipher, len(src), SegmentSize)
	}
	iv := c.IV(index)
	cipher.NewCBCDecrypter(c.block, iv[:]).CryptBlocks(dst[:SegmentSize], src)
	return nil
}
