package ps2

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
)

const (
	// MetaBlockSize is the fixed length of the integrity block stored
	// immediately before each ciphertext segment.
	MetaBlockSize = 0x20

	// DigestSize is the SHA-1 digest length.
	DigestSize = sha1.Size

	// offMetaIndex holds the big-endian (disc-1)<<24 | segment word
	// that follows the digest.
	offMetaIndex = 0x14
)

// Digest returns the integrity digest of one plaintext segment.
func Digest(plaintext []byte) [DigestSize]byte {
	return sha1.Sum(plaintext)
}

// BuildMetaBlock assembles the meta block for segment index of the
// given disc: plaintext digest, then the disc/segment word, then
// reserved zero padding.
func BuildMetaBlock(plaintext []byte, disc, index int) [MetaBlockSize]byte {
	var m [MetaBlockSize]byte
	sum := Digest(plaintext)
	copy(m[:], sum[:])
	binary.BigEndian.PutUint32(m[offMetaIndex:], uint32(disc-1)<<24|uint32(index))
	return m
}

// VerifyMetaBlock checks a decrypted segment against its meta block.
func VerifyMetaBlock(meta [MetaBlockSize]byte, plaintext []byte) bool {
	sum := Digest(plaintext)
	return subtle.ConstantTimeCompare(meta[:DigestSize], sum[:]) == 1
}

// MetaSegmentIndex extracts the segment index recorded in a meta block.
func MetaSegmentIndex(meta [MetaBlockSize]byte) int {
	return int(binary.BigEndian.Uint32(meta[offMetaIndex:]) & 0x00FFFFFF)
}

// MetaDisc extracts the 1-based disc number recorded in a meta block.
func MetaDisc(meta [MetaBlockSize]byte) int {
	return int(meta[offMetaIndex]) + 1
}
