package ps2

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat reports a container header that cannot be trusted:
	// bad magic, unsupported version or structurally impossible sizing.
	ErrFormat = errors.New("invalid container format")

	// ErrMalformedSubHeader reports a LIMG sub-header with a bad tag
	// or geometry that exceeds the enclosing payload.
	ErrMalformedSubHeader = errors.New("malformed LIMG sub-header")

	// ErrTruncatedStream reports a container that ended before the
	// segment count promised by its header.
	ErrTruncatedStream = errors.New("truncated container stream")

	// ErrCipher reports ciphertext whose length is not a whole segment.
	ErrCipher = errors.New("malformed ciphertext")
)

// IntegrityError reports a digest mismatch on one decrypted segment.
// It is fatal for the file: the recovered bytes cannot be trusted.
type IntegrityError struct {
	Segment int
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed on segment %d", e.Segment)
}
