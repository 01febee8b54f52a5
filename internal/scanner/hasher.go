package scanner

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	sharedErrors "github.com/khanhnv2901/webapp-tripwire/internal/shared/errors"
)

const (
	hashBufferSmallSize      = 32 * 1024
	hashBufferLargeSize      = 128 * 1024
	hashLargeBufferThreshold = 256 * 1024
)

// Hasher computes MD5 content digests, the format reference checksums are
// published in. Read buffers are pooled so a scan of a large tree does not
// allocate one per file.
type Hasher struct {
	small sync.Pool
	large sync.Pool
}

// NewHasher returns a Hasher with empty buffer pools.
func NewHasher() *Hasher {
	return &Hasher{
		small: sync.Pool{New: func() any {
			buf := make([]byte, hashBufferSmallSize)
			return &buf
		}},
		large: sync.Pool{New: func() any {
			buf := make([]byte, hashBufferLargeSize)
			return &buf
		}},
	}
}

// File returns the hex MD5 of the file at path. Open and read failures are
// wrapped in ErrUnreadable.
func (h *Hasher) File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", sharedErrors.ErrUnreadable, err)
	}
	defer f.Close()

	pool := &h.small
	if info, statErr := f.Stat(); statErr == nil && info.Size() >= hashLargeBufferThreshold {
		pool = &h.large
	}
	bufPtr := pool.Get().(*[]byte)
	defer pool.Put(bufPtr)

	return h.stream(f, *bufPtr)
}

// Reader returns the hex MD5 of everything read from r.
func (h *Hasher) Reader(r io.Reader) (string, error) {
	bufPtr := h.small.Get().(*[]byte)
	defer h.small.Put(bufPtr)
	return h.stream(r, *bufPtr)
}

func (h *Hasher) stream(r io.Reader, buf []byte) (string, error) {
	sum := md5.New()
	if _, err := io.CopyBuffer(sum, r, buf); err != nil {
		return "", fmt.Errorf("%w: %w", sharedErrors.ErrUnreadable, err)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
