// Package digest implements the Digester (spec.md §4.2): partial and full
// content digests over a file, plus an optional cross-run cache.
//
// Grounded on the teacher's internal/verifier.hashRange (chunked
// io.CopyBuffer into a hash) for the read loop, and internal/cache.Cache
// (self-cleaning BoltDB read-old/write-new swap) for the cache — rekeyed
// here from byte-range progressive verification to the spec's fixed
// two-stage model (one cache entry per (path, size, mtime, stage)).
package digest

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jdoe/dupescan/internal/model"
)

// blockSize is the read buffer size used for partial digest reads, and for
// full digest reads when no positive chunk size is given.
const blockSize = 64 * 1024

// ErrVanished indicates the file disappeared between discovery and read.
var ErrVanished = errors.New("file vanished")

// Partial computes a digest over the first min(size, partialSize) bytes of
// path, per spec.md §4.2. Reading fewer bytes than requested (EOF) is not
// an error — the digest covers whatever was actually read.
func Partial(path string, partialSize int64) (model.PartialDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.PartialDigest{}, classifyOpenErr(err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, io.LimitReader(f, partialSize), buf); err != nil {
		return model.PartialDigest{}, fmt.Errorf("read %s: %w", path, err)
	}
	var out model.PartialDigest
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Full computes a digest over the entire content of path, reading it in
// chunkSize-sized reads (blockSize when chunkSize is not positive). Chunk
// size does not affect the digest value for a streaming hash —
// sha256.New() is exactly that, so chunkSize only governs I/O
// granularity, not the result.
func Full(path string, chunkSize int64) (model.FullDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.FullDigest{}, classifyOpenErr(err)
	}
	defer func() { _ = f.Close() }()

	if chunkSize <= 0 {
		chunkSize = blockSize
	}
	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.FullDigest{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	var out model.FullDigest
	copy(out[:], h.Sum(nil))
	return out, nil
}

func classifyOpenErr(err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrVanished, err)
	}
	return err
}
