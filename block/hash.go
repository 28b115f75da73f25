// Package block implements the hash and compression contracts external
// to the transfer engine: a streaming 64-bit content hash and a
// streaming per-file block compressor/decompressor.
package block

import "github.com/cespare/xxhash/v2"

// Hasher is a streaming 64-bit content hash. The same bytes fed in the
// same order produce the same Finalize() value on both peers,
// regardless of chunking.
type Hasher struct {
	digest *xxhash.Digest
}

// NewHasher returns a Hasher ready to feed.
func NewHasher() *Hasher {
	return &Hasher{digest: xxhash.New()}
}

// Reset clears all fed bytes, starting a fresh hash.
func (h *Hasher) Reset() {
	h.digest.Reset()
}

// Feed hashes the given bytes in order.
func (h *Hasher) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	_, _ = h.digest.Write(p) // xxhash.Digest.Write never errors
}

// Finalize returns the hash of every byte fed since the last Reset.
func (h *Hasher) Finalize() uint64 {
	return h.digest.Sum64()
}
