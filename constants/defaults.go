// Package constants holds protocol and tooling defaults shared by the
// sender and receiver.
package constants

const (
	// DefaultPort is the fixed port both peers agree on when none is given.
	DefaultPort = 6969

	// ReadBlockSize is how much the sender reads from disk per iteration
	// of the upload loop.
	ReadBlockSize = 128 * 1024

	// CompressedFlushThreshold is how much compressed output the sender
	// coalesces before shipping a FileChunk for a compressed upload.
	CompressedFlushThreshold = 64 * 1024

	// DefaultDestinationDir is where fxrecv writes files when none is given.
	DefaultDestinationDir = "received"
)
