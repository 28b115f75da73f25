package wire

import (
	"errors"
	"math"
)

const (
	frameMagic      = 0xF150CCC2
	frameHeaderSize = 8
	// FrameMaxSize is the largest frame either peer will send or accept.
	FrameMaxSize = 8 * 1024 * 1024
)

// ErrFrameTooLarge is returned by Framer.Finalize when the prepared
// frame would exceed FrameMaxSize, or carries no payload after its header.
var ErrFrameTooLarge = errors.New("wire: frame size out of bounds")

// Framer builds one outbound frame at a time: Prepare returns a Writer
// positioned after a reserved header, the caller serializes a packet
// into it, then Finalize patches the length and returns the full frame.
type Framer struct {
	buf *Writer
}

// Prepare resets the framer and returns a Writer ready for payload bytes.
func (f *Framer) Prepare() *Writer {
	f.buf = NewWriterSize(frameHeaderSize)
	f.buf.WriteUint32(frameMagic)
	f.buf.WriteUint32(math.MaxUint32) // patched in Finalize
	return f.buf
}

// Finalize patches the total length into the reserved header and
// returns the complete frame. It fails if the final size is outside
// (frameHeaderSize, FrameMaxSize].
func (f *Framer) Finalize() ([]byte, error) {
	total := f.buf.Len()
	if total <= frameHeaderSize || total > FrameMaxSize {
		return nil, ErrFrameTooLarge
	}

	b := f.buf.Bytes()
	size := NewWriter()
	size.WriteUint32(uint32(total))
	copy(b[4:8], size.Bytes())

	return b, nil
}

// ReassemblerResult is the outcome of one Reassembler.Update call.
type ReassemblerResult int

const (
	// NeedMoreData means the caller must receive more bytes before
	// another frame can be decoded.
	NeedMoreData ReassemblerResult = iota
	// ReceivedFrame means a full frame was decoded; its payload reader
	// is returned alongside this result.
	ReceivedFrame
	// MalformedStream means the byte stream can never be parsed as
	// frames again; the connection must be torn down.
	MalformedStream
)

// Reassembler turns an inbound byte stream into frames. The buffer only
// ever grows; discarding a frame shifts the remaining tail forward.
type Reassembler struct {
	buf              []byte
	usedSize         int
	receiveWindow    int
	pendingFrameSize int
}

const defaultReceiveWindow = 16 * 1024
const noPendingFrame = -1

// NewReassembler returns a Reassembler ready to receive.
func NewReassembler() *Reassembler {
	return &Reassembler{
		receiveWindow:    defaultReceiveWindow,
		pendingFrameSize: noPendingFrame,
	}
}

// PrepareReceiveBuffer returns a writable span of at least receiveWindow
// bytes past the current valid tail, growing the buffer if necessary.
func (r *Reassembler) PrepareReceiveBuffer() []byte {
	remaining := len(r.buf) - r.usedSize
	if remaining < r.receiveWindow {
		r.buf = append(r.buf, make([]byte, r.receiveWindow-remaining)...)
	}
	return r.buf[r.usedSize : r.usedSize+r.receiveWindow]
}

// Commit marks n bytes, just written into the span PrepareReceiveBuffer
// returned, as received.
func (r *Reassembler) Commit(n int) {
	r.usedSize += n
}

// Update attempts to parse the next frame out of the buffered bytes.
func (r *Reassembler) Update() (ReassemblerResult, *Reader) {
	received := r.buf[:r.usedSize]

	if r.pendingFrameSize == noPendingFrame && len(received) >= frameHeaderSize {
		header := NewReader(received[:frameHeaderSize])

		magic, _ := header.ReadUint32()
		if magic != frameMagic {
			return MalformedStream, nil
		}

		size, _ := header.ReadUint32()
		if size <= frameHeaderSize || size > FrameMaxSize {
			return MalformedStream, nil
		}

		r.pendingFrameSize = int(size)
		if r.pendingFrameSize > r.receiveWindow {
			r.receiveWindow = r.pendingFrameSize
		}
	}

	if r.pendingFrameSize != noPendingFrame && len(received) >= r.pendingFrameSize {
		payload := received[frameHeaderSize:r.pendingFrameSize]
		return ReceivedFrame, NewReader(payload)
	}

	return NeedMoreData, nil
}

// DiscardFrame shifts the buffered tail forward past the most recently
// parsed frame and clears the pending-size slot.
func (r *Reassembler) DiscardFrame() {
	received := r.buf[:r.usedSize]

	if r.pendingFrameSize != noPendingFrame && len(received) >= r.pendingFrameSize {
		leftover := len(received) - r.pendingFrameSize
		copy(received, received[r.pendingFrameSize:])
		r.usedSize = leftover
		r.pendingFrameSize = noPendingFrame
	}
}
