package wire

import (
	"errors"
	"fmt"
)

// Tag identifies the shape of a packet's payload. Values are stable and
// part of the wire format.
type Tag uint16

const (
	TagInvalid         Tag = 0
	TagReceiverHello   Tag = 1
	TagSenderHello     Tag = 2
	TagAcknowledged    Tag = 3
	TagCreateDirectory Tag = 4
	TagCreateFile      Tag = 5
	TagFileChunk       Tag = 6
	TagVerifyFile      Tag = 7
)

func (t Tag) String() string {
	switch t {
	case TagReceiverHello:
		return "ReceiverHello"
	case TagSenderHello:
		return "SenderHello"
	case TagAcknowledged:
		return "Acknowledged"
	case TagCreateDirectory:
		return "CreateDirectory"
	case TagCreateFile:
		return "CreateFile"
	case TagFileChunk:
		return "FileChunk"
	case TagVerifyFile:
		return "VerifyFile"
	default:
		return fmt.Sprintf("Invalid(%d)", uint16(t))
	}
}

// ErrProtocol wraps every decode-time failure: truncated payload, an
// unknown tag, or trailing bytes left after a known tag's fields were
// all read.
var ErrProtocol = errors.New("wire: protocol error")

func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// Packet is any value that can be framed over the wire.
type Packet interface {
	Tag() Tag
	encode(w *Writer)
}

// FlagCompressed is the only defined bit of CreateFile.Flags.
const FlagCompressed uint16 = 1 << 0

// ReceiverHello is the receiver's reply to SenderHello. Empty payload.
type ReceiverHello struct{}

func (ReceiverHello) Tag() Tag        { return TagReceiverHello }
func (ReceiverHello) encode(*Writer) {}

// SenderHello opens the session. Empty payload.
type SenderHello struct{}

func (SenderHello) Tag() Tag        { return TagSenderHello }
func (SenderHello) encode(*Writer) {}

// Acknowledged answers a CreateDirectory, CreateFile, or VerifyFile.
type Acknowledged struct {
	Accepted bool
}

func (Acknowledged) Tag() Tag { return TagAcknowledged }
func (p Acknowledged) encode(w *Writer) {
	var b uint8
	if p.Accepted {
		b = 1
	}
	w.WriteUint8(b)
}

// CreateDirectory asks the receiver to create a directory at Path. The
// whole frame payload after the tag is the path; there is no length
// prefix, the frame boundary delimits it.
type CreateDirectory struct {
	Path string
}

func (CreateDirectory) Tag() Tag { return TagCreateDirectory }
func (p CreateDirectory) encode(w *Writer) {
	w.WriteBytes([]byte(p.Path))
}

// CreateFile asks the receiver to open a new file for writing.
type CreateFile struct {
	Path  string
	Size  uint64
	Flags uint16
}

func (CreateFile) Tag() Tag { return TagCreateFile }
func (p CreateFile) encode(w *Writer) {
	w.WriteUint64(p.Size)
	w.WriteUint16(p.Flags)
	w.WriteBytes([]byte(p.Path))
}

// FileChunk carries a run of raw chunk bytes, possibly compressor
// output, for the file currently in flight.
type FileChunk struct {
	Data []byte
}

func (FileChunk) Tag() Tag { return TagFileChunk }
func (p FileChunk) encode(w *Writer) {
	w.WriteBytes(p.Data)
}

// VerifyFile carries the sender's finalized content hash for the file
// that was just fully streamed.
type VerifyFile struct {
	Hash uint64
}

func (VerifyFile) Tag() Tag { return TagVerifyFile }
func (p VerifyFile) encode(w *Writer) {
	w.WriteUint64(p.Hash)
}

// Encode serializes p's tag and payload into w.
func Encode(w *Writer, p Packet) {
	w.WriteUint16(uint16(p.Tag()))
	p.encode(w)
}

// Decode reads a tag and its tag-specific payload from r. The entire
// remaining payload must be consumed by the tag's decoder; any leftover
// bytes are a protocol error, as is an unrecognized tag.
func Decode(r *Reader) (Packet, error) {
	rawTag, err := r.ReadUint16()
	if err != nil {
		return nil, protocolErrorf("truncated tag: %v", err)
	}
	tag := Tag(rawTag)

	var packet Packet

	switch tag {
	case TagReceiverHello:
		packet = ReceiverHello{}
	case TagSenderHello:
		packet = SenderHello{}

	case TagAcknowledged:
		b, err := r.ReadUint8()
		if err != nil {
			return nil, protocolErrorf("Acknowledged: %v", err)
		}
		packet = Acknowledged{Accepted: b != 0}

	case TagCreateDirectory:
		packet = CreateDirectory{Path: string(r.ReadRemaining())}

	case TagCreateFile:
		size, err := r.ReadUint64()
		if err != nil {
			return nil, protocolErrorf("CreateFile: %v", err)
		}
		flags, err := r.ReadUint16()
		if err != nil {
			return nil, protocolErrorf("CreateFile: %v", err)
		}
		packet = CreateFile{
			Size:  size,
			Flags: flags,
			Path:  string(r.ReadRemaining()),
		}

	case TagFileChunk:
		packet = FileChunk{Data: r.ReadRemaining()}

	case TagVerifyFile:
		hash, err := r.ReadUint64()
		if err != nil {
			return nil, protocolErrorf("VerifyFile: %v", err)
		}
		packet = VerifyFile{Hash: hash}

	default:
		return nil, protocolErrorf("unknown packet tag %d", rawTag)
	}

	if r.Remaining() != 0 {
		return nil, protocolErrorf("%s: %d trailing bytes after decode", tag, r.Remaining())
	}

	return packet, nil
}
