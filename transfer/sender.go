package transfer

import (
	"fmt"
	"os"

	"fastxfer/block"
	"fastxfer/constants"
	"fastxfer/conn"
	"fastxfer/listing"
	"fastxfer/wire"
)

type senderState int

const (
	senderWaitingForHello senderState = iota
	senderIdle
	senderWaitingForDirAck
	senderWaitingForFileAck
	senderWaitingForUploadAck
	senderFinished
)

type upload struct {
	file *os.File

	virtualPath string
	fsPath      string
	fileSize    uint64
	compressed  bool
}

// Sender drives the sender-side state machine over one Connection:
// walk a listing, create directories, upload files in chunks
// (optionally compressed), and verify each one by hash.
type Sender struct {
	entries      []listing.Entry
	currentEntry int

	state  senderState
	upload *upload

	hasher     *block.Hasher
	compressor *block.Compressor

	chunkBuf []byte

	shouldCompress func(fsPath string, size uint64) bool
	progress       *Progress

	lastErr error
}

// NewSender returns a Sender ready to start once wrapped in a
// conn.Connection. shouldCompress decides, per file, whether its
// upload offers compression; pass nil to never compress.
func NewSender(entries []listing.Entry, shouldCompress func(fsPath string, size uint64) bool, progress *Progress) *Sender {
	return &Sender{
		entries:        entries,
		state:          senderWaitingForHello,
		hasher:         block.NewHasher(),
		compressor:     block.NewCompressor(),
		chunkBuf:       make([]byte, constants.ReadBlockSize),
		shouldCompress: shouldCompress,
		progress:       progress,
	}
}

// Start sends the opening SenderHello. Call this once, immediately
// after wrapping the Sender in a conn.Connection.
func (s *Sender) Start(c *conn.Connection) error {
	return c.Send(wire.SenderHello{})
}

// Finished reports whether the sender has walked every listing entry
// and the connection has reached its terminal state.
func (s *Sender) Finished() bool {
	return s.state == senderFinished
}

// LastError returns the error that ended the transfer, if any.
func (s *Sender) LastError() error {
	return s.lastErr
}

// OnTransportError implements conn.Handler.
func (s *Sender) OnTransportError(_ *conn.Connection, err error) {
	s.lastErr = err
}

// OnProtocolError implements conn.Handler.
func (s *Sender) OnProtocolError(_ *conn.Connection, err error) {
	s.lastErr = err
}

// OnDisconnected implements conn.Handler.
func (s *Sender) OnDisconnected(_ *conn.Connection) {}

// OnPacket implements conn.Handler.
func (s *Sender) OnPacket(c *conn.Connection, packet wire.Packet) error {
	switch p := packet.(type) {
	case wire.ReceiverHello:
		return s.onReceiverHello(c)
	case wire.Acknowledged:
		return s.onAcknowledged(c, p)
	default:
		return fmt.Errorf("%w: unexpected %s packet in state %d", wire.ErrProtocol, packet.Tag(), s.state)
	}
}

func (s *Sender) onReceiverHello(c *conn.Connection) error {
	if s.state != senderWaitingForHello {
		return fmt.Errorf("%w: unexpected ReceiverHello", wire.ErrProtocol)
	}
	s.state = senderIdle
	return s.advance(c)
}

func (s *Sender) onAcknowledged(c *conn.Connection, p wire.Acknowledged) error {
	switch s.state {
	case senderWaitingForDirAck:
		if !p.Accepted {
			return fmt.Errorf("%w: receiver rejected directory creation", wire.ErrProtocol)
		}
		s.state = senderIdle
		return s.advance(c)

	case senderWaitingForFileAck:
		if !p.Accepted {
			return fmt.Errorf("%w: receiver rejected file creation", wire.ErrProtocol)
		}
		return s.uploadAcceptedFile(c)

	case senderWaitingForUploadAck:
		if !p.Accepted {
			return fmt.Errorf("%w: receiver rejected upload (integrity check failed)", wire.ErrProtocol)
		}
		s.state = senderIdle
		return s.advance(c)

	default:
		return fmt.Errorf("%w: unexpected Acknowledged", wire.ErrProtocol)
	}
}

// advance consumes the next listing entry and drives the corresponding
// request, or finishes the transfer once the listing is exhausted.
func (s *Sender) advance(c *conn.Connection) error {
	if s.currentEntry >= len(s.entries) {
		s.state = senderFinished
		c.SetNotAlive()
		return nil
	}

	entry := s.entries[s.currentEntry]
	s.currentEntry++

	if entry.Kind == listing.Directory {
		return s.createDirectory(c, entry.RelativePath)
	}
	return s.startFileUpload(c, entry.RelativePath, entry.AbsolutePath)
}

func (s *Sender) createDirectory(c *conn.Connection, virtualPath string) error {
	if err := c.Send(wire.CreateDirectory{Path: virtualPath}); err != nil {
		return nil
	}
	s.state = senderWaitingForDirAck
	return nil
}

func (s *Sender) startFileUpload(c *conn.Connection, virtualPath, fsPath string) error {
	file, err := os.Open(fsPath)
	if err != nil {
		return fmt.Errorf("%w: open %q: %v", wire.ErrProtocol, fsPath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: stat %q: %v", wire.ErrProtocol, fsPath, err)
	}
	size := uint64(info.Size())

	compressed := s.shouldCompress != nil && s.shouldCompress(fsPath, size)

	var flags uint16
	if compressed {
		flags |= wire.FlagCompressed
	}

	if err := c.Send(wire.CreateFile{Path: virtualPath, Size: size, Flags: flags}); err != nil {
		file.Close()
		return nil
	}

	s.state = senderWaitingForFileAck
	s.upload = &upload{
		file:        file,
		virtualPath: virtualPath,
		fsPath:      fsPath,
		fileSize:    size,
		compressed:  compressed,
	}
	s.progress.begin(virtualPath, size, compressed)

	return nil
}

// uploadAcceptedFile runs the whole chunk loop synchronously within the
// Acknowledged handler: read, optionally compress, send, repeat until
// EOF, then verify by hash. This mirrors the read-compress-send loop a
// single-threaded connection must use rather than a suspended
// coroutine.
func (s *Sender) uploadAcceptedFile(c *conn.Connection) error {
	up := s.upload
	defer func() {
		up.file.Close()
		s.upload = nil
	}()

	s.hasher.Reset()
	if up.compressed {
		s.compressor.Reset()
	}

	var coalesced []byte
	var pendingPlain int

	flush := func() error {
		if len(coalesced) == 0 {
			return nil
		}
		if err := c.Send(wire.FileChunk{Data: coalesced}); err != nil {
			return err
		}
		s.progress.chunk(pendingPlain)
		coalesced = nil
		pendingPlain = 0
		return nil
	}

	var totalRead uint64
	for totalRead < up.fileSize {
		n, err := up.file.Read(s.chunkBuf)
		if n == 0 && err != nil {
			return fmt.Errorf("%w: read %q: %v", wire.ErrProtocol, up.fsPath, err)
		}
		totalRead += uint64(n)

		chunk := s.chunkBuf[:n]
		s.hasher.Feed(chunk)

		if !up.compressed {
			if err := c.Send(wire.FileChunk{Data: chunk}); err != nil {
				return nil
			}
			s.progress.chunk(len(chunk))
			continue
		}

		isLast := totalRead == up.fileSize
		out, err := s.compressor.Compress(chunk, isLast)
		if err != nil {
			return fmt.Errorf("%w: compress %q: %v", wire.ErrProtocol, up.fsPath, err)
		}
		coalesced = append(coalesced, out...)
		pendingPlain += len(chunk)

		if len(coalesced) >= constants.CompressedFlushThreshold {
			if err := flush(); err != nil {
				return nil
			}
		}
	}

	if up.compressed {
		if err := flush(); err != nil {
			return nil
		}
	}

	hash := s.hasher.Finalize()
	if err := c.Send(wire.VerifyFile{Hash: hash}); err != nil {
		return nil
	}

	s.progress.end()
	s.state = senderWaitingForUploadAck
	return nil
}
