package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"fastxfer/block"
	"fastxfer/conn"
	"fastxfer/wire"
)

type receiverState int

const (
	receiverWaitingForHello receiverState = iota
	receiverIdle
	receiverDownloading
	receiverWaitingForHash
)

type download struct {
	file *os.File

	virtualPath string
	fsPath      string
	fileSize    uint64
	received    uint64
	compressed  bool
}

// Receiver drives the receiver-side state machine over one Connection:
// reply to the handshake, create directories, and accept files in
// chunks (optionally compressed), verifying each by hash before
// acknowledging it.
type Receiver struct {
	root string

	state    receiverState
	download *download

	hasher       *block.Hasher
	decompressor *block.Decompressor

	progress *Progress

	lastErr error
}

// NewReceiver returns a Receiver that writes every accepted file under
// root.
func NewReceiver(root string, progress *Progress) *Receiver {
	return &Receiver{
		root:         root,
		state:        receiverWaitingForHello,
		hasher:       block.NewHasher(),
		decompressor: block.NewDecompressor(),
		progress:     progress,
	}
}

// LastError returns the error that ended the session, if any.
func (r *Receiver) LastError() error {
	return r.lastErr
}

// OnTransportError implements conn.Handler. There is no closing packet:
// the sender ends a completed transfer by closing its side, so the
// transport ending while Idle (nothing in flight, nothing awaited) is
// the normal end of the session and is not recorded as an error.
func (r *Receiver) OnTransportError(_ *conn.Connection, err error) {
	if r.state == receiverIdle {
		return
	}
	r.lastErr = err
}

// OnProtocolError implements conn.Handler.
func (r *Receiver) OnProtocolError(_ *conn.Connection, err error) {
	r.lastErr = err
}

// OnDisconnected implements conn.Handler. If a download was in flight
// when the connection died, its partially written destination file is
// unlinked: a broken transfer never leaves a partial file behind.
func (r *Receiver) OnDisconnected(_ *conn.Connection) {
	if r.download != nil {
		down := r.download
		r.download = nil
		down.file.Close()
		os.Remove(down.fsPath)
	}
}

// OnPacket implements conn.Handler.
func (r *Receiver) OnPacket(c *conn.Connection, packet wire.Packet) error {
	switch p := packet.(type) {
	case wire.SenderHello:
		return r.onSenderHello(c)
	case wire.CreateDirectory:
		return r.onCreateDirectory(c, p)
	case wire.CreateFile:
		return r.onCreateFile(c, p)
	case wire.FileChunk:
		return r.onFileChunk(c, p)
	case wire.VerifyFile:
		return r.onVerifyFile(c, p)
	default:
		return fmt.Errorf("%w: unexpected %s packet in state %d", wire.ErrProtocol, packet.Tag(), r.state)
	}
}

func (r *Receiver) onSenderHello(c *conn.Connection) error {
	if r.state != receiverWaitingForHello {
		return fmt.Errorf("%w: unexpected SenderHello", wire.ErrProtocol)
	}
	if err := c.Send(wire.ReceiverHello{}); err != nil {
		return nil
	}
	r.state = receiverIdle
	return nil
}

func (r *Receiver) onCreateDirectory(c *conn.Connection, p wire.CreateDirectory) error {
	if r.state != receiverIdle {
		return fmt.Errorf("%w: unexpected CreateDirectory", wire.ErrProtocol)
	}

	accepted := r.createDirectory(p.Path) == nil
	return c.Send(wire.Acknowledged{Accepted: accepted})
}

func (r *Receiver) createDirectory(virtualPath string) error {
	fsPath, err := toFSPath(r.root, virtualPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(fsPath, 0o755)
}

func (r *Receiver) onCreateFile(c *conn.Connection, p wire.CreateFile) error {
	if r.state != receiverIdle {
		return fmt.Errorf("%w: unexpected CreateFile", wire.ErrProtocol)
	}
	if p.Flags&^wire.FlagCompressed != 0 {
		return fmt.Errorf("%w: CreateFile has unknown flag bits set (0x%04x)", wire.ErrProtocol, p.Flags)
	}

	err := r.startFileDownload(p.Path, p.Size, p.Flags&wire.FlagCompressed != 0)
	if err := c.Send(wire.Acknowledged{Accepted: err == nil}); err != nil {
		return nil
	}
	if err != nil {
		return nil
	}

	if p.Size == 0 {
		return r.finishDownload(c)
	}
	return nil
}

func (r *Receiver) startFileDownload(virtualPath string, size uint64, compressed bool) error {
	fsPath, err := toFSPath(r.root, virtualPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(fsPath); err == nil {
		return fmt.Errorf("path %q already exists", fsPath)
	}

	if err := os.MkdirAll(filepath.Dir(fsPath), 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(fsPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	r.hasher.Reset()
	if compressed {
		r.decompressor.Reset()
	}

	r.state = receiverDownloading
	r.download = &download{
		file:        file,
		virtualPath: virtualPath,
		fsPath:      fsPath,
		fileSize:    size,
		compressed:  compressed,
	}
	r.progress.begin(virtualPath, size, compressed)

	return nil
}

func (r *Receiver) onFileChunk(c *conn.Connection, p wire.FileChunk) error {
	if r.state != receiverDownloading {
		return fmt.Errorf("%w: unexpected FileChunk", wire.ErrProtocol)
	}

	down := r.download

	var plain []byte
	if down.compressed {
		var err error
		plain, err = r.decompressor.Feed(p.Data)
		if err != nil {
			return fmt.Errorf("%w: decompress %q: %v", wire.ErrProtocol, down.virtualPath, err)
		}
	} else {
		plain = p.Data
	}

	if len(plain) > 0 {
		if _, err := down.file.Write(plain); err != nil {
			return fmt.Errorf("%w: write %q: %v", wire.ErrProtocol, down.fsPath, err)
		}
		r.hasher.Feed(plain)
		down.received += uint64(len(plain))
		r.progress.chunk(len(plain))
	}

	if down.received > down.fileSize {
		return fmt.Errorf("%w: got more data for %q than declared", wire.ErrProtocol, down.virtualPath)
	}

	if down.received == down.fileSize {
		r.state = receiverWaitingForHash
	}

	return nil
}

func (r *Receiver) onVerifyFile(c *conn.Connection, p wire.VerifyFile) error {
	if r.state != receiverWaitingForHash {
		return fmt.Errorf("%w: unexpected VerifyFile", wire.ErrProtocol)
	}

	down := r.download
	r.download = nil

	closeErr := down.file.Close()
	match := closeErr == nil && r.hasher.Finalize() == p.Hash
	if !match {
		os.Remove(down.fsPath)
	} else {
		r.progress.end()
	}

	if err := c.Send(wire.Acknowledged{Accepted: match}); err != nil {
		return nil
	}

	r.state = receiverIdle
	return nil
}

// finishDownload handles the size==0 shortcut: a zero-byte CreateFile
// never gets a FileChunk, so it moves straight to WaitingForHash after
// the Acknowledged for the CreateFile itself is sent.
func (r *Receiver) finishDownload(c *conn.Connection) error {
	r.state = receiverWaitingForHash
	return nil
}
