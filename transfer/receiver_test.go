package transfer_test

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"fastxfer/block"
	"fastxfer/conn"
	"fastxfer/transfer"
	"fastxfer/wire"
)

// newDrainedConnection returns a Connection whose peer end is read and
// discarded on a background goroutine, so direct calls that exercise
// Connection.Send never block on an unread pipe.
func newDrainedConnection(t *testing.T, handler conn.Handler) *conn.Connection {
	t.Helper()
	local, peer := net.Pipe()
	go io.Copy(io.Discard, peer)
	t.Cleanup(func() { local.Close(); peer.Close() })
	return conn.New(local, handler)
}

func TestReceiverRejectsPathTraversalOnCreateFile(t *testing.T) {
	c := qt.New(t)

	root := t.TempDir()
	receiver := transfer.NewReceiver(root, nil)
	connection := newDrainedConnection(t, receiver)

	err := receiver.OnPacket(connection, wire.SenderHello{})
	c.Assert(err, qt.IsNil)

	err = receiver.OnPacket(connection, wire.CreateFile{Path: "../escape.txt", Size: 4})
	c.Assert(err, qt.IsNil) // rejection is reported via Acknowledged, not an error return

	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt"))
	c.Assert(os.IsNotExist(statErr), qt.IsTrue)
}

func TestReceiverRejectsOverrun(t *testing.T) {
	c := qt.New(t)

	root := t.TempDir()
	receiver := transfer.NewReceiver(root, nil)
	connection := newDrainedConnection(t, receiver)

	c.Assert(receiver.OnPacket(connection, wire.SenderHello{}), qt.IsNil)
	c.Assert(receiver.OnPacket(connection, wire.CreateFile{Path: "f.txt", Size: 3}), qt.IsNil)

	err := receiver.OnPacket(connection, wire.FileChunk{Data: []byte("too much data")})
	c.Assert(err, qt.ErrorIs, wire.ErrProtocol)
}

func TestReceiverRemovesFileOnHashMismatch(t *testing.T) {
	c := qt.New(t)

	root := t.TempDir()
	receiver := transfer.NewReceiver(root, nil)
	connection := newDrainedConnection(t, receiver)

	c.Assert(receiver.OnPacket(connection, wire.SenderHello{}), qt.IsNil)
	c.Assert(receiver.OnPacket(connection, wire.CreateFile{Path: "f.txt", Size: 5}), qt.IsNil)
	c.Assert(receiver.OnPacket(connection, wire.FileChunk{Data: []byte("hello")}), qt.IsNil)

	wrongHash := block.NewHasher()
	wrongHash.Feed([]byte("not hello"))
	c.Assert(receiver.OnPacket(connection, wire.VerifyFile{Hash: wrongHash.Finalize()}), qt.IsNil)

	_, err := os.Stat(filepath.Join(root, "f.txt"))
	c.Assert(os.IsNotExist(err), qt.IsTrue)
}

func TestReceiverKeepsFileOnHashMatch(t *testing.T) {
	c := qt.New(t)

	root := t.TempDir()
	receiver := transfer.NewReceiver(root, nil)
	connection := newDrainedConnection(t, receiver)

	c.Assert(receiver.OnPacket(connection, wire.SenderHello{}), qt.IsNil)
	c.Assert(receiver.OnPacket(connection, wire.CreateFile{Path: "f.txt", Size: 5}), qt.IsNil)
	c.Assert(receiver.OnPacket(connection, wire.FileChunk{Data: []byte("hello")}), qt.IsNil)

	correctHash := block.NewHasher()
	correctHash.Feed([]byte("hello"))
	c.Assert(receiver.OnPacket(connection, wire.VerifyFile{Hash: correctHash.Finalize()}), qt.IsNil)

	got, err := os.ReadFile(filepath.Join(root, "f.txt"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(got), qt.Equals, "hello")
}

func TestReceiverCreateDirectory(t *testing.T) {
	c := qt.New(t)

	root := t.TempDir()
	receiver := transfer.NewReceiver(root, nil)
	connection := newDrainedConnection(t, receiver)

	c.Assert(receiver.OnPacket(connection, wire.SenderHello{}), qt.IsNil)
	c.Assert(receiver.OnPacket(connection, wire.CreateDirectory{Path: "a/b"}), qt.IsNil)

	info, err := os.Stat(filepath.Join(root, "a", "b"))
	c.Assert(err, qt.IsNil)
	c.Assert(info.IsDir(), qt.IsTrue)
}
