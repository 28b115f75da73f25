package wire_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"fastxfer/wire"
)

func encodeDecode(c *qt.C, p wire.Packet) wire.Packet {
	w := wire.NewWriter()
	wire.Encode(w, p)

	r := wire.NewReader(w.Bytes())
	decoded, err := wire.Decode(r)
	c.Assert(err, qt.IsNil)
	return decoded
}

func TestPacketRoundTrip(t *testing.T) {
	c := qt.New(t)

	c.Assert(encodeDecode(c, wire.ReceiverHello{}), qt.Equals, wire.Packet(wire.ReceiverHello{}))
	c.Assert(encodeDecode(c, wire.SenderHello{}), qt.Equals, wire.Packet(wire.SenderHello{}))
	c.Assert(encodeDecode(c, wire.Acknowledged{Accepted: true}), qt.Equals, wire.Packet(wire.Acknowledged{Accepted: true}))
	c.Assert(encodeDecode(c, wire.Acknowledged{Accepted: false}), qt.Equals, wire.Packet(wire.Acknowledged{Accepted: false}))
	c.Assert(encodeDecode(c, wire.CreateDirectory{Path: "a/b/c"}), qt.Equals, wire.Packet(wire.CreateDirectory{Path: "a/b/c"}))
	c.Assert(encodeDecode(c, wire.CreateFile{Path: "a/b.txt", Size: 42, Flags: wire.FlagCompressed}),
		qt.Equals, wire.Packet(wire.CreateFile{Path: "a/b.txt", Size: 42, Flags: wire.FlagCompressed}))
	c.Assert(encodeDecode(c, wire.VerifyFile{Hash: 0xdeadbeef}), qt.Equals, wire.Packet(wire.VerifyFile{Hash: 0xdeadbeef}))

	fc := encodeDecode(c, wire.FileChunk{Data: []byte("payload")})
	c.Assert(fc, qt.DeepEquals, wire.Packet(wire.FileChunk{Data: []byte("payload")}))
}

func TestDecodeUnknownTag(t *testing.T) {
	c := qt.New(t)

	w := wire.NewWriter()
	w.WriteUint16(99)

	_, err := wire.Decode(wire.NewReader(w.Bytes()))
	c.Assert(err, qt.ErrorIs, wire.ErrProtocol)
}

func TestDecodeTrailingBytesIsProtocolError(t *testing.T) {
	c := qt.New(t)

	w := wire.NewWriter()
	w.WriteUint16(uint16(wire.TagVerifyFile))
	w.WriteUint64(123)
	w.WriteUint8(0) // stray extra byte

	_, err := wire.Decode(wire.NewReader(w.Bytes()))
	c.Assert(err, qt.ErrorIs, wire.ErrProtocol)
}

func TestDecodeTruncatedTag(t *testing.T) {
	c := qt.New(t)

	_, err := wire.Decode(wire.NewReader([]byte{0x00}))
	c.Assert(err, qt.ErrorIs, wire.ErrProtocol)
}

func TestTagStringer(t *testing.T) {
	c := qt.New(t)

	c.Assert(wire.TagCreateFile.String(), qt.Equals, "CreateFile")
	c.Assert(wire.Tag(250).String(), qt.Equals, "Invalid(250)")
}
