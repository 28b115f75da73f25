package wire_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"fastxfer/wire"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	c := qt.New(t)

	w := wire.NewWriter()
	w.WriteUint8(0xAB)
	w.WriteInt8(-5)
	w.WriteUint16(0x1234)
	w.WriteInt16(-1000)
	w.WriteUint32(0xCAFEBABE)
	w.WriteInt32(-123456)
	w.WriteUint64(0x0102030405060708)
	w.WriteInt64(-1)
	w.WriteBytes([]byte("tail"))

	r := wire.NewReader(w.Bytes())

	u8, err := r.ReadUint8()
	c.Assert(err, qt.IsNil)
	c.Assert(u8, qt.Equals, uint8(0xAB))

	i8, err := r.ReadInt8()
	c.Assert(err, qt.IsNil)
	c.Assert(i8, qt.Equals, int8(-5))

	u16, err := r.ReadUint16()
	c.Assert(err, qt.IsNil)
	c.Assert(u16, qt.Equals, uint16(0x1234))

	i16, err := r.ReadInt16()
	c.Assert(err, qt.IsNil)
	c.Assert(i16, qt.Equals, int16(-1000))

	u32, err := r.ReadUint32()
	c.Assert(err, qt.IsNil)
	c.Assert(u32, qt.Equals, uint32(0xCAFEBABE))

	i32, err := r.ReadInt32()
	c.Assert(err, qt.IsNil)
	c.Assert(i32, qt.Equals, int32(-123456))

	u64, err := r.ReadUint64()
	c.Assert(err, qt.IsNil)
	c.Assert(u64, qt.Equals, uint64(0x0102030405060708))

	i64, err := r.ReadInt64()
	c.Assert(err, qt.IsNil)
	c.Assert(i64, qt.Equals, int64(-1))

	tail := r.ReadRemaining()
	c.Assert(string(tail), qt.Equals, "tail")
	c.Assert(r.Remaining(), qt.Equals, 0)
}

func TestReaderShortBuffer(t *testing.T) {
	c := qt.New(t)

	r := wire.NewReader([]byte{0x01})
	_, err := r.ReadUint32()
	c.Assert(err, qt.ErrorIs, wire.ErrShortBuffer)
}

func TestReaderBytesNoCopy(t *testing.T) {
	c := qt.New(t)

	buf := []byte{1, 2, 3, 4, 5}
	r := wire.NewReader(buf)
	b, err := r.ReadBytes(3)
	c.Assert(err, qt.IsNil)
	c.Assert(b, qt.DeepEquals, []byte{1, 2, 3})
	c.Assert(r.Remaining(), qt.Equals, 2)

	buf[0] = 9
	c.Assert(b[0], qt.Equals, byte(9))
}

func TestWriterBigEndianOrder(t *testing.T) {
	c := qt.New(t)

	w := wire.NewWriter()
	w.WriteUint32(0x01020304)
	c.Assert(w.Bytes(), qt.DeepEquals, []byte{0x01, 0x02, 0x03, 0x04})
}
