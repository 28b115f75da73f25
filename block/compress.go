package block

import (
	"bytes"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compressor is a streaming per-file compression session. Reset starts
// a new independent session; state is never carried across files.
type Compressor struct {
	buf    *bytes.Buffer
	writer *lz4.Writer
}

// NewCompressor returns a Compressor with no active session.
func NewCompressor() *Compressor {
	c := &Compressor{buf: new(bytes.Buffer)}
	c.writer = lz4.NewWriter(c.buf)
	return c
}

// Reset starts a fresh compression session, discarding any buffered
// state from a previous file.
func (c *Compressor) Reset() {
	c.buf.Reset()
	c.writer.Reset(c.buf)
}

// Compress feeds chunk into the session and returns whatever compressed
// bytes became ready to send. When end is true, the frame is finalized
// (a full session's trailing data is flushed) and the session may not
// be used again without a Reset.
func (c *Compressor) Compress(chunk []byte, end bool) ([]byte, error) {
	if len(chunk) > 0 {
		if _, err := c.writer.Write(chunk); err != nil {
			return nil, err
		}
	}

	if end {
		if err := c.writer.Close(); err != nil {
			return nil, err
		}
	} else if err := c.writer.Flush(); err != nil {
		return nil, err
	}

	out := append([]byte(nil), c.buf.Bytes()...)
	c.buf.Reset()
	return out, nil
}

// Decompressor is the receive-side counterpart of Compressor: it
// decodes an LZ4 frame incrementally as compressed bytes for one file
// arrive out of step with its block boundaries.
type Decompressor struct {
	pending *bytes.Buffer
	reader  *lz4.Reader
	scratch []byte
}

// NewDecompressor returns a Decompressor with no active session.
func NewDecompressor() *Decompressor {
	d := &Decompressor{pending: new(bytes.Buffer), scratch: make([]byte, 64*1024)}
	d.reader = lz4.NewReader(d.pending)
	return d
}

// Reset starts a fresh decompression session.
func (d *Decompressor) Reset() {
	d.pending.Reset()
	d.reader.Reset(d.pending)
}

// Feed appends chunk to the session's pending compressed bytes and
// returns whatever plaintext the frame decoder could produce from it.
// It returns no bytes, no error, when the frame needs more input before
// it can emit another block.
func (d *Decompressor) Feed(chunk []byte) ([]byte, error) {
	d.pending.Write(chunk)

	var plain []byte
	for {
		n, err := d.reader.Read(d.scratch)
		if n > 0 {
			plain = append(plain, d.scratch[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return plain, nil
			}
			return plain, err
		}
		if n == 0 {
			return plain, nil
		}
	}
}
