// Package conn owns the byte-stream side of one peer connection: a
// net.Conn plus the frame codec, dispatching decoded packets to a
// Handler supplied by the sender or receiver state machine.
package conn

import (
	"errors"
	"fmt"
	"net"

	"fastxfer/wire"
)

// ErrTransport wraps any failure detected at the net.Conn level: a
// closed peer, a reset connection, or any other I/O error.
var ErrTransport = errors.New("conn: transport error")

// Handler is implemented by the sender and receiver state machines. A
// Connection calls exactly one of these per event; no method is called
// concurrently with another for the same Connection.
type Handler interface {
	// OnPacket handles one fully decoded packet. Returning an error
	// marks the connection as having hit a protocol error and ends it.
	OnPacket(c *Connection, packet wire.Packet) error
	// OnTransportError is called once when a transport-level failure
	// ends the connection.
	OnTransportError(c *Connection, err error)
	// OnProtocolError is called once when framing, decoding, or
	// sequencing detects a malformed or out-of-order packet.
	OnProtocolError(c *Connection, err error)
	// OnDisconnected is called once when the connection becomes not
	// alive for any reason (transport error, protocol error, or the
	// handler itself calling SetNotAlive).
	OnDisconnected(c *Connection)
}

// Connection owns one net.Conn, one frame sender, and one frame
// reassembler. It is not safe for concurrent use; one connection
// belongs to exactly one goroutine.
type Connection struct {
	nc net.Conn

	framer      wire.Framer
	reassembler *wire.Reassembler

	handler Handler

	alive  bool
	closed bool
}

// New wraps nc for framed packet exchange, dispatching incoming
// packets to handler.
func New(nc net.Conn, handler Handler) *Connection {
	return &Connection{
		nc:          nc,
		reassembler: wire.NewReassembler(),
		handler:     handler,
		alive:       true,
	}
}

// Alive reports whether the connection can still send or receive.
func (c *Connection) Alive() bool {
	return c.alive
}

// RemoteAddr returns the underlying connection's remote address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// SetNotAlive marks the connection as finished without treating it as
// an error. Callers use this once a state machine reaches its terminal
// state.
func (c *Connection) SetNotAlive() {
	if c.alive {
		c.alive = false
		c.handler.OnDisconnected(c)
	}
}

func (c *Connection) failTransport(err error) {
	if !c.alive {
		return
	}
	c.alive = false
	c.handler.OnTransportError(c, err)
	c.handler.OnDisconnected(c)
}

func (c *Connection) failProtocol(err error) {
	if !c.alive {
		return
	}
	c.alive = false
	c.handler.OnProtocolError(c, err)
	c.handler.OnDisconnected(c)
}

// Send serializes and frames packet, then writes it to the stream in
// full, retrying short writes until the frame is completely on the
// wire or an error occurs.
func (c *Connection) Send(packet wire.Packet) error {
	if !c.alive {
		return fmt.Errorf("conn: send on dead connection")
	}

	writer := c.framer.Prepare()
	wire.Encode(writer, packet)

	frame, err := c.framer.Finalize()
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", wire.ErrProtocol, err)
		c.failProtocol(wrapped)
		return wrapped
	}

	for len(frame) > 0 {
		n, err := c.nc.Write(frame)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrTransport, err)
			c.failTransport(wrapped)
			return wrapped
		}
		frame = frame[n:]
	}

	return nil
}

// Update performs one receive into the reassembler's prepared span,
// then drains every frame that became available, decoding and
// dispatching each to the handler. It returns once NeedMoreData is
// reached, the connection stops being alive, or a terminal error
// occurs.
func (c *Connection) Update() {
	if !c.alive {
		return
	}

	span := c.reassembler.PrepareReceiveBuffer()
	n, err := c.nc.Read(span)
	if n > 0 {
		c.reassembler.Commit(n)
	}
	if err != nil {
		c.failTransport(fmt.Errorf("%w: %v", ErrTransport, err))
		return
	}
	if n == 0 {
		c.failTransport(fmt.Errorf("%w: peer closed", ErrTransport))
		return
	}

	for c.alive {
		result, reader := c.reassembler.Update()

		switch result {
		case wire.NeedMoreData:
			return

		case wire.MalformedStream:
			c.failProtocol(fmt.Errorf("%w: malformed frame stream", wire.ErrProtocol))
			return

		case wire.ReceivedFrame:
			packet, err := wire.Decode(reader)
			if err != nil {
				c.reassembler.DiscardFrame()
				c.failProtocol(err)
				return
			}

			// OnPacket must finish consuming packet before DiscardFrame
			// shifts the reassembler's buffer: packet may still alias it
			// (FileChunk.Data is not copied in Decode).
			if err := c.handler.OnPacket(c, packet); err != nil {
				c.reassembler.DiscardFrame()
				c.failProtocol(err)
				return
			}

			c.reassembler.DiscardFrame()
		}
	}
}

// Close releases the underlying transport. It does not itself mark
// the connection not-alive; callers that close deliberately should
// already have done so.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}
