package netnode

import (
	"fmt"
	"io"
	"net"
	"time"
)

// writeTimeout bounds how long a single frame write may block, so a
// single unresponsive peer cannot stall a broadcaster's worker pool.
const writeTimeout = 10 * time.Second

// maxFrameSize bounds how much of a connection's body netnode will
// read, guarding against a peer that never closes its write side.
const maxFrameSize = 4 * 1024 * 1024

// Frame is a decoded tag-plus-body message.
type Frame struct {
	Tag  Tag
	Body []byte
}

// Conn wraps a single-shot connection: one frame written, then (for
// request tags) one frame read back, then closed. It mirrors the
// stratum Codec's role in the teacher, adapted from newline-delimited
// JSON-RPC to this protocol's tag-byte-plus-whole-body framing.
type Conn struct {
	raw net.Conn
}

// NewConn wraps an already-established connection.
func NewConn(raw net.Conn) *Conn {
	return &Conn{raw: raw}
}

// Dial opens a new connection to addr.
func Dial(addr string) (*Conn, error) {
	raw, err := net.DialTimeout("tcp", addr, writeTimeout)
	if err != nil {
		return nil, fmt.Errorf("netnode: dial %s: %w", addr, err)
	}
	return &Conn{raw: raw}, nil
}

// WriteFrame writes tag and body as a single TCP payload.
func (c *Conn) WriteFrame(tag Tag, body []byte) error {
	c.raw.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.raw.Write(append([]byte{byte(tag)}, body...))
	if err != nil {
		return fmt.Errorf("netnode: write frame: %w", err)
	}
	return nil
}

// CloseWrite half-closes the write side, if the underlying connection
// supports it, signalling to the peer that the frame is complete. Used
// on the request side of a request/response exchange so the responder's
// ReadFrame sees EOF without the connection being fully torn down.
func (c *Conn) CloseWrite() error {
	if cw, ok := c.raw.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// ReadFrame reads the whole connection body (until the peer closes its
// write side or EOF) and splits it into a tag and a JSON body.
func (c *Conn) ReadFrame() (Frame, error) {
	data, err := io.ReadAll(io.LimitReader(c.raw, maxFrameSize))
	if err != nil {
		return Frame{}, fmt.Errorf("netnode: read frame: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, fmt.Errorf("netnode: empty frame")
	}
	return Frame{Tag: Tag(data[0]), Body: data[1:]}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// SendRequest writes a request frame, half-closes, reads the whole
// reply, then closes the connection. Replies carry no tag byte, so the
// returned Frame's Body is the entire reply and its Tag is the request
// tag. Used for the "a", "r" and "x" request/response tags.
func SendRequest(addr string, tag Tag, body []byte) (Frame, error) {
	conn, err := Dial(addr)
	if err != nil {
		return Frame{}, err
	}
	defer conn.Close()

	if err := conn.WriteFrame(tag, body); err != nil {
		return Frame{}, err
	}
	if err := conn.CloseWrite(); err != nil {
		return Frame{}, fmt.Errorf("netnode: close write: %w", err)
	}
	reply, err := io.ReadAll(io.LimitReader(conn.raw, maxFrameSize))
	if err != nil {
		return Frame{}, fmt.Errorf("netnode: read reply: %w", err)
	}
	if len(reply) == 0 {
		return Frame{}, fmt.Errorf("netnode: empty reply")
	}
	return Frame{Tag: tag, Body: reply}, nil
}

// SendFireAndForget writes a frame and closes the connection without
// waiting for a reply. Used for "n", "t", "b", "h" and "p".
func SendFireAndForget(addr string, tag Tag, body []byte) error {
	conn, err := Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.WriteFrame(tag, body); err != nil {
		return err
	}
	return conn.CloseWrite()
}
